// Package stepping turns queued constant-acceleration moves into step and
// direction bits on the virtual output port. Generator.Pulse is the pulse
// callback handed to the output engine.
package stepping

import (
	"fmt"
	"strconv"

	"stepstream/core"
)

// Port is the part of the output engine a backend drives.
type Port interface {
	Write(bit int, value bool)
	Value() uint32
}

// Pattern collects the step bits to pulse in the next emitted sample.
type Pattern struct {
	set, clear uint32
}

// Pulse marks bit to be driven to level for the pulse.
func (p *Pattern) Pulse(bit int, level bool) {
	m := uint32(1) << uint(bit)
	if level {
		p.set |= m
		p.clear &^= m
	} else {
		p.clear |= m
		p.set &^= m
	}
}

// Apply overlays the marked bits on the held port value.
func (p *Pattern) Apply(v uint32) uint32 {
	return (v &^ p.clear) | p.set
}

// Empty reports whether no bit is marked.
func (p *Pattern) Empty() bool {
	return p.set == 0 && p.clear == 0
}

// Reset clears all marks.
func (p *Pattern) Reset() {
	p.set, p.clear = 0, 0
}

// PortBackend implements core.StepperBackend on two virtual port bits.
type PortBackend struct {
	port       Port
	pattern    *Pattern
	stepBit    int
	dirBit     int
	invertStep bool
	invertDir  bool
}

// NewPortBackend returns a backend that writes direction to port and marks
// steps in pattern.
func NewPortBackend(port Port, pattern *Pattern) *PortBackend {
	return &PortBackend{port: port, pattern: pattern}
}

// Init binds the backend to virtual port bits and parks the step output at
// its idle level.
func (b *PortBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	if stepPin >= 32 || dirPin >= 32 {
		return fmt.Errorf("stepping: virtual bits %d/%d out of range", stepPin, dirPin)
	}
	if stepPin == dirPin {
		return fmt.Errorf("stepping: step and dir share bit %d", stepPin)
	}
	b.stepBit = int(stepPin)
	b.dirBit = int(dirPin)
	b.invertStep = invertStep
	b.invertDir = invertDir
	b.port.Write(b.stepBit, invertStep)
	return nil
}

func (b *PortBackend) Step() {
	b.pattern.Pulse(b.stepBit, !b.invertStep)
}

func (b *PortBackend) SetDirection(dir bool) {
	b.port.Write(b.dirBit, dir != b.invertDir)
}

func (b *PortBackend) Stop() {
	b.port.Write(b.stepBit, b.invertStep)
}

func (b *PortBackend) GetName() string {
	return "vport-" + strconv.Itoa(b.stepBit) + "/" + strconv.Itoa(b.dirBit)
}

// Info describes the backend's limits for a given tick and pulse width.
func (b *PortBackend) Info(tickUS, pulseUS uint32) core.StepperBackendInfo {
	period := pulseUS + tickUS
	return core.StepperBackendInfo{
		Name:        b.GetName(),
		MaxStepRate: 1000000 / period,
		MinPulseNs:  pulseUS * 1000,
	}
}
