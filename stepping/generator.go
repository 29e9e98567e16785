package stepping

import (
	"errors"
	"fmt"
	"sync"

	"stepstream/core"
)

// Engine is the part of the output engine the generator controls.
type Engine interface {
	Port
	SetStepping() error
	SetPassthrough() error
	SetPulsePeriod(us uint32)
}

// Generator schedules steps for a set of axes. Each Pulse call advances its
// clock by one callback period.
type Generator struct {
	engine  Engine
	period  uint32
	pattern Pattern

	mu   sync.Mutex
	axes []*Axis
	now  uint64
	idle bool
}

// NewGenerator returns a generator for an engine whose pulse period is
// periodUS. Pass Pulse to the engine's Init.
func NewGenerator(engine Engine, periodUS uint32) *Generator {
	return &Generator{engine: engine, period: periodUS, idle: true}
}

// SetPeriod changes the callback period on both sides.
func (g *Generator) SetPeriod(us uint32) {
	g.mu.Lock()
	g.period = us
	g.mu.Unlock()
	g.engine.SetPulsePeriod(us)
}

// Period returns the callback period in µs.
func (g *Generator) Period() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.period
}

// AddAxis registers a motor on the given virtual port bits.
func (g *Generator) AddAxis(stepBit, dirBit uint8, invertStep, invertDir bool, minInterval uint32) (*Axis, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.axes) >= 16 {
		return nil, errors.New("stepping: too many axes")
	}
	b := NewPortBackend(g.engine, &g.pattern)
	if err := b.Init(stepBit, dirBit, invertStep, invertDir); err != nil {
		return nil, err
	}
	a := newAxis(uint8(len(g.axes)), b, minInterval)
	g.axes = append(g.axes, a)
	return a, nil
}

// Queue appends a move to an axis.
func (g *Generator) Queue(axis uint8, m Move) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(axis) >= len(g.axes) {
		return fmt.Errorf("stepping: no axis %d", axis)
	}
	return g.axes[axis].push(m)
}

// Start switches the engine to Streaming if any move is waiting.
func (g *Generator) Start() error {
	g.mu.Lock()
	busy := false
	for _, a := range g.axes {
		busy = busy || a.active()
	}
	if busy {
		g.idle = false
	}
	g.mu.Unlock()
	if !busy {
		return nil
	}
	return g.engine.SetStepping()
}

// Pulse is the output engine's pulse callback. It emits the steps due now,
// loads follow-on moves after the pattern is fixed so a direction change
// never shares a sample with the previous move's last step, and asks the
// engine to drain once every axis is idle.
func (g *Generator) Pulse() uint32 {
	g.mu.Lock()
	g.now += uint64(g.period)
	g.pattern.Reset()
	for _, a := range g.axes {
		a.step(g.now)
	}
	out := g.pattern.Apply(g.engine.Value())

	busy := false
	for _, a := range g.axes {
		a.load(g.now)
		busy = busy || a.active()
	}
	requestIdle := !busy && !g.idle
	if requestIdle {
		g.idle = true
	}
	g.mu.Unlock()

	if requestIdle {
		core.DebugPrintln("stepping: queues empty, draining")
		g.engine.SetPassthrough()
	}
	return out
}

// Position returns an axis position in steps.
func (g *Generator) Position(axis uint8) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(axis) >= len(g.axes) {
		return 0
	}
	return g.axes[axis].position
}

// Pending returns the number of moves queued on an axis, including the
// running one.
func (g *Generator) Pending(axis uint8) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(axis) >= len(g.axes) {
		return 0
	}
	a := g.axes[axis]
	n := a.queued()
	if a.count > 0 {
		n++
	}
	return n
}

// Busy reports whether any axis has work.
func (g *Generator) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range g.axes {
		if a.active() {
			return true
		}
	}
	return false
}

// Stop abandons all moves and parks the step outputs.
func (g *Generator) Stop() {
	g.mu.Lock()
	for _, a := range g.axes {
		a.stop()
	}
	g.idle = true
	g.mu.Unlock()
}
