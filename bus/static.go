// Package bus drives a shift-register chain directly from GPIO, for boards
// or tools with no DMA-capable output peripheral.
package bus

//go:generate mockgen -destination mock_gpio_test.go -package bus -write_package_comment=false stepstream/core GPIODriver

import (
	"errors"
	"fmt"
	"sync"

	"stepstream/core"
)

var ErrChainLength = errors.New("bus: chain must be 1 to 4 chips")

// Static holds the port word in memory and shifts the whole word out on
// every change. Each write costs 2*bits+2 pin toggles.
type Static struct {
	driver core.GPIODriver
	pins   core.ShiftPins
	bits   int

	mu    sync.Mutex
	value uint32
}

// NewStatic configures the pins and clears the chain.
func NewStatic(d core.GPIODriver, pins core.ShiftPins, chips int) (*Static, error) {
	if chips < 1 || chips > 4 {
		return nil, ErrChainLength
	}
	s := &Static{driver: d, pins: pins, bits: chips * 8}
	if err := core.ConfigureShiftPins(d, pins); err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}
	if err := core.ShiftOut(d, pins, 0, s.bits); err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}
	return s, nil
}

// Write sets one output and pushes the word to the chain.
func (s *Static) Write(bit int, value bool) error {
	if bit < 0 || bit >= s.bits {
		return fmt.Errorf("bus: bit %d out of range", bit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.value
	if value {
		v |= 1 << uint(bit)
	} else {
		v &^= 1 << uint(bit)
	}
	return s.shift(v)
}

// Set replaces the whole word.
func (s *Static) Set(v uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shift(v)
}

func (s *Static) shift(v uint32) error {
	if v == s.value {
		return nil
	}
	if err := core.ShiftOut(s.driver, s.pins, v, s.bits); err != nil {
		return fmt.Errorf("bus: shift out: %w", err)
	}
	s.value = v
	return nil
}

// Read returns the last value written to a bit. A bit outside the chain
// panics, as on the virtual port.
func (s *Static) Read(bit int) bool {
	if bit < 0 || bit >= s.bits {
		panic(fmt.Sprintf("bus: bit %d out of range 0..%d", bit, s.bits-1))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value&(1<<uint(bit)) != 0
}

// Value returns the port word.
func (s *Static) Value() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Bits returns the chain length in outputs.
func (s *Static) Bits() int {
	return s.bits
}
