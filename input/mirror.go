// Package input mirrors a chain of parallel-in shift registers (74HC165 and
// similar) into a 32-bit virtual input port. A capture peripheral fills a
// small descriptor ring; the completion interrupt decodes the newest sample
// and calls per-bit change handlers. There is no producer task and no mode:
// a stale read is corrected by the next interrupt.
package input

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"stepstream/core"
	"stepstream/dma"
)

const (
	PortWidth          = 32
	MaxChips           = 4
	DefaultBuffers     = 4
	DefaultBufferWords = 2
)

var (
	ErrChipCount          = errors.New("input: chip count must be 1..4")
	ErrAlreadyInitialized = errors.New("input: port already initialized")
	ErrNotInitialized     = errors.New("input: port not initialized")
	ErrPinCapability      = errors.New("input: pin cannot drive the shift chain")
)

// Handler is called from interrupt context when a watched bit changes.
// It must not block.
type Handler func(bit int, level bool)

// Peripheral is the capture hardware: it clocks the chain and writes each
// captured word into the ring, raising an interrupt per descriptor.
// Start, Stop, Status, LastCompleted and ClearInterrupt must not block.
type Peripheral interface {
	core.PinCapabilities
	Alloc(words int) ([]uint32, error)
	Attach(pins core.ShiftPins, isr func()) error
	Detach() error
	Start(head *dma.Descriptor)
	Stop()
	Status() bool
	LastCompleted() *dma.Descriptor
	ClearInterrupt()
}

// Config describes the input chain.
type Config struct {
	Pins        core.ShiftPins `json:"pins"`
	Chips       int            `json:"num_chips"`
	Buffers     int            `json:"buffers"`
	BufferWords int            `json:"buffer_words"`
}

// LoadConfig parses a JSON input configuration and applies defaults.
func LoadConfig(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("input: parse config: %w", err)
	}
	cfg.applyDefaults()
	if cfg.Chips < 1 || cfg.Chips > MaxChips {
		return cfg, ErrChipCount
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Buffers == 0 {
		c.Buffers = DefaultBuffers
	}
	if c.BufferWords == 0 {
		c.BufferWords = DefaultBufferWords
	}
}

// Port is the virtual input port.
type Port struct {
	periph Peripheral
	value  atomic.Uint32
	ready  atomic.Bool
	shift  uint
	ring   *dma.Ring

	// lock guards the handler table; the interrupt copies it out before
	// dispatching so handlers may register others.
	lock     core.SpinLock
	mask     uint32
	handlers [PortWidth]Handler
	changes  atomic.Uint64
}

// New returns a port bound to p. Call Init to start capturing.
func New(p Peripheral) *Port {
	return &Port{periph: p}
}

// Init builds the ring, registers the interrupt and starts capture.
func (p *Port) Init(cfg Config) error {
	if p.ready.Load() {
		return ErrAlreadyInitialized
	}
	cfg.applyDefaults()
	if cfg.Chips < 1 || cfg.Chips > MaxChips {
		return fmt.Errorf("%w: got %d", ErrChipCount, cfg.Chips)
	}
	for _, pin := range []core.GPIOPin{cfg.Pins.Latch, cfg.Pins.Clock} {
		if caps := p.periph.Capabilities(pin); !caps.Has(core.CapOutput | core.CapNative) {
			return fmt.Errorf("%w: pin %d has %s", ErrPinCapability, pin, caps)
		}
	}
	if caps := p.periph.Capabilities(cfg.Pins.Data); !caps.Has(core.CapInput | core.CapNative) {
		return fmt.Errorf("%w: data pin %d has %s", ErrPinCapability, cfg.Pins.Data, caps)
	}

	ring, err := dma.NewRing(cfg.Buffers, cfg.BufferWords, p.periph.Alloc, 0)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	p.ring = ring
	p.shift = uint(MaxChips-cfg.Chips) * 8

	if err := p.periph.Attach(cfg.Pins, p.handleInterrupt); err != nil {
		return fmt.Errorf("input: register interrupt: %w", err)
	}
	p.periph.Start(ring.Head())
	p.ready.Store(true)
	return nil
}

// Close stops capture and releases the interrupt.
func (p *Port) Close() error {
	if !p.ready.Swap(false) {
		return nil
	}
	p.periph.Stop()
	return p.periph.Detach()
}

// Read returns one input bit. An out-of-range bit panics.
func (p *Port) Read(bit int) bool {
	if bit < 0 || bit >= PortWidth {
		panic(fmt.Sprintf("input: virtual port bit %d out of range", bit))
	}
	return p.value.Load()&(1<<uint(bit)) != 0
}

// Value returns the last decoded word.
func (p *Port) Value() uint32 {
	return p.value.Load()
}

// Changes counts decoded words that differed from their predecessor.
func (p *Port) Changes() uint64 {
	return p.changes.Load()
}

// OnChange registers h for bit; a nil h stops watching the bit.
func (p *Port) OnChange(bit int, h Handler) error {
	if bit < 0 || bit >= PortWidth {
		return fmt.Errorf("input: bit %d out of range", bit)
	}
	s := p.lock.Lock()
	p.handlers[bit] = h
	if h != nil {
		p.mask |= 1 << uint(bit)
	} else {
		p.mask &^= 1 << uint(bit)
	}
	p.lock.Unlock(s)
	return nil
}

func (p *Port) handleInterrupt() {
	if !p.periph.Status() {
		p.periph.ClearInterrupt()
		return
	}
	d := p.periph.LastCompleted()
	p.periph.ClearInterrupt()
	if d == nil || d.Len() == 0 {
		return
	}
	// The last word is the newest scan.
	p.update(d.Sample(d.Len()-1) >> p.shift)
}

// update stores v and dispatches handlers for watched bits that changed.
// Called from the interrupt handler and from Poller.
func (p *Port) update(v uint32) {
	old := p.value.Swap(v)
	if old == v {
		return
	}
	p.changes.Add(1)

	s := p.lock.Lock()
	mask := p.mask
	handlers := p.handlers
	p.lock.Unlock(s)

	changed := (old ^ v) & mask
	for bit := 0; changed != 0; bit++ {
		m := uint32(1) << uint(bit)
		if changed&m == 0 {
			continue
		}
		changed &^= m
		if h := handlers[bit]; h != nil {
			h(bit, v&m != 0)
		}
	}
}
