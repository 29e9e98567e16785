// Package output streams a 32-bit virtual output port to a shift-register
// chain through a DMA descriptor ring, so step pulse timing comes from the
// hardware clock rather than from software loops.
//
// Two locks are involved. The hardware spin lock guards register sequences
// and is taken by the completion interrupt. The pulser mutex guards the mode,
// rate state and the fill position; it is never taken by the interrupt and
// never while the spin lock is held.
package output

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"stepstream/core"
	"stepstream/dma"
)

var (
	ErrAlreadyInitialized = errors.New("output: engine already initialized")
	ErrNotInitialized     = errors.New("output: engine not initialized")
	ErrClosed             = errors.New("output: engine closed")
	ErrPinCapability      = errors.New("output: pin cannot drive the shift chain")
)

// PulseFunc is called by the fill task whenever the next pulse is due while
// Streaming. It returns the port word to emit for the configured pulse
// width; returning the current port value emits nothing extra. It runs with
// the pulser lock released and may call Write, PushSample, SetPassthrough,
// SetStepping and Reset, but must not call Close.
type PulseFunc func() uint32

// Stats is a snapshot of engine counters.
type Stats struct {
	Mode        Mode
	Completions uint64 // descriptors reported by the interrupt
	Refills     uint64 // descriptors processed by the fill task
	Underruns   uint64 // descriptors repaired by the interrupt
	Discarded   uint64 // completions dropped by a restart
	Pending     int    // completions waiting for the fill task
}

// Idle reports whether every reported completion has been accounted for.
func (s Stats) Idle() bool {
	return s.Pending == 0 && s.Completions == s.Refills+s.Underruns+s.Discarded
}

// Engine owns the ring, the completion queue and the mode machine for one
// output peripheral.
type Engine struct {
	periph Peripheral
	port   Port
	mode   atomic.Uint32
	ready  atomic.Bool

	hw core.SpinLock

	mu      sync.Mutex
	drained *sync.Cond

	// Set by Init, read-only afterwards.
	cfg        Config
	ring       *dma.Ring
	queue      *dma.Queue
	pulse      PulseFunc
	pulseTicks int
	safeCount  int

	// Guarded by mu.
	cur         *dma.Descriptor
	pos         int
	remaining   int64
	period      uint32
	cutPending  bool
	initialized bool
	closed      bool
	seenUnder   uint64

	completions atomic.Uint64
	refills     atomic.Uint64
	underruns   atomic.Uint64
	discarded   atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an engine bound to p. Call Init before use.
func New(p Peripheral) *Engine {
	e := &Engine{periph: p}
	e.drained = sync.NewCond(&e.mu)
	return e
}

// Init validates cfg, builds the ring, registers the interrupt handler and
// starts the fill task with the engine in Static mode.
func (e *Engine) Init(cfg Config, pulse PulseFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return ErrAlreadyInitialized
	}
	if e.closed {
		return ErrClosed
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	for _, pin := range []core.GPIOPin{cfg.Pins.Latch, cfg.Pins.Clock, cfg.Pins.Data} {
		if caps := e.periph.Capabilities(pin); !caps.Has(core.CapOutput | core.CapNative) {
			return fmt.Errorf("%w: pin %d has %s", ErrPinCapability, pin, caps)
		}
	}

	ring, err := dma.NewRing(cfg.Buffers, cfg.BufferWords, e.periph.Alloc, cfg.InitValue)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}

	e.cfg = cfg
	e.ring = ring
	e.queue = dma.NewQueue(cfg.Buffers)
	e.pulse = pulse
	e.pulseTicks = cfg.PulseTicks()
	e.safeCount = cfg.SafeCount()
	e.period = cfg.PeriodUS
	e.port.Set(cfg.InitValue)
	e.mode.Store(uint32(Static))

	if err := e.periph.Attach(cfg.Pins, cfg.TickUS, e.handleInterrupt); err != nil {
		return fmt.Errorf("output: register interrupt: %w", err)
	}

	e.start()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.fillTask(ctx)

	e.initialized = true
	e.ready.Store(true)
	core.DebugPrintln("output: initialized, port " + core.Hex32(cfg.InitValue))
	return nil
}

// Close stops the peripheral and the fill task. The engine cannot be
// re-initialized afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if !e.initialized || e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.ready.Store(false)
	e.stop()
	e.discard()
	e.cur = nil
	e.setMode(Static)
	e.drained.Broadcast()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done
	return e.periph.Detach()
}

// Config returns the effective configuration after defaults.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Write sets or clears one virtual port bit. In Static mode the change is
// pushed straight to the passthrough register.
func (e *Engine) Write(bit int, value bool) {
	e.port.Write(bit, value)
	if e.ready.Load() && e.Mode() == Static {
		e.syncPassthrough()
	}
}

// syncPassthrough publishes the port word until it is stable, so the last of
// several racing writers always leaves its value in the register.
func (e *Engine) syncPassthrough() {
	for {
		v := e.port.Value()
		e.periph.SetPassthrough(v)
		if e.port.Value() == v {
			return
		}
	}
}

// Read returns one virtual port bit.
func (e *Engine) Read(bit int) bool {
	return e.port.Read(bit)
}

// Value returns the whole virtual port word.
func (e *Engine) Value() uint32 {
	return e.port.Value()
}

// Mode returns the current mode without taking the pulser lock.
func (e *Engine) Mode() Mode {
	return Mode(e.mode.Load())
}

// SetPulsePeriod sets the interval between pulse callbacks.
func (e *Engine) SetPulsePeriod(us uint32) {
	e.mu.Lock()
	e.period = us
	e.mu.Unlock()
}

// PulsePeriod returns the interval between pulse callbacks.
func (e *Engine) PulsePeriod() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.period
}

// PushSample appends copies of the current port value to the buffer being
// filled: us/tick samples, at least one. Requests longer than the safety
// margin are refused and return 0; otherwise the number of samples written
// is returned.
func (e *Engine) PushSample(us uint32) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized || e.closed {
		return 0
	}
	n := int(us / e.cfg.TickUS)
	if n > e.safeCount {
		return 0
	}
	if n < 1 {
		n = 1
	}
	d := e.cur
	if d == nil {
		return 0
	}
	v := e.port.Value()
	written := 0
	for written < n && e.pos < d.Cap() {
		d.Store(e.pos, v)
		e.pos++
		written++
	}
	return written
}

// Delay sleeps until a preceding Write is certain to be on the outputs.
func (e *Engine) Delay() {
	if !e.ready.Load() {
		return
	}
	tick := time.Duration(e.cfg.TickUS) * time.Microsecond
	if e.Mode() == Static {
		time.Sleep(2 * tick)
		return
	}
	time.Sleep(time.Duration(e.ring.Samples()+1) * tick)
}

// DrainBound is the longest a requested drain can take: the descriptor in
// flight when the request lands plus one full ring.
func (e *Engine) DrainBound() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ring == nil {
		return 0
	}
	samples := (e.ring.Len() + 1) * e.ring.Words()
	return time.Duration(samples) * time.Duration(e.cfg.TickUS) * time.Microsecond
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Mode:        e.Mode(),
		Completions: e.completions.Load(),
		Refills:     e.refills.Load(),
		Underruns:   e.underruns.Load(),
		Discarded:   e.discarded.Load(),
	}
	if e.queue != nil {
		s.Pending = e.queue.Len()
	}
	return s
}

// Ring exposes the descriptor ring for peripherals and diagnostics.
func (e *Engine) Ring() *dma.Ring {
	return e.ring
}
