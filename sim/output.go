// Package sim provides simulated output and input peripherals. Nothing
// moves on its own: callers drain or feed one descriptor at a time, which
// makes engine behaviour reproducible in tests and in the host tools.
package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"stepstream/core"
	"stepstream/dma"
	"stepstream/output"
)

var (
	ErrHandlerBusy = errors.New("sim: interrupt handler already registered")
	ErrNotAttached = errors.New("sim: peripheral not attached")
	ErrStalled     = errors.New("sim: consumer did not catch up")
)

// SettleTimeout bounds the wait for the consumer after each drain.
const SettleTimeout = time.Second

// DefaultCaps is what every simulated pin below 40 can do.
const DefaultCaps = core.CapInput | core.CapOutput | core.CapNative | core.CapPullUp

// Output simulates a DMA-fed shift-out peripheral.
type Output struct {
	// Caps overrides per-pin capabilities.
	Caps map[core.GPIOPin]core.PinCaps
	// AllocErr, when set, fails every allocation.
	AllocErr error
	// Sink receives each streamed descriptor's samples as it drains.
	Sink func(samples []uint32)

	passthrough atomic.Uint32

	mu        sync.Mutex
	attached  bool
	pins      core.ShiftPins
	tickUS    uint32
	isr       func()
	running   bool
	sel       output.OutputSelect
	cur       *dma.Descriptor
	last      *dma.Descriptor
	eof       bool
	terminal  bool
	halted    bool
	samples   []uint32
	recovery  []uint32
	drained   int
	passTicks int
	elapsed   uint64
	starts    int
}

// NewOutput returns an unattached simulated output peripheral.
func NewOutput() *Output {
	return &Output{}
}

func (o *Output) Capabilities(pin core.GPIOPin) core.PinCaps {
	if c, ok := o.Caps[pin]; ok {
		return c
	}
	if pin < 40 {
		return DefaultCaps
	}
	return 0
}

func (o *Output) Alloc(words int) ([]uint32, error) {
	if o.AllocErr != nil {
		return nil, o.AllocErr
	}
	return dma.HeapAllocator(words)
}

func (o *Output) Attach(pins core.ShiftPins, tickUS uint32, isr func()) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attached {
		return ErrHandlerBusy
	}
	o.attached = true
	o.pins = pins
	o.tickUS = tickUS
	o.isr = isr
	return nil
}

func (o *Output) Detach() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.attached {
		return ErrNotAttached
	}
	o.attached = false
	o.running = false
	o.isr = nil
	return nil
}

func (o *Output) Start(head *dma.Descriptor, sel output.OutputSelect, value uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = true
	o.halted = false
	o.sel = sel
	o.cur = head
	o.eof, o.terminal = false, false
	o.starts++
	if sel == output.SelectPassthrough {
		o.passthrough.Store(value)
	}
}

func (o *Output) Stop(value uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
	o.eof, o.terminal = false, false
	o.recovery = append(o.recovery, value)
}

func (o *Output) SetPassthrough(value uint32) {
	o.passthrough.Store(value)
}

func (o *Output) Status() (eof, terminal bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.eof, o.terminal
}

func (o *Output) Halt() {
	o.mu.Lock()
	o.running = false
	o.halted = true
	o.mu.Unlock()
}

func (o *Output) LastCompleted() *dma.Descriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

func (o *Output) ClearInterrupt() {
	o.mu.Lock()
	o.eof, o.terminal = false, false
	o.mu.Unlock()
}

// Drain emits the current descriptor, advances along its link and raises
// the completion interrupt. A nil link stops the hardware after this
// descriptor with a terminal completion. It returns false if the
// peripheral is not running.
func (o *Output) Drain() bool {
	o.mu.Lock()
	if !o.running || o.cur == nil {
		o.mu.Unlock()
		return false
	}
	d := o.cur
	n := d.Len()
	var chunk []uint32
	if o.sel == output.SelectStream {
		start := len(o.samples)
		o.samples = d.Snapshot(o.samples)
		if o.Sink != nil {
			chunk = append([]uint32(nil), o.samples[start:]...)
		}
	} else {
		o.passTicks += n
	}
	us := uint64(n) * uint64(o.tickUS)
	o.elapsed += us
	core.AdvanceMicros(uint32(us))

	o.last = d
	o.eof = true
	o.cur = d.Next()
	if o.cur == nil {
		o.terminal = true
		o.running = false
	}
	o.drained++
	isr, sink := o.isr, o.Sink
	o.mu.Unlock()

	if sink != nil && chunk != nil {
		sink(chunk)
	}
	if isr != nil {
		isr()
	}
	return true
}

// DrainN drains up to n descriptors and returns how many were drained.
func (o *Output) DrainN(n int) int {
	for i := 0; i < n; i++ {
		if !o.Drain() {
			return i
		}
	}
	return n
}

// DrainUntil drains one descriptor at a time until done reports true or max
// descriptors have gone out. After each drain it waits for idle, normally
// the engine's Stats().Idle, so every completion is handled before the next.
func (o *Output) DrainUntil(done, idle func() bool, max int) (int, error) {
	for n := 0; n < max; n++ {
		if done() {
			return n, nil
		}
		o.Drain()
		deadline := time.Now().Add(SettleTimeout)
		for !idle() {
			if time.Now().After(deadline) {
				return n, ErrStalled
			}
			time.Sleep(20 * time.Microsecond)
		}
	}
	if done() {
		return max, nil
	}
	return max, ErrStalled
}

// Run drains one descriptor per interval until ctx is done, approximating a
// free-running peripheral for interactive use.
func (o *Output) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Drain()
		}
	}
}

// Samples returns a copy of every streamed sample drained so far.
func (o *Output) Samples() []uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]uint32(nil), o.samples...)
}

// ClearSamples forgets the drained sample log.
func (o *Output) ClearSamples() {
	o.mu.Lock()
	o.samples = o.samples[:0]
	o.mu.Unlock()
}

// Passthrough is the value in the passthrough register.
func (o *Output) Passthrough() uint32 {
	return o.passthrough.Load()
}

// Outputs is what the chain currently shows: the passthrough register in
// passthrough, the last streamed sample otherwise.
func (o *Output) Outputs() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sel == output.SelectStream && len(o.samples) > 0 {
		return o.samples[len(o.samples)-1]
	}
	if !o.running && len(o.recovery) > 0 {
		return o.recovery[len(o.recovery)-1]
	}
	return o.passthrough.Load()
}

// Recovery lists the values shifted out by each Stop.
func (o *Output) Recovery() []uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]uint32(nil), o.recovery...)
}

// State reports whether the hardware is running, its output select and
// whether it halted on a cut chain.
func (o *Output) State() (running bool, sel output.OutputSelect, halted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running, o.sel, o.halted
}

// Current is the descriptor the hardware will drain next.
func (o *Output) Current() *dma.Descriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cur
}

// Counters reports descriptors drained, passthrough ticks, simulated time
// in microseconds and the number of starts.
func (o *Output) Counters() (drained, passTicks int, elapsedUS uint64, starts int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.drained, o.passTicks, o.elapsed, o.starts
}
