package sim

import (
	"sync"

	"stepstream/core"
	"stepstream/dma"
)

// Input simulates a capture peripheral reading a 74HC165 style chain.
type Input struct {
	Caps     map[core.GPIOPin]core.PinCaps
	AllocErr error

	mu       sync.Mutex
	attached bool
	isr      func()
	running  bool
	cur      *dma.Descriptor
	last     *dma.Descriptor
	pending  bool
}

// NewInput returns an unattached simulated input peripheral.
func NewInput() *Input {
	return &Input{}
}

func (in *Input) Capabilities(pin core.GPIOPin) core.PinCaps {
	if c, ok := in.Caps[pin]; ok {
		return c
	}
	if pin < 40 {
		return DefaultCaps
	}
	return 0
}

func (in *Input) Alloc(words int) ([]uint32, error) {
	if in.AllocErr != nil {
		return nil, in.AllocErr
	}
	return dma.HeapAllocator(words)
}

func (in *Input) Attach(pins core.ShiftPins, isr func()) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.attached {
		return ErrHandlerBusy
	}
	in.attached = true
	in.isr = isr
	return nil
}

func (in *Input) Detach() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.attached {
		return ErrNotAttached
	}
	in.attached = false
	in.running = false
	in.isr = nil
	return nil
}

func (in *Input) Start(head *dma.Descriptor) {
	in.mu.Lock()
	in.running = true
	in.cur = head
	in.mu.Unlock()
}

func (in *Input) Stop() {
	in.mu.Lock()
	in.running = false
	in.pending = false
	in.mu.Unlock()
}

func (in *Input) Status() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.pending
}

func (in *Input) LastCompleted() *dma.Descriptor {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.last
}

func (in *Input) ClearInterrupt() {
	in.mu.Lock()
	in.pending = false
	in.mu.Unlock()
}

// Feed captures raw into every sample of the current descriptor, completes
// it and raises the interrupt. raw is the word as shifted in, so with fewer
// than four chips the data sits in the high bytes.
func (in *Input) Feed(raw uint32) bool {
	in.mu.Lock()
	if !in.running || in.cur == nil {
		in.mu.Unlock()
		return false
	}
	d := in.cur
	d.Fill(raw)
	in.last = d
	in.cur = d.Next()
	in.pending = true
	isr := in.isr
	in.mu.Unlock()

	if isr != nil {
		isr()
	}
	return true
}

// FeedScans writes successive captured words into the current descriptor,
// oldest first, then completes it like Feed.
func (in *Input) FeedScans(raw ...uint32) bool {
	in.mu.Lock()
	if !in.running || in.cur == nil {
		in.mu.Unlock()
		return false
	}
	d := in.cur
	for i := 0; i < d.Cap() && i < len(raw); i++ {
		d.Store(i, raw[i])
	}
	d.SetLen(min(len(raw), d.Cap()))
	in.last = d
	in.cur = d.Next()
	in.pending = true
	isr := in.isr
	in.mu.Unlock()

	if isr != nil {
		isr()
	}
	return true
}

// FeedValue feeds v as a chain of chips would present it.
func (in *Input) FeedValue(v uint32, chips int) bool {
	return in.Feed(v << (uint(4-chips) * 8))
}
