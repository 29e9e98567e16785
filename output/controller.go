package output

import (
	"fmt"

	"stepstream/core"
)

// RequestMode asks for a mode change on behalf of the motion subsystem.
// Streaming starts stepping, Draining finishes in-flight samples and then
// goes Static, Static is the hard reset path.
func (e *Engine) RequestMode(m Mode) error {
	switch m {
	case Streaming:
		return e.SetStepping()
	case Draining:
		return e.SetPassthrough()
	case Static:
		return e.Reset()
	}
	return fmt.Errorf("output: unknown mode %d", m)
}

// SetStepping switches to Streaming. It is a no-op when already Streaming.
// While Draining it cancels the drain if no link has been cut yet, otherwise
// it waits for the drain to finish.
func (e *Engine) SetStepping() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return err
	}
	for e.Mode() == Draining {
		if !e.cutPending {
			e.setMode(Streaming)
			return nil
		}
		e.drained.Wait()
		if e.closed {
			return ErrClosed
		}
	}
	if e.Mode() == Streaming {
		return nil
	}

	e.stop()
	e.discard()
	e.ring.ClearAll(e.port.Value())
	e.cur, e.pos = nil, 0
	e.remaining = 0
	e.setMode(Streaming)
	e.start()
	return nil
}

// SetPassthrough asks a Streaming engine to drain and return to Static.
// Only the mode changes here; the fill task cuts the chain on its next pass.
func (e *Engine) SetPassthrough() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return err
	}
	if e.Mode() == Streaming {
		e.setMode(Draining)
	}
	return nil
}

// Reset drops to Static immediately, abandoning in-flight samples, and
// re-clears the ring with the current port value.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return err
	}
	core.RecordEvent(core.EvtReset, 0, uint32(e.Mode()), 0)
	e.enterStatic()
	return nil
}

// WaitStatic blocks until the engine is Static or closed.
func (e *Engine) WaitStatic() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.Mode() != Static {
		e.drained.Wait()
	}
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *Engine) usable() error {
	if e.closed {
		return ErrClosed
	}
	if !e.initialized {
		return ErrNotInitialized
	}
	return nil
}

// enterStatic restarts the peripheral in passthrough with every descriptor
// holding the port value. Caller holds mu.
func (e *Engine) enterStatic() {
	e.stop()
	e.discard()
	e.ring.ClearAll(e.port.Value())
	e.cur, e.pos = nil, 0
	e.remaining = 0
	e.cutPending = false
	e.setMode(Static)
	e.start()
	e.drained.Broadcast()
}

// setMode stores the new mode. Caller holds mu.
func (e *Engine) setMode(m Mode) {
	from := Mode(e.mode.Swap(uint32(m)))
	if from == m {
		return
	}
	core.RecordEvent(core.EvtModeChange, 0, uint32(from), uint32(m))
	core.DebugPrintln("output: " + from.String() + " -> " + m.String())
}

func (e *Engine) stop() {
	v := e.port.Value()
	s := e.hw.Lock()
	e.periph.Stop(v)
	e.hw.Unlock(s)
	core.RecordEvent(core.EvtStop, 0, v, 0)
}

func (e *Engine) start() {
	sel := SelectPassthrough
	if e.Mode() != Static {
		sel = SelectStream
	}
	v := e.port.Value()
	s := e.hw.Lock()
	e.periph.Start(e.ring.Head(), sel, v)
	e.hw.Unlock(s)
	core.RecordEvent(core.EvtStart, 0, v, uint32(sel))

	// A Write that saw Static before the restart published its word to the
	// register, and Start just replaced it with v.
	if sel == SelectPassthrough {
		e.syncPassthrough()
	}
}

// discard drops completions reported before a restart; their descriptors
// were just rewritten by ClearAll.
func (e *Engine) discard() {
	if n := e.queue.Flush(); n > 0 {
		e.discarded.Add(uint64(n))
	}
}
