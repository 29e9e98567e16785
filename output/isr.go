package output

import "stepstream/dma"

// handleInterrupt runs when the peripheral finishes a descriptor. The whole
// body holds the hardware spin lock, so a concurrent stop either happens
// before (status already cleared, nothing to do) or after it.
//
// A completed descriptor still holds the samples it just sent. If it comes
// round to the hardware again before the fill task refills it, those samples
// would be sent twice. Two descriptors ahead of the hardware is the last
// point where it can be repaired without racing the transfer in flight, so
// a descriptor still queued there is taken from the queue and filled with
// the hold value.
//
// No logging, no allocation, no pulser lock.
func (e *Engine) handleInterrupt() {
	s := e.hw.Lock()
	defer e.hw.Unlock(s)

	eof, terminal := e.periph.Status()
	if eof || terminal {
		if terminal {
			e.periph.Halt()
		}
		if d := e.periph.LastCompleted(); d != nil {
			e.completions.Add(1)
			if old := e.queue.Push(d); old != nil {
				e.repair(old)
			}
			if next := d.Next(); next != nil && !terminal {
				if ahead := next.Next(); ahead != nil && ahead != d && e.queue.Remove(ahead) {
					e.repair(ahead)
				}
			}
		}
	}
	e.periph.ClearInterrupt()
}

// repair fills a descriptor the fill task fell behind on with the last port
// value while Streaming, or zero otherwise. Caller holds the spin lock.
func (e *Engine) repair(d *dma.Descriptor) {
	var hold uint32
	if e.Mode() == Streaming {
		hold = e.port.Value()
	}
	e.ring.ClearOne(d, hold)
	e.underruns.Add(1)
}
