package output

import (
	"context"
	"strconv"

	"stepstream/core"
	"stepstream/dma"
)

func (e *Engine) fillTask(ctx context.Context) {
	defer close(e.done)
	for {
		d, err := e.queue.Pop(ctx)
		if err != nil {
			return
		}
		e.refill(d)
	}
}

// refill prepares a completed descriptor for its next trip through the
// hardware according to the current mode.
func (e *Engine) refill(d *dma.Descriptor) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.reportUnderruns()

	switch e.Mode() {
	case Streaming:
		e.fillStreaming(d)
	case Draining:
		if d.IsTail() {
			core.RecordEvent(core.EvtDrainDone, uint8(d.Index()), e.port.Value(), 0)
			e.enterStatic()
			break
		}
		e.ring.ClearOne(d, e.port.Value())
		e.cut(d)
		e.cur, e.pos = d, 0
	default:
		e.ring.ClearOne(d, 0)
		e.cur, e.pos = d, 0
	}
	e.refills.Add(1)
}

// fillStreaming writes one buffer tick by tick, calling the pulse callback
// whenever a pulse is due. The last safeCount ticks are left unused: a pulse
// due there is emitted at the start of the next buffer instead.
//
// The buffer is first cleared to the port value, so if the callback stalls
// the hardware sends a held port instead of the previous lap's samples.
func (e *Engine) fillStreaming(d *dma.Descriptor) {
	e.ring.ClearOne(d, e.port.Value())
	e.cur, e.pos = d, 0
	tick := int64(e.cfg.TickUS)
	limit := d.Cap() - e.safeCount

	for e.pos < limit {
		if e.remaining < tick && e.pulse != nil && e.Mode() == Streaming {
			start := e.pos
			pattern := e.callPulse()

			// Only the mode may change across the callback. If a reset or
			// restart rewrote the ring meanwhile, d already holds a clean
			// full-length buffer and must be left alone.
			if e.cur != d {
				return
			}
			if pattern != e.port.Value() {
				for i := 0; i < e.pulseTicks && e.pos < d.Cap(); i++ {
					d.Store(e.pos, pattern)
					e.pos++
				}
			}
			e.remaining += int64(e.period) - tick*int64(e.pos-start)
			if e.Mode() == Draining {
				e.cut(d)
			}
			continue
		}

		d.Store(e.pos, e.port.Value())
		e.pos++
		if e.remaining >= tick {
			e.remaining -= tick
		}
	}
	d.SetLen(e.pos)
}

// callPulse runs the pulse callback with the pulser lock released.
func (e *Engine) callPulse() uint32 {
	e.mu.Unlock()
	defer e.mu.Lock()
	return e.pulse()
}

// cut marks d as the chain tail so the hardware halts after it.
func (e *Engine) cut(d *dma.Descriptor) {
	if d.IsTail() {
		return
	}
	d.Cut()
	e.cutPending = true
	core.RecordEvent(core.EvtChainCut, uint8(d.Index()), 0, 0)
}

// reportUnderruns logs repairs made by the interrupt since the last refill.
func (e *Engine) reportUnderruns() {
	n := e.underruns.Load()
	if n == e.seenUnder {
		return
	}
	e.seenUnder = n
	core.RecordEvent(core.EvtUnderrun, 0, uint32(n), 0)
	core.DebugPrintln("output: underrun, total " + strconv.FormatUint(n, 10))
}
