package input

import (
	"context"
	"time"

	"stepstream/core"
)

// DefaultPollInterval matches the scan rate used when no capture
// peripheral is available.
const DefaultPollInterval = 10 * time.Millisecond

// ShiftReader reads the whole chain once. The first bit shifted in is the
// most significant bit of the chain, the layout a capture peripheral gives
// after the chip shift.
type ShiftReader interface {
	ReadChain() (uint32, error)
}

// Poller feeds a Port from a ShiftReader on a timer instead of from a
// capture interrupt. Handlers then run on the poller goroutine. A Port fed
// only by a Poller needs no Init.
type Poller struct {
	Port     *Port
	Reader   ShiftReader
	Interval time.Duration
}

// Run polls until ctx is done. Read errors are logged and the previous
// value is kept.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(); err != nil {
			core.DebugPrintln("input: poll failed: " + err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll reads the chain once and applies the value.
func (p *Poller) Poll() error {
	v, err := p.Reader.ReadChain()
	if err != nil {
		return err
	}
	old := p.Port.Value()
	p.Port.update(v)
	if old != v {
		core.RecordEvent(core.EvtInputChange, 0, old, v)
	}
	return nil
}
