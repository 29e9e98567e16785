//go:build tinygo

package dma

import (
	"context"
	"sync/atomic"
	"time"
)

// pollInterval bounds how long a queued descriptor waits for the consumer.
// It is well below one buffer at any usable tick.
const pollInterval = 50 * time.Microsecond

// notifier is an atomic flag. Channel operations are not allowed in TinyGo
// interrupt handlers, so the consumer polls the flag and sleeps in between.
type notifier struct {
	flag *atomic.Bool
}

func newNotifier() notifier { return notifier{flag: new(atomic.Bool)} }

func (n notifier) signal() { n.flag.Store(true) }

func (n notifier) wait(ctx context.Context) error {
	for !n.flag.Swap(false) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		time.Sleep(pollInterval)
	}
	return nil
}
