//go:build !tinygo

package dma

import "context"

// notifier wakes the consumer through a channel with room for one signal.
type notifier chan struct{}

func newNotifier() notifier { return make(notifier, 1) }

func (n notifier) signal() {
	select {
	case n <- struct{}{}:
	default:
	}
}

func (n notifier) wait(ctx context.Context) error {
	select {
	case <-n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
