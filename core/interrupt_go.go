//go:build !tinygo

package core

import "runtime"

// State is the saved interrupt state. There are no interrupts on the host,
// so it carries nothing.
type State uintptr

// disableInterrupts is a no-op on regular Go (for testing)
func disableInterrupts() State {
	return 0
}

// restoreInterrupts is a no-op on regular Go (for testing)
func restoreInterrupts(state State) {
}

// spinWait yields so the lock holder's goroutine can run.
func spinWait() {
	runtime.Gosched()
}
