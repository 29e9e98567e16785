//go:build tinygo

package core

import "runtime/interrupt"

// State is the saved interrupt state of the current core.
type State = interrupt.State

// disableInterrupts disables interrupts and returns the previous state
func disableInterrupts() State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state State) {
	interrupt.Restore(state)
}

// spinWait busy-waits. The holder is on the other core or in an interrupt
// that cannot be preempted by us.
func spinWait() {
}
