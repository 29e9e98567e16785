package core

import "sync/atomic"

// SpinLock is a critical section usable from both interrupt handlers and
// tasks. Lock disables interrupts on the calling core and then spins on an
// atomic flag, which also excludes the other core on multicore targets.
//
// Hold it only for short register sequences. Never take a sync.Mutex while
// holding a SpinLock, and never block inside one.
type SpinLock struct {
	held atomic.Uint32
}

// Lock enters the critical section and returns the interrupt state that
// Unlock must restore.
func (l *SpinLock) Lock() State {
	s := disableInterrupts()
	for !l.held.CompareAndSwap(0, 1) {
		restoreInterrupts(s)
		spinWait()
		s = disableInterrupts()
	}
	return s
}

// TryLock enters the critical section only if it is free.
func (l *SpinLock) TryLock() (State, bool) {
	s := disableInterrupts()
	if !l.held.CompareAndSwap(0, 1) {
		restoreInterrupts(s)
		return s, false
	}
	return s, true
}

// Unlock leaves the critical section.
func (l *SpinLock) Unlock(s State) {
	l.held.Store(0)
	restoreInterrupts(s)
}

// Held reports whether some context currently owns the lock.
func (l *SpinLock) Held() bool {
	return l.held.Load() != 0
}
