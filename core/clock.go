package core

import "sync/atomic"

// The core clock counts microseconds. Firmware advances it from the
// hardware timer; the simulated peripherals advance it as samples drain so
// recorded events carry simulated time.
var clockMicros atomic.Uint32

// Micros returns the current clock in microseconds.
func Micros() uint32 {
	return clockMicros.Load()
}

// SetMicros sets the clock (target integration and tests).
func SetMicros(us uint32) {
	clockMicros.Store(us)
}

// AdvanceMicros moves the clock forward and returns the new value.
func AdvanceMicros(us uint32) uint32 {
	return clockMicros.Add(us)
}

// TicksFromUS converts a duration to whole output ticks, rounding up, the way
// pulse widths are converted to sample counts. A zero tick is treated as 1µs.
func TicksFromUS(us, tickUS uint32) uint32 {
	if tickUS == 0 {
		tickUS = 1
	}
	return (us + tickUS - 1) / tickUS
}
