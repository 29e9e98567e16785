package stepping

import (
	"errors"

	"stepstream/core"
)

const (
	// Queue size for pending moves
	QueueSize = 16
)

var ErrQueueFull = errors.New("stepping: move queue overflow")

// Move is one queued segment: Count steps, the first Interval µs after the
// move starts, each later step Add µs longer than the one before.
type Move struct {
	Interval uint32
	Count    uint16
	Add      int16
	Reverse  bool
}

// Axis is one stepper motor.
type Axis struct {
	ID          uint8
	MinInterval uint32 // Minimum interval between steps (safety limit)

	backend core.StepperBackend

	// Ring of pending moves
	queue [QueueSize]Move
	head  uint8
	tail  uint8

	// Current move state
	interval uint32
	count    uint16
	add      int16
	reverse  bool
	next     uint64 // generator time of the next step

	position int64
}

func newAxis(id uint8, backend core.StepperBackend, minInterval uint32) *Axis {
	return &Axis{ID: id, backend: backend, MinInterval: minInterval}
}

func (a *Axis) push(m Move) error {
	next := (a.tail + 1) % QueueSize
	if next == a.head {
		return ErrQueueFull
	}
	if m.Interval < a.MinInterval {
		m.Interval = a.MinInterval
	}
	a.queue[a.tail] = m
	a.tail = next
	return nil
}

func (a *Axis) queued() int {
	return int((a.tail + QueueSize - a.head) % QueueSize)
}

// active reports whether the axis has a move running or waiting.
func (a *Axis) active() bool {
	return a.count > 0 || a.head != a.tail
}

// step emits a step if one is due at now. It returns true when a move
// finished with this step.
func (a *Axis) step(now uint64) bool {
	if a.count == 0 || now < a.next {
		return false
	}
	a.backend.Step()
	if a.reverse {
		a.position--
	} else {
		a.position++
	}
	a.count--

	if a.add != 0 {
		iv := int64(a.interval) + int64(a.add)
		if iv < int64(a.MinInterval) {
			iv = int64(a.MinInterval)
		}
		a.interval = uint32(iv)
	}
	a.next += uint64(a.interval)
	return a.count == 0
}

// load starts the next queued move if the axis is idle. Direction is set
// here, at least one callback ahead of the move's first step.
func (a *Axis) load(now uint64) {
	if a.count > 0 || a.head == a.tail {
		return
	}
	m := a.queue[a.head]
	a.head = (a.head + 1) % QueueSize
	if m.Count == 0 {
		return
	}
	a.interval = m.Interval
	a.count = m.Count
	a.add = m.Add
	a.reverse = m.Reverse
	a.backend.SetDirection(m.Reverse)
	a.next = now + uint64(m.Interval)
}

func (a *Axis) stop() {
	a.count = 0
	a.head, a.tail = 0, 0
	a.backend.Stop()
}
