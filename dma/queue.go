package dma

import (
	"context"

	"stepstream/core"
)

// Queue is the bounded FIFO that carries completed descriptors from an
// interrupt handler to the task that refills them. Push never blocks and
// never allocates; when the queue is full the oldest entry is evicted and
// returned so the caller can repair it.
type Queue struct {
	lock  core.SpinLock
	items []*Descriptor
	head  int
	n     int

	// The consumer re-checks the queue after every wakeup, so coalesced
	// signals lose nothing.
	wake notifier
}

// NewQueue returns an empty queue holding at most capacity descriptors.
func NewQueue(capacity int) *Queue {
	return &Queue{
		items: make([]*Descriptor, capacity),
		wake:  newNotifier(),
	}
}

// Cap is the queue capacity.
func (q *Queue) Cap() int { return len(q.items) }

// Len is the number of queued descriptors.
func (q *Queue) Len() int {
	s := q.lock.Lock()
	n := q.n
	q.lock.Unlock(s)
	return n
}

// Full reports whether the next Push will evict.
func (q *Queue) Full() bool {
	s := q.lock.Lock()
	full := q.n == len(q.items)
	q.lock.Unlock(s)
	return full
}

// Push appends d. If the queue was full, the oldest entry is removed first
// and returned; otherwise the result is nil. Safe from interrupt context.
func (q *Queue) Push(d *Descriptor) (evicted *Descriptor) {
	s := q.lock.Lock()
	if q.n == len(q.items) {
		evicted = q.items[q.head]
		q.items[q.head] = nil
		q.head = (q.head + 1) % len(q.items)
		q.n--
	}
	q.items[(q.head+q.n)%len(q.items)] = d
	q.n++
	q.lock.Unlock(s)

	q.wake.signal()
	return evicted
}

// Remove takes d out of the queue wherever it is and reports whether it was
// queued. Entries behind it keep their order. Safe from interrupt context.
func (q *Queue) Remove(d *Descriptor) bool {
	s := q.lock.Lock()
	defer q.lock.Unlock(s)
	size := len(q.items)
	for i := 0; i < q.n; i++ {
		if q.items[(q.head+i)%size] != d {
			continue
		}
		for j := i; j < q.n-1; j++ {
			q.items[(q.head+j)%size] = q.items[(q.head+j+1)%size]
		}
		q.n--
		q.items[(q.head+q.n)%size] = nil
		return true
	}
	return false
}

// TryPop removes the oldest descriptor without blocking.
func (q *Queue) TryPop() (*Descriptor, bool) {
	s := q.lock.Lock()
	if q.n == 0 {
		q.lock.Unlock(s)
		return nil, false
	}
	d := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.n--
	q.lock.Unlock(s)
	return d, true
}

// Pop blocks until a descriptor is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (*Descriptor, error) {
	for {
		if d, ok := q.TryPop(); ok {
			return d, nil
		}
		if err := q.wake.wait(ctx); err != nil {
			return nil, err
		}
	}
}

// Flush drops every queued descriptor and returns how many were dropped.
func (q *Queue) Flush() int {
	s := q.lock.Lock()
	n := q.n
	for i := range q.items {
		q.items[i] = nil
	}
	q.head, q.n = 0, 0
	q.lock.Unlock(s)
	return n
}
