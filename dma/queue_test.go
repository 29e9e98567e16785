package dma

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	r, _ := NewRing(4, 2, nil, 0)
	q := NewQueue(4)

	for i := 0; i < 3; i++ {
		assert.Nil(t, q.Push(r.At(i)))
	}
	assert.Equal(t, 3, q.Len())
	assert.False(t, q.Full())

	for i := 0; i < 3; i++ {
		d, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, d.Index())
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestQueueEvictsOldest(t *testing.T) {
	r, _ := NewRing(4, 2, nil, 0)
	q := NewQueue(4)

	for i := 0; i < 4; i++ {
		q.Push(r.At(i))
	}
	require.True(t, q.Full())

	evicted := q.Push(r.At(0))
	require.NotNil(t, evicted)
	assert.Equal(t, 0, evicted.Index())
	assert.Equal(t, 4, q.Len())

	var order []int
	for {
		d, ok := q.TryPop()
		if !ok {
			break
		}
		order = append(order, d.Index())
	}
	assert.Equal(t, []int{1, 2, 3, 0}, order)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	r, _ := NewRing(2, 2, nil, 0)
	q := NewQueue(2)

	got := make(chan int, 1)
	go func() {
		d, err := q.Pop(context.Background())
		if err == nil {
			got <- d.Index()
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(r.At(1))
	select {
	case idx := <-got:
		assert.Equal(t, 1, idx)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestQueuePopCancelled(t *testing.T) {
	q := NewQueue(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueueConcurrentProducerConsumer(t *testing.T) {
	r, _ := NewRing(4, 2, nil, 0)
	q := NewQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received int
		evicted  int
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := q.Pop(ctx); err != nil {
				return
			}
			mu.Lock()
			received++
			mu.Unlock()
		}
	}()

	const pushes = 10000
	for i := 0; i < pushes; i++ {
		if q.Push(r.At(i%4)) != nil {
			mu.Lock()
			evicted++
			mu.Unlock()
		}
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received+evicted == pushes
	}, 2*time.Second, time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, q.Len())
}

func TestQueueFlush(t *testing.T) {
	r, _ := NewRing(3, 2, nil, 0)
	q := NewQueue(3)
	q.Push(r.At(0))
	q.Push(r.At(1))

	assert.Equal(t, 2, q.Flush())
	assert.Equal(t, 0, q.Len())

	q.Push(r.At(2))
	d, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 2, d.Index())
}

func TestQueueRemove(t *testing.T) {
	r, _ := NewRing(5, 2, nil, 0)
	q := NewQueue(4)

	// Wrap the head so removal has to cross the end of the slice.
	q.Push(r.At(0))
	q.Push(r.At(1))
	q.TryPop()
	q.TryPop()
	for i := 1; i <= 4; i++ {
		q.Push(r.At(i))
	}

	if !q.Remove(r.At(2)) {
		t.Errorf("Expected descriptor 2 to be removed")
	}
	if q.Remove(r.At(2)) {
		t.Errorf("Expected second removal of descriptor 2 to fail")
	}
	if q.Remove(r.At(0)) {
		t.Errorf("Expected removal of an unqueued descriptor to fail")
	}
	assert.Equal(t, 3, q.Len())
	assert.False(t, q.Full())

	var got []int
	for {
		d, ok := q.TryPop()
		if !ok {
			break
		}
		got = append(got, d.Index())
	}
	assert.Equal(t, []int{1, 3, 4}, got)
}
