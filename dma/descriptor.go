// Package dma holds the descriptor ring shared by the output engine and the
// input mirror: fixed sample buffers linked into a circle that a peripheral
// walks on its own, and the bounded queue that hands completed descriptors
// from the interrupt handler back to a task.
package dma

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	ErrRingSize   = errors.New("dma: ring needs at least two descriptors")
	ErrBufferSize = errors.New("dma: buffer length must be positive")
)

// Descriptor wraps one sample buffer with the metadata the peripheral reads:
// valid length and the link to the next descriptor. Samples, length and link
// are accessed atomically because the peripheral reads them concurrently
// with the task that refills them.
type Descriptor struct {
	index  int
	buf    []uint32
	length atomic.Uint32
	next   atomic.Pointer[Descriptor]
}

// Index is the descriptor's position in its ring.
func (d *Descriptor) Index() int { return d.index }

// Cap is the nominal (full) buffer length in samples.
func (d *Descriptor) Cap() int { return len(d.buf) }

// Len is the number of valid samples.
func (d *Descriptor) Len() int { return int(d.length.Load()) }

// SetLen sets the number of valid samples, clamped to the buffer size.
func (d *Descriptor) SetLen(n int) {
	if n > len(d.buf) {
		n = len(d.buf)
	}
	if n < 0 {
		n = 0
	}
	d.length.Store(uint32(n))
}

// Next returns the linked descriptor, or nil when this is the chain tail.
func (d *Descriptor) Next() *Descriptor { return d.next.Load() }

// IsTail reports whether the chain has been cut after this descriptor.
func (d *Descriptor) IsTail() bool { return d.next.Load() == nil }

// Cut unlinks the descriptor so the peripheral halts after draining it.
func (d *Descriptor) Cut() { d.next.Store(nil) }

// Sample returns sample i.
func (d *Descriptor) Sample(i int) uint32 {
	return atomic.LoadUint32(&d.buf[i])
}

// Store writes sample i.
func (d *Descriptor) Store(i int, v uint32) {
	atomic.StoreUint32(&d.buf[i], v)
}

// Fill writes v to every sample and restores the full length.
func (d *Descriptor) Fill(v uint32) {
	for i := range d.buf {
		atomic.StoreUint32(&d.buf[i], v)
	}
	d.length.Store(uint32(len(d.buf)))
}

// Snapshot copies the valid samples into dst and returns it.
func (d *Descriptor) Snapshot(dst []uint32) []uint32 {
	n := d.Len()
	for i := 0; i < n; i++ {
		dst = append(dst, atomic.LoadUint32(&d.buf[i]))
	}
	return dst
}

// Words exposes the backing memory for peripherals that program its
// address into DMA registers.
func (d *Descriptor) Words() []uint32 { return d.buf }

// Allocator hands out DMA-capable sample memory.
type Allocator func(words int) ([]uint32, error)

// HeapAllocator allocates from the Go heap. On targets where every RAM bank
// is DMA reachable (RP2040, host simulation) this is all that is needed.
func HeapAllocator(words int) ([]uint32, error) {
	if words <= 0 {
		return nil, ErrBufferSize
	}
	return make([]uint32, words), nil
}

// Ring is a fixed circle of descriptors. It is built once; afterwards the
// peripheral walks it and software only refills buffers and edits links.
type Ring struct {
	descs []*Descriptor
}

// NewRing allocates count buffers of words samples each and links them
// circularly, every buffer pre-filled with fill.
func NewRing(count, words int, alloc Allocator, fill uint32) (*Ring, error) {
	if count < 2 {
		return nil, ErrRingSize
	}
	if words <= 0 {
		return nil, ErrBufferSize
	}
	if alloc == nil {
		alloc = HeapAllocator
	}
	r := &Ring{descs: make([]*Descriptor, count)}
	for i := range r.descs {
		buf, err := alloc(words)
		if err != nil {
			return nil, fmt.Errorf("dma: allocate buffer %d: %w", i, err)
		}
		if len(buf) != words {
			return nil, fmt.Errorf("dma: allocator returned %d words, want %d", len(buf), words)
		}
		r.descs[i] = &Descriptor{index: i, buf: buf}
	}
	r.ClearAll(fill)
	return r, nil
}

// Len is the number of descriptors.
func (r *Ring) Len() int { return len(r.descs) }

// Head is the descriptor a freshly started peripheral begins with.
func (r *Ring) Head() *Descriptor { return r.descs[0] }

// At returns descriptor i.
func (r *Ring) At(i int) *Descriptor { return r.descs[i] }

// Words is the nominal buffer length in samples.
func (r *Ring) Words() int { return r.descs[0].Cap() }

// Samples is the total nominal sample count of the ring.
func (r *Ring) Samples() int { return len(r.descs) * r.Words() }

// ClearAll refills every buffer with v at full length and re-links the
// circle. Only call it while the peripheral is stopped.
func (r *Ring) ClearAll(v uint32) {
	for i, d := range r.descs {
		d.Fill(v)
		d.next.Store(r.descs[(i+1)%len(r.descs)])
	}
}

// ClearOne refills a single descriptor with v at full length. Its link is
// left as it is.
func (r *Ring) ClearOne(d *Descriptor, v uint32) {
	d.Fill(v)
}

// Tails counts descriptors whose link is cut.
func (r *Ring) Tails() int {
	n := 0
	for _, d := range r.descs {
		if d.IsTail() {
			n++
		}
	}
	return n
}
