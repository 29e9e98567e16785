package output

import (
	"fmt"
	"sync/atomic"
)

// PortWidth is the number of virtual output bits.
const PortWidth = 32

// Port is the virtual output port register. Every access is atomic so it can
// be shared by motion code, the fill task and the interrupt handler without
// a lock.
type Port struct {
	v atomic.Uint32
}

func checkBit(bit int) {
	if bit < 0 || bit >= PortWidth {
		panic(fmt.Sprintf("output: virtual port bit %d out of range 0..%d", bit, PortWidth-1))
	}
}

// Write sets or clears one bit. An out-of-range bit panics.
func (p *Port) Write(bit int, value bool) {
	checkBit(bit)
	mask := uint32(1) << uint(bit)
	for {
		old := p.v.Load()
		next := old &^ mask
		if value {
			next = old | mask
		}
		if old == next || p.v.CompareAndSwap(old, next) {
			return
		}
	}
}

// Read returns one bit. An out-of-range bit panics.
func (p *Port) Read(bit int) bool {
	checkBit(bit)
	return p.v.Load()&(1<<uint(bit)) != 0
}

// Value returns the whole word.
func (p *Port) Value() uint32 {
	return p.v.Load()
}

// Set replaces the whole word.
func (p *Port) Set(v uint32) {
	p.v.Store(v)
}
