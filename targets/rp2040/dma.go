//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"math/bits"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"
)

// dmaChannel is one channel's register block.
type dmaChannel struct {
	READ_ADDR            volatile.Register32
	WRITE_ADDR           volatile.Register32
	TRANS_COUNT          volatile.Register32
	CTRL_TRIG            volatile.Register32
	AL1_CTRL             volatile.Register32
	AL1_READ_ADDR        volatile.Register32
	AL1_WRITE_ADDR       volatile.Register32
	AL1_TRANS_COUNT_TRIG volatile.Register32
	AL2_CTRL             volatile.Register32
	AL2_TRANS_COUNT      volatile.Register32
	AL2_READ_ADDR        volatile.Register32
	AL2_WRITE_ADDR_TRIG  volatile.Register32
	AL3_CTRL             volatile.Register32
	AL3_WRITE_ADDR       volatile.Register32
	AL3_TRANS_COUNT      volatile.Register32
	AL3_READ_ADDR_TRIG   volatile.Register32
}

const dmaChannels = 12

var (
	dmaRegs     = unsafe.Slice((*dmaChannel)(unsafe.Pointer(&rp.DMA.CH0_READ_ADDR)), dmaChannels)
	dmaReserved uint16

	// IRQ 0 dispatches to one handler per channel.
	dmaHandlers [dmaChannels]func()
	dmaIRQ      interrupt.Interrupt
)

func init() {
	dmaIRQ = interrupt.New(rp.IRQ_DMA_IRQ_0, handleDMAIRQ0)
}

func reserveDMA() (uint8, error) {
	ch := bits.TrailingZeros16(^dmaReserved)
	if ch >= dmaChannels {
		return 0, errors.New("no available DMA channel")
	}
	dmaReserved |= 1 << ch
	return uint8(ch), nil
}

func releaseDMA(ch uint8) {
	dmaReserved &^= 1 << ch
}

// setDMAInterrupt routes channel completions to handler, or disables the
// channel's interrupt when handler is nil.
func setDMAInterrupt(ch uint8, handler func()) error {
	mask := interrupt.Disable()
	defer interrupt.Restore(mask)

	if handler == nil {
		rp.DMA.INTE0.ClearBits(1 << ch)
		dmaHandlers[ch] = nil
		if rp.DMA.INTE0.Get() == 0 {
			dmaIRQ.Disable()
		}
		return nil
	}
	if dmaHandlers[ch] != nil {
		return errors.New("DMA channel interrupt already in use")
	}
	dmaHandlers[ch] = handler
	rp.DMA.INTS0.Set(1 << ch)
	rp.DMA.INTE0.SetBits(1 << ch)
	dmaIRQ.Enable()
	return nil
}

func handleDMAIRQ0(interrupt.Interrupt) {
	// Acknowledge before dispatch so a completion during a handler raises
	// the interrupt again.
	pending := rp.DMA.INTS0.Get()
	rp.DMA.INTS0.Set(pending)
	for pending != 0 {
		ch := bits.TrailingZeros32(pending)
		pending &^= 1 << ch
		if ch < dmaChannels && dmaHandlers[ch] != nil {
			dmaHandlers[ch]()
		}
	}
}

// abortDMA stops a channel and waits for the abort to settle.
func abortDMA(ch uint8) {
	c := &dmaRegs[ch]
	c.CTRL_TRIG.ClearBits(rp.DMA_CH0_CTRL_TRIG_EN)
	rp.DMA.CHAN_ABORT.Set(1 << ch)
	for rp.DMA.CHAN_ABORT.Get() != 0 {
	}
}
