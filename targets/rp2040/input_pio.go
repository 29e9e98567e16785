//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"unsafe"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"stepstream/core"
	"stepstream/dma"
)

// PIO program reading a 74HC165 chain, one 32-bit word per pass.
//
// SET pins are clock (bit 0) and SH/LD (bit 1), so as for the output the
// SH/LD pin must follow the clock pin. IN shifts left with autopush at 32:
// the first bit read, QH of the chip nearest the controller, ends up in bit
// 31. With fewer than four chips the low bytes hold whatever the last
// chip's serial input presents and the port drops them.
func buildCaptureProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Set(rp2pio.SetDestPins, 0).Encode(), // 0: set pins, 0 (SH/LD low: load)
		asm.Set(rp2pio.SetDestPins, 2).Encode(), // 1: set pins, 2 (shift mode)
		pioSetY31,                               // 2: set y, 31
		// bitloop:
		pioInPins1,                               // 3: in pins, 1
		asm.Set(rp2pio.SetDestPins, 3).Encode(),  // 4: set pins, 3 (clock high)
		asm.Set(rp2pio.SetDestPins, 2).Encode(),  // 5: set pins, 2 (clock low)
		asm.Jmp(3, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, 3
		// .wrap
	}
}

const (
	pioInPins1 = 0x4000 | 0x00<<5 | 1 // in pins, 1

	captureOrigin = -1

	// Cycles per word: two loads, set y, 32 * (in, set, set, jmp).
	captureCyclesPerWord = 3 + 32*4

	// DefaultScanUS is the time between two captured words.
	DefaultScanUS = 100

	// PIO0 RX DREQs follow the four TX DREQs.
	dreqPIO0RX0 = 4
)

// PIOInput implements input.Peripheral with a second PIO0 state machine and
// one DMA channel writing captured words into the descriptor ring.
type PIOInput struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	cfg    rp2pio.StateMachineConfig
	offset uint8
	ch     uint8
	ctrl   uint32
	pins   core.ShiftPins
	gpio   *RPGPIODriver
	scanUS uint32

	isr      func()
	attached bool

	// Accessed with interrupts disabled or from the DMA interrupt.
	running bool
	cur     *dma.Descriptor
	last    *dma.Descriptor
	pending bool
}

func NewPIOInput(gpio *RPGPIODriver, scanUS uint32) *PIOInput {
	if scanUS == 0 {
		scanUS = DefaultScanUS
	}
	return &PIOInput{pio: rp2pio.PIO0, gpio: gpio, scanUS: scanUS}
}

func (in *PIOInput) Capabilities(pin core.GPIOPin) core.PinCaps {
	return in.gpio.Capabilities(pin)
}

func (in *PIOInput) Alloc(words int) ([]uint32, error) {
	return make([]uint32, words), nil
}

func (in *PIOInput) Attach(pins core.ShiftPins, isr func()) error {
	if in.attached {
		return errors.New("rp2040: input already attached")
	}
	if pins.Latch != pins.Clock+1 {
		return errPinOrder
	}
	sm, err := in.pio.ClaimStateMachine()
	if err != nil {
		return err
	}
	in.sm = sm
	program := buildCaptureProgram()
	offset, err := in.pio.AddProgram(program, captureOrigin)
	if err != nil {
		sm.Unclaim()
		return err
	}
	in.offset = offset

	ch, err := reserveDMA()
	if err != nil {
		sm.Unclaim()
		return err
	}
	in.ch = ch
	c := &dmaRegs[ch]
	c.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(in.sm.RxReg()))))
	in.ctrl = rp.DMA_CH0_CTRL_TRIG_EN |
		rp.DMA_CH0_CTRL_TRIG_INCR_WRITE |
		rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_SIZE_WORD<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos |
		// Don't chain.
		uint32(ch)<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos |
		// Pace transfers by the pio RX FIFO.
		uint32(dreqPIO0RX0+in.sm.StateMachineIndex())<<rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos

	in.pins = pins
	in.cfg = rp2pio.DefaultStateMachineConfig()
	in.cfg.SetSetPins(machine.Pin(pins.Clock), 2)
	in.cfg.SetInPins(machine.Pin(pins.Data))
	in.cfg.SetInShift(false, true, 32)
	in.cfg.SetWrap(offset, offset+uint8(len(program))-1)
	whole, frac := scanDivider(machine.CPUFrequency(), in.scanUS)
	in.cfg.SetClkDivIntFrac(whole, frac)

	in.isr = isr
	if err := setDMAInterrupt(ch, in.handleDMA); err != nil {
		releaseDMA(ch)
		sm.Unclaim()
		return err
	}
	in.attached = true
	return nil
}

// scanDivider makes one capture pass last scanUS.
func scanDivider(cpuHz, scanUS uint32) (uint16, uint8) {
	div256 := uint64(cpuHz) * uint64(scanUS) * 256 / (uint64(captureCyclesPerWord) * 1000000)
	if div256 < 256 {
		div256 = 256
	}
	if div256 > 0xffffff {
		div256 = 0xffffff
	}
	return uint16(div256 >> 8), uint8(div256)
}

func (in *PIOInput) Detach() error {
	if !in.attached {
		return nil
	}
	setDMAInterrupt(in.ch, nil)
	abortDMA(in.ch)
	releaseDMA(in.ch)
	in.sm.SetEnabled(false)
	in.sm.Unclaim()
	in.attached = false
	return nil
}

func (in *PIOInput) Start(head *dma.Descriptor) {
	machine.Pin(in.pins.Clock).Configure(machine.PinConfig{Mode: in.pio.PinMode()})
	machine.Pin(in.pins.Latch).Configure(machine.PinConfig{Mode: in.pio.PinMode()})
	machine.Pin(in.pins.Data).Configure(machine.PinConfig{Mode: in.pio.PinMode()})

	in.sm.Init(in.offset, in.cfg)
	in.sm.SetPindirsConsecutive(machine.Pin(in.pins.Clock), 2, true)
	in.sm.SetPindirsConsecutive(machine.Pin(in.pins.Data), 1, false)

	in.running = true
	in.pending = false
	in.last = nil
	in.transfer(head)
	in.sm.SetEnabled(true)
}

func (in *PIOInput) transfer(d *dma.Descriptor) {
	in.cur = d
	words := d.Words()
	c := &dmaRegs[in.ch]
	c.AL1_CTRL.Set(in.ctrl)
	c.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(unsafe.SliceData(words)))))
	c.AL1_TRANS_COUNT_TRIG.Set(uint32(d.Cap()))
}

func (in *PIOInput) Stop() {
	abortDMA(in.ch)
	in.sm.SetEnabled(false)
	in.sm.ClearFIFOs()
	in.running = false
	in.pending = false
	in.cur = nil
}

func (in *PIOInput) Status() bool {
	return in.pending
}

func (in *PIOInput) LastCompleted() *dma.Descriptor {
	return in.last
}

func (in *PIOInput) ClearInterrupt() {
	in.pending = false
}

// handleDMA runs in the DMA interrupt: it re-arms the channel on the next
// descriptor before handing the filled one to the port.
func (in *PIOInput) handleDMA() {
	if !in.running || in.cur == nil {
		return
	}
	d := in.cur
	d.SetLen(d.Cap())
	in.last = d
	in.pending = true
	next := d.Next()
	if next == nil {
		next = d
	}
	in.transfer(next)
	if in.isr != nil {
		in.isr()
	}
}
