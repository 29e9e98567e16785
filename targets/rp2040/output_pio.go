//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"math/bits"
	"unsafe"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
	"tinygo.org/x/drivers/shiftregister"

	"stepstream/core"
	"stepstream/dma"
	"stepstream/output"
)

// PIO program shifting one 32-bit word per tick into a 74HC595 chain.
//
// SET pins are clock (bit 0) and latch (bit 1), so the latch pin must follow
// the clock pin. OUT pins is the data line, MSB first. pull noblock copies X
// into OSR when the FIFO is empty, and X always holds the last word, so the
// chain keeps repeating it: that is both passthrough and the hold value when
// the DMA chain ends.
func buildShiftProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, false).Encode(), // 0: pull noblock
		pioMovXOSR,                      // 1: mov x, osr
		pioSetY31,                       // 2: set y, 31
		// bitloop:
		asm.Set(rp2pio.SetDestPins, 0).Encode(), // 3: set pins, 0 (clock low, latch low)
		asm.Out(rp2pio.OutDestPins, 1).Encode(), // 4: out pins, 1
		asm.Set(rp2pio.SetDestPins, 1).Encode(), // 5: set pins, 1 (clock high)
		asm.Jmp(3, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, 3
		asm.Set(rp2pio.SetDestPins, 2).Encode(), // 7: set pins, 2 (latch high)
		// .wrap
	}
}

// Raw encodings for instructions the assembler is not used for.
const (
	pioMovXOSR = 0xa000 | 0x20 | 0x07 // mov x, osr
	pioSetY31  = 0xe000 | 0x40 | 31   // set y, 31

	shiftOrigin = 0

	// Cycles per word: pull, mov, set y, 32 * (set, out, set, jmp), latch.
	cyclesPerWord = 3 + 32*4 + 1
)

var errPinOrder = errors.New("rp2040: latch pin must be clock pin + 1")

// PIOOutput implements output.Peripheral with PIO0 and one DMA channel. The
// channel is re-armed from the completion interrupt for each descriptor.
type PIOOutput struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	cfg    rp2pio.StateMachineConfig
	offset uint8
	ch     uint8
	ctrl   uint32
	pins   core.ShiftPins
	gpio   *RPGPIODriver

	recovery *shiftregister.Device
	isr      func()
	attached bool

	// Accessed with interrupts disabled or from the DMA interrupt.
	running  bool
	sel      output.OutputSelect
	cur      *dma.Descriptor
	last     *dma.Descriptor
	eof      bool
	terminal bool
}

func NewPIOOutput(gpio *RPGPIODriver) *PIOOutput {
	return &PIOOutput{pio: rp2pio.PIO0, gpio: gpio}
}

func (o *PIOOutput) Capabilities(pin core.GPIOPin) core.PinCaps {
	return o.gpio.Capabilities(pin)
}

// Alloc returns heap memory; every RP2040 SRAM bank is DMA reachable.
func (o *PIOOutput) Alloc(words int) ([]uint32, error) {
	return make([]uint32, words), nil
}

func (o *PIOOutput) Attach(pins core.ShiftPins, tickUS uint32, isr func()) error {
	if o.attached {
		return errors.New("rp2040: output already attached")
	}
	if pins.Latch != pins.Clock+1 {
		return errPinOrder
	}
	sm, err := o.pio.ClaimStateMachine()
	if err != nil {
		return err
	}
	o.sm = sm
	program := buildShiftProgram()
	offset, err := o.pio.AddProgram(program, shiftOrigin)
	if err != nil {
		sm.Unclaim()
		return err
	}
	o.offset = offset

	ch, err := reserveDMA()
	if err != nil {
		sm.Unclaim()
		return err
	}
	o.ch = ch
	c := &dmaRegs[ch]
	c.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(o.sm.TxReg()))))
	o.ctrl = rp.DMA_CH0_CTRL_TRIG_EN |
		rp.DMA_CH0_CTRL_TRIG_INCR_READ |
		rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_SIZE_WORD<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos |
		// Don't chain.
		uint32(ch)<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos |
		// Pace transfers by the pio TX FIFO.
		uint32(o.sm.StateMachineIndex())<<rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos |
		rp.DMA_CH0_CTRL_TRIG_HIGH_PRIORITY

	o.pins = pins
	o.cfg = rp2pio.DefaultStateMachineConfig()
	o.cfg.SetSetPins(machine.Pin(pins.Clock), 2)
	o.cfg.SetOutPins(machine.Pin(pins.Data), 1)
	// Shift left so the MSB leaves first, explicit pull.
	o.cfg.SetOutShift(false, false, 32)
	o.cfg.SetWrap(offset, offset+uint8(len(program))-1)
	whole, frac := clockDivider(machine.CPUFrequency(), tickUS)
	o.cfg.SetClkDivIntFrac(whole, frac)

	o.recovery = shiftregister.New(shiftregister.THIRTYTWO_BITS,
		machine.Pin(pins.Latch), machine.Pin(pins.Clock), machine.Pin(pins.Data))
	o.isr = isr
	if err := setDMAInterrupt(ch, o.handleDMA); err != nil {
		releaseDMA(ch)
		sm.Unclaim()
		return err
	}
	o.attached = true
	return nil
}

// clockDivider makes one program pass last tickUS.
func clockDivider(cpuHz, tickUS uint32) (uint16, uint8) {
	div256 := uint64(cpuHz) * uint64(tickUS) * 256 / (uint64(cyclesPerWord) * 1000000)
	if div256 < 256 {
		div256 = 256
	}
	return uint16(div256 >> 8), uint8(div256)
}

func (o *PIOOutput) Detach() error {
	if !o.attached {
		return nil
	}
	setDMAInterrupt(o.ch, nil)
	abortDMA(o.ch)
	releaseDMA(o.ch)
	o.sm.SetEnabled(false)
	o.sm.Unclaim()
	o.attached = false
	return nil
}

func (o *PIOOutput) Start(head *dma.Descriptor, sel output.OutputSelect, value uint32) {
	for _, pin := range []core.GPIOPin{o.pins.Data, o.pins.Clock, o.pins.Latch} {
		machine.Pin(pin).Configure(machine.PinConfig{Mode: o.pio.PinMode()})
	}
	o.sm.Init(o.offset, o.cfg)
	o.sm.SetPindirsConsecutive(machine.Pin(o.pins.Clock), 2, true)
	o.sm.SetPindirsConsecutive(machine.Pin(o.pins.Data), 1, true)
	// Seed X so the first pull noblock already repeats the port value.
	o.sm.TxPut(value)
	o.sm.SetEnabled(true)

	o.sel = sel
	o.running = true
	o.eof, o.terminal = false, false
	o.last = nil
	o.cur = nil
	if sel == output.SelectStream {
		o.transfer(head)
	}
}

func (o *PIOOutput) transfer(d *dma.Descriptor) {
	o.cur = d
	words := d.Words()
	c := &dmaRegs[o.ch]
	c.AL1_CTRL.Set(o.ctrl)
	c.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(unsafe.SliceData(words)))))
	c.AL1_TRANS_COUNT_TRIG.Set(uint32(d.Len()))
}

// Stop halts DMA and the state machine, then shifts value out through GPIO
// so the chain holds it while stopped.
func (o *PIOOutput) Stop(value uint32) {
	abortDMA(o.ch)
	o.sm.SetEnabled(false)
	o.sm.ClearFIFOs()
	o.running = false
	o.eof, o.terminal = false, false

	o.recovery.Configure()
	// WriteMask shifts LSB first; reverse so bit 0 lands on the first output.
	o.recovery.WriteMask(bits.Reverse32(value))
}

// SetPassthrough queues value behind at most a FIFO's worth of older words.
func (o *PIOOutput) SetPassthrough(value uint32) {
	if !o.running || o.sel != output.SelectPassthrough {
		return
	}
	putLatest(o.sm, value)
}

// txFIFO is the part of a state machine putLatest needs.
type txFIFO interface {
	IsTxFIFOFull() bool
	ClearFIFOs()
	TxPut(uint32)
}

// putLatest queues v, discarding the queued words if the FIFO is full. The
// program repeats the last word it pulled, so skipping words that were never
// shifted out only drops intermediate values, never the newest.
func putLatest(f txFIFO, v uint32) {
	if f.IsTxFIFOFull() {
		f.ClearFIFOs()
	}
	f.TxPut(v)
}

func (o *PIOOutput) Status() (eof, terminal bool) {
	return o.eof, o.terminal
}

func (o *PIOOutput) Halt() {
	abortDMA(o.ch)
	o.running = false
}

func (o *PIOOutput) LastCompleted() *dma.Descriptor {
	return o.last
}

func (o *PIOOutput) ClearInterrupt() {
	o.eof, o.terminal = false, false
}

// handleDMA runs in the DMA interrupt: it chains the next descriptor before
// handing the completed one to the engine.
func (o *PIOOutput) handleDMA() {
	if !o.running || o.cur == nil {
		return
	}
	d := o.cur
	o.last = d
	o.eof = true
	if next := d.Next(); next != nil {
		o.transfer(next)
	} else {
		o.cur = nil
		o.terminal = true
		o.running = false
	}
	if o.isr != nil {
		o.isr()
	}
}
