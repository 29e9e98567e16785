package output

import (
	"stepstream/core"
	"stepstream/dma"
)

// OutputSelect chooses where the peripheral takes its output word from.
type OutputSelect uint8

const (
	// SelectPassthrough drives the chain from the passthrough register.
	SelectPassthrough OutputSelect = iota
	// SelectStream drives the chain from the descriptor ring.
	SelectStream
)

func (s OutputSelect) String() string {
	if s == SelectStream {
		return "stream"
	}
	return "passthrough"
}

// Peripheral is the serial output hardware behind the engine: a shift-out
// unit fed by DMA from a descriptor ring, with a passthrough register for
// static output.
//
// Start, Stop, Halt, Status, LastCompleted and ClearInterrupt are called with
// the engine's hardware spin lock held, from task or interrupt context. They
// must not block, allocate or call back into the engine.
type Peripheral interface {
	core.PinCapabilities

	// Alloc returns DMA-capable sample memory.
	Alloc(words int) ([]uint32, error)

	// Attach claims the pins and registers isr as the completion interrupt
	// handler. It fails if the peripheral is already attached.
	Attach(pins core.ShiftPins, tickUS uint32, isr func()) error

	// Detach stops the hardware and releases the interrupt.
	Detach() error

	// Start begins walking the ring at head. With SelectPassthrough the
	// outputs show value and the ring content is ignored.
	Start(head *dma.Descriptor, sel OutputSelect, value uint32)

	// Stop halts the hardware, clears pending interrupts and shifts value
	// out through GPIO so the chain holds it while stopped.
	Stop(value uint32)

	// SetPassthrough updates the passthrough register. Lock-free; called
	// without the spin lock.
	SetPassthrough(value uint32)

	// Status reports a pending descriptor completion and whether the
	// hardware stopped at a cut chain.
	Status() (eof, terminal bool)

	// Halt clears the drain/start bits after a terminal completion.
	Halt()

	// LastCompleted is the descriptor whose samples were emitted last.
	LastCompleted() *dma.Descriptor

	// ClearInterrupt acknowledges the pending completion.
	ClearInterrupt()
}
