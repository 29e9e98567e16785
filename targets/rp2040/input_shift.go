//go:build rp2040

package main

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/shifter"

	"stepstream/core"
)

// chainReader reads a 74HC165 chain by bit-banging through the shifter
// driver. It implements input.ShiftReader.
type chainReader struct {
	dev   shifter.Device
	chips int
}

func newChainReader(pins core.ShiftPins, chips int) (*chainReader, error) {
	var n shifter.NumberBit
	switch chips {
	case 1:
		n = shifter.EIGHT_BITS
	case 2:
		n = shifter.SIXTEEN_BITS
	case 4:
		n = shifter.THIRTYTWO_BITS
	default:
		return nil, errors.New("rp2040: input chain must be 1, 2 or 4 chips")
	}
	r := &chainReader{
		dev:   shifter.New(n, machine.Pin(pins.Latch), machine.Pin(pins.Clock), machine.Pin(pins.Data)),
		chips: chips,
	}
	r.dev.Configure()
	return r, nil
}

// ReadChain returns the chain as shifted in. The driver puts the first bit
// at the top, which is where the PIO capture leaves it too.
func (r *chainReader) ReadChain() (uint32, error) {
	switch r.chips {
	case 1:
		v, err := r.dev.Read8Input()
		return uint32(v), err
	case 2:
		v, err := r.dev.Read16Input()
		return uint32(v), err
	default:
		return r.dev.Read32Input()
	}
}
