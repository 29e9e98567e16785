package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"stepstream/core"
)

var pins = core.ShiftPins{Latch: 1, Clock: 2, Data: 3}

// chain models a 74HC595 chain on the mock's pin writes.
type chain struct {
	data    bool
	clock   bool
	latch   bool
	shift   uint32
	outputs uint32
	latches int
	mask    uint32
}

func (c *chain) set(pin core.GPIOPin, v bool) {
	switch pin {
	case pins.Data:
		c.data = v
	case pins.Clock:
		if v && !c.clock {
			c.shift <<= 1
			if c.data {
				c.shift |= 1
			}
		}
		c.clock = v
	case pins.Latch:
		if v && !c.latch {
			c.outputs = c.shift & c.mask
			c.latches++
		}
		c.latch = v
	}
}

func newMockChain(t *testing.T, chips int) (*MockGPIODriver, *chain) {
	ctrl := gomock.NewController(t)
	d := NewMockGPIODriver(ctrl)
	c := &chain{mask: uint32(1)<<uint(chips*8) - 1}
	d.EXPECT().ConfigureOutput(gomock.Any()).Return(nil).Times(3)
	d.EXPECT().SetPin(gomock.Any(), gomock.Any()).DoAndReturn(func(pin core.GPIOPin, v bool) error {
		c.set(pin, v)
		return nil
	}).AnyTimes()
	return d, c
}

func TestStaticWrites(t *testing.T) {
	d, c := newMockChain(t, 2)
	s, err := NewStatic(d, pins, 2)
	require.NoError(t, err)
	assert.Equal(t, 16, s.Bits())
	assert.Equal(t, 1, c.latches, "init clears the chain")

	require.NoError(t, s.Write(0, true))
	require.NoError(t, s.Write(9, true))
	if c.outputs != 0x201 {
		t.Errorf("Expected outputs 0x201, got 0x%X", c.outputs)
	}
	require.NoError(t, s.Write(0, false))
	assert.Equal(t, uint32(0x200), c.outputs)
	assert.True(t, s.Read(9))
	assert.False(t, s.Read(0))

	require.NoError(t, s.Set(0xBEEF))
	assert.Equal(t, uint32(0xBEEF), c.outputs)
	assert.Equal(t, uint32(0xBEEF), s.Value())
}

func TestStaticSkipsUnchanged(t *testing.T) {
	d, c := newMockChain(t, 1)
	s, err := NewStatic(d, pins, 1)
	require.NoError(t, err)
	require.NoError(t, s.Write(3, true))
	n := c.latches
	require.NoError(t, s.Write(3, true))
	assert.Equal(t, n, c.latches)
}

func TestStaticBitOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := NewMockGPIODriver(ctrl)
	d.EXPECT().ConfigureOutput(gomock.Any()).Return(nil).Times(3)
	d.EXPECT().SetPin(gomock.Any(), gomock.Any()).Return(nil).Times(2 + 8*3 + 2)
	s, err := NewStatic(d, pins, 1)
	require.NoError(t, err)

	// 0x80 is shifted out MSB first: the first data bit is high.
	var calls []any
	calls = append(calls, d.EXPECT().SetPin(pins.Latch, false).Return(nil))
	for i := 7; i >= 0; i-- {
		calls = append(calls,
			d.EXPECT().SetPin(pins.Data, i == 7).Return(nil),
			d.EXPECT().SetPin(pins.Clock, true).Return(nil),
			d.EXPECT().SetPin(pins.Clock, false).Return(nil))
	}
	calls = append(calls, d.EXPECT().SetPin(pins.Latch, true).Return(nil))
	gomock.InOrder(calls...)

	require.NoError(t, s.Write(7, true))
}

func TestStaticErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := NewMockGPIODriver(ctrl)

	_, err := NewStatic(d, pins, 0)
	assert.ErrorIs(t, err, ErrChainLength)
	_, err = NewStatic(d, pins, 5)
	assert.ErrorIs(t, err, ErrChainLength)

	errPin := errors.New("pin busy")
	d.EXPECT().ConfigureOutput(pins.Latch).Return(errPin)
	_, err = NewStatic(d, pins, 1)
	assert.ErrorIs(t, err, errPin)

	d2, _ := newMockChain(t, 1)
	s, err := NewStatic(d2, pins, 1)
	require.NoError(t, err)
	assert.Error(t, s.Write(8, true))
}

func TestStaticReadOutOfRange(t *testing.T) {
	d, _ := newMockChain(t, 1)
	s, err := NewStatic(d, pins, 1)
	require.NoError(t, err)
	require.NoError(t, s.Write(7, true))

	assert.True(t, s.Read(7))
	assert.Panics(t, func() { s.Read(8) })
	assert.Panics(t, func() { s.Read(-1) })
	assert.Panics(t, func() { s.Read(32) })
}

func TestStaticWriteFailureKeepsValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := NewMockGPIODriver(ctrl)
	d.EXPECT().ConfigureOutput(gomock.Any()).Return(nil).Times(3)
	d.EXPECT().SetPin(gomock.Any(), gomock.Any()).Return(nil).Times(2 + 8*3 + 2)
	s, err := NewStatic(d, pins, 1)
	require.NoError(t, err)

	errIO := errors.New("io")
	d.EXPECT().SetPin(pins.Latch, false).Return(errIO)
	assert.ErrorIs(t, s.Write(1, true), errIO)
	assert.Zero(t, s.Value())
}
