package input_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepstream/core"
	"stepstream/input"
	"stepstream/sim"
)

var inPins = core.ShiftPins{Latch: 4, Clock: 5, Data: 6}

type change struct {
	bit   int
	level bool
}

func TestMirrorDecodesAndDispatches(t *testing.T) {
	hw := sim.NewInput()
	p := input.New(hw)
	require.NoError(t, p.Init(input.Config{Pins: inPins, Chips: 2}))
	defer p.Close()

	var got []change
	record := func(bit int, level bool) { got = append(got, change{bit, level}) }
	require.NoError(t, p.OnChange(0, record))
	require.NoError(t, p.OnChange(9, record))

	// Two chips: the 16 data bits arrive in the top half of the word.
	require.True(t, hw.Feed(0x0201_0000))
	assert.Equal(t, uint32(0x0201), p.Value())
	assert.True(t, p.Read(0))
	assert.True(t, p.Read(9))
	assert.Equal(t, []change{{0, true}, {9, true}}, got)

	// Bit 4 is not watched; bit 9 falls.
	got = nil
	require.True(t, hw.FeedValue(0x0011, 2))
	assert.Equal(t, []change{{9, false}}, got)

	// Same value again: no dispatch.
	got = nil
	hw.FeedValue(0x0011, 2)
	assert.Empty(t, got)
	assert.Equal(t, uint64(2), p.Changes())
}

func TestMirrorChipShift(t *testing.T) {
	for chips := 1; chips <= input.MaxChips; chips++ {
		hw := sim.NewInput()
		p := input.New(hw)
		require.NoError(t, p.Init(input.Config{Pins: inPins, Chips: chips}))
		hw.FeedValue(0xA5, chips)
		assert.Equal(t, uint32(0xA5), p.Value(), "chips=%d", chips)
		p.Close()
	}
}

func TestMirrorUsesNewestScan(t *testing.T) {
	hw := sim.NewInput()
	p := input.New(hw)
	require.NoError(t, p.Init(input.Config{Pins: inPins, Chips: 1}))
	defer p.Close()

	require.True(t, hw.FeedScans(0x01<<24, 0x02<<24))
	if p.Value() != 0x02 {
		t.Errorf("Expected newest scan 0x02, got 0x%X", p.Value())
	}
}

func TestMirrorInitErrors(t *testing.T) {
	for _, chips := range []int{0, 5} {
		p := input.New(sim.NewInput())
		assert.ErrorIs(t, p.Init(input.Config{Pins: inPins, Chips: chips}), input.ErrChipCount)
	}

	hw := sim.NewInput()
	hw.Caps = map[core.GPIOPin]core.PinCaps{inPins.Data: core.CapOutput | core.CapNative}
	assert.ErrorIs(t, input.New(hw).Init(input.Config{Pins: inPins, Chips: 1}), input.ErrPinCapability)

	errNoMem := errors.New("no DMA memory")
	hw = sim.NewInput()
	hw.AllocErr = errNoMem
	assert.ErrorIs(t, input.New(hw).Init(input.Config{Pins: inPins, Chips: 1}), errNoMem)

	hw = sim.NewInput()
	first := input.New(hw)
	require.NoError(t, first.Init(input.Config{Pins: inPins, Chips: 1}))
	assert.ErrorIs(t, first.Init(input.Config{Pins: inPins, Chips: 1}), input.ErrAlreadyInitialized)
	assert.ErrorIs(t, input.New(hw).Init(input.Config{Pins: inPins, Chips: 1}), sim.ErrHandlerBusy)
}

func TestMirrorUnregister(t *testing.T) {
	hw := sim.NewInput()
	p := input.New(hw)
	require.NoError(t, p.Init(input.Config{Pins: inPins, Chips: 4}))

	calls := 0
	require.NoError(t, p.OnChange(3, func(int, bool) { calls++ }))
	hw.Feed(0x8)
	require.NoError(t, p.OnChange(3, nil))
	hw.Feed(0x0)
	assert.Equal(t, 1, calls)

	assert.Error(t, p.OnChange(32, nil))
}

func TestMirrorStopsAfterClose(t *testing.T) {
	hw := sim.NewInput()
	p := input.New(hw)
	require.NoError(t, p.Init(input.Config{Pins: inPins, Chips: 1}))
	require.NoError(t, p.Close())
	assert.False(t, hw.Feed(0xFF000000))
	assert.Equal(t, uint32(0), p.Value())
}

func TestLoadConfig(t *testing.T) {
	cfg, err := input.LoadConfig([]byte(`{"pins":{"ws":4,"bck":5,"data":6},"num_chips":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Chips)
	assert.Equal(t, input.DefaultBuffers, cfg.Buffers)

	_, err = input.LoadConfig([]byte(`{"num_chips":7}`))
	assert.ErrorIs(t, err, input.ErrChipCount)
}

type fakeChain struct {
	mu     sync.Mutex
	values []uint32
	err    error
}

func (f *fakeChain) ReadChain() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	v := f.values[0]
	if len(f.values) > 1 {
		f.values = f.values[1:]
	}
	return v, nil
}

func TestPollerFeedsPort(t *testing.T) {
	p := input.New(nil)
	var mu sync.Mutex
	var got []change
	require.NoError(t, p.OnChange(2, func(bit int, level bool) {
		mu.Lock()
		got = append(got, change{bit, level})
		mu.Unlock()
	}))

	chain := &fakeChain{values: []uint32{0, 4, 4, 0}}
	poller := &input.Poller{Port: p, Reader: chain, Interval: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []change{{2, true}, {2, false}}, got)
}

func TestPollerKeepsValueOnError(t *testing.T) {
	p := input.New(nil)
	chain := &fakeChain{values: []uint32{0x10}}
	poller := &input.Poller{Port: p, Reader: chain}

	require.NoError(t, poller.Poll())
	chain.err = errors.New("bus fault")
	assert.Error(t, poller.Poll())
	assert.Equal(t, uint32(0x10), p.Value())
}
