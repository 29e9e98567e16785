package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepstream/core"
	"stepstream/input"
	"stepstream/output"
	"stepstream/sim"
	"stepstream/stepping"
)

func newConsole(t *testing.T) (*Console, *sim.Output) {
	t.Helper()
	hw := sim.NewOutput()
	e := output.New(hw)
	gen := stepping.NewGenerator(e, 20)
	require.NoError(t, e.Init(output.Config{
		Pins:        core.ShiftPins{Latch: 17, Clock: 22, Data: 21},
		TickUS:      4,
		Buffers:     4,
		BufferWords: 32,
		MaxPushUS:   8,
		PulseUS:     4,
		PeriodUS:    20,
	}, gen.Pulse))
	t.Cleanup(func() { e.Close() })
	c := New(e)
	c.Steps = gen
	return c, hw
}

func exec(t *testing.T, c *Console, line string) string {
	t.Helper()
	out, err := c.Exec(line)
	require.NoError(t, err, line)
	return out
}

func TestWriteReadPort(t *testing.T) {
	c, hw := newConsole(t)
	exec(t, c, "write 4 1")
	exec(t, c, "write 0 on")
	if got := exec(t, c, "read 4"); got != "1" {
		t.Errorf("Expected 1, got %q", got)
	}
	assert.Equal(t, "0x00000011", exec(t, c, "port"))
	assert.Equal(t, uint32(0x11), hw.Passthrough())
	exec(t, c, "write 4 0")
	assert.Equal(t, "0", exec(t, c, "read 4"))
}

func TestModeCommands(t *testing.T) {
	c, hw := newConsole(t)
	assert.Equal(t, "static", exec(t, c, "mode"))

	exec(t, c, "stream")
	assert.Equal(t, "streaming", exec(t, c, "mode"))

	exec(t, c, "drain")
	assert.Equal(t, "draining", exec(t, c, "mode"))
	done := make(chan error, 1)
	go func() { _, err := c.Exec("wait"); done <- err }()
	require.Eventually(t, func() bool {
		hw.Drain()
		return c.Engine.Mode() == output.Static
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, <-done)

	exec(t, c, "mode streaming")
	exec(t, c, "reset")
	assert.Equal(t, "static", exec(t, c, "mode"))
}

func TestPeriodAndStats(t *testing.T) {
	c, _ := newConsole(t)
	assert.Equal(t, "20", exec(t, c, "period"))
	exec(t, c, "period 40")
	assert.Equal(t, "40", exec(t, c, "period"))
	assert.Equal(t, uint32(40), c.Steps.Period())

	s := exec(t, c, "stats")
	assert.True(t, strings.HasPrefix(s, "mode=static "), s)
}

func TestPushCommand(t *testing.T) {
	c, _ := newConsole(t)
	assert.Equal(t, "0", exec(t, c, "push 100"), "over the safety margin")
}

func TestMoveCommands(t *testing.T) {
	c, hw := newConsole(t)
	_, err := c.Steps.AddAxis(0, 1, false, false, 0)
	require.NoError(t, err)

	exec(t, c, "move 0 40 3")
	exec(t, c, "move 0 40 1 0 rev")
	exec(t, c, "go")
	require.Eventually(t, func() bool {
		hw.Drain()
		return c.Engine.Mode() == output.Static && !c.Steps.Busy()
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, "2", exec(t, c, "pos 0"))
}

func TestMoveRejectsOutOfRangeFields(t *testing.T) {
	c, _ := newConsole(t)
	_, err := c.Steps.AddAxis(0, 1, false, false, 0)
	require.NoError(t, err)

	for _, line := range []string{
		"move 256 40 1",
		"move 0 40 1 40000",
		"move 0 40 1 -40000",
		"move 0 0 1",
		"move 0 40 65536",
		"move -1 40 1",
	} {
		_, err := c.Exec(line)
		assert.Error(t, err, line)
	}
	if n := c.Steps.Pending(0); n != 0 {
		t.Errorf("Expected no queued moves, got %d", n)
	}
}

func TestInputCommand(t *testing.T) {
	c, _ := newConsole(t)
	_, err := c.Exec("input")
	assert.ErrorIs(t, err, ErrNoInput)

	in := sim.NewInput()
	p := input.New(in)
	require.NoError(t, p.Init(input.Config{Pins: core.ShiftPins{Latch: 1, Clock: 2, Data: 3}, Chips: 4}))
	t.Cleanup(func() { p.Close() })
	c.Input = p
	in.FeedValue(0x5, 4)
	assert.Equal(t, "0x00000005", exec(t, c, "input"))
	assert.Equal(t, "1", exec(t, c, "input 2"))
	assert.Equal(t, "0", exec(t, c, "input 1"))
}

func TestEventsAndDebug(t *testing.T) {
	c, _ := newConsole(t)
	exec(t, c, "events clear")
	exec(t, c, "stream")
	assert.Contains(t, exec(t, c, "events"), "MODE")
	exec(t, c, "debug on")
	assert.True(t, core.IsDebugEnabled())
	exec(t, c, "debug off")
	assert.False(t, core.IsDebugEnabled())
}

func TestErrors(t *testing.T) {
	c, _ := newConsole(t)
	cases := map[string]error{
		"bogus":         ErrUnknownCommand,
		"write 1":       ErrUsage,
		"mode sideways": ErrUsage,
		"move 0":        ErrUsage,
		"debug":         ErrUsage,
	}
	for line, want := range cases {
		_, err := c.Exec(line)
		if !errors.Is(err, want) {
			t.Errorf("%q: expected %v, got %v", line, want, err)
		}
	}
	for _, line := range []string{"write 32 1", "write 1 maybe", "read x", `write "1`} {
		_, err := c.Exec(line)
		assert.Error(t, err, line)
	}
	out, err := c.Exec("   ")
	assert.NoError(t, err)
	assert.Empty(t, out)
}

type pipe struct {
	in  *strings.Reader
	out bytes.Buffer
}

func (p *pipe) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *pipe) Write(b []byte) (int, error) { return p.out.Write(b) }

func TestServe(t *testing.T) {
	c, _ := newConsole(t)
	c.Prompt = ""
	p := &pipe{in: strings.NewReader("write 2 1\nport\nnope\n")}
	require.NoError(t, c.Serve(p))
	assert.Equal(t, "0x00000004\nerror: unknown command: nope\n", p.out.String())
}

func TestHelpListsCommands(t *testing.T) {
	c, _ := newConsole(t)
	out := exec(t, c, "help")
	for _, name := range []string{"write", "stream", "move", "events"} {
		assert.Contains(t, out, name)
	}
}
