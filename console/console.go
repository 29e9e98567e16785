// Package console is a line-oriented command interpreter over an output
// engine, shared by the firmware USB console and the host REPL.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"stepstream/core"
	"stepstream/input"
	"stepstream/output"
	"stepstream/stepping"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrNoInput        = errors.New("no input port")
	ErrNoStepper      = errors.New("no step generator")
)

type command struct {
	usage string
	help  string
	run   func(c *Console, args []string) (string, error)
}

// Console dispatches commands. Input and Steps are optional.
type Console struct {
	Engine *output.Engine
	Input  *input.Port
	Steps  *stepping.Generator

	// Prompt is written before each line read by Serve.
	Prompt string
}

// New returns a console for e.
func New(e *output.Engine) *Console {
	return &Console{Engine: e, Prompt: "> "}
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"write":  {"write <bit> <0|1>", "set a virtual output", cmdWrite},
		"read":   {"read <bit>", "read a virtual output", cmdRead},
		"port":   {"port", "show the output word", cmdPort},
		"mode":   {"mode [static|streaming|draining]", "show or request a mode", cmdMode},
		"stream": {"stream", "start streaming", cmdStream},
		"drain":  {"drain", "drain and return to static", cmdDrain},
		"reset":  {"reset", "drop to static now", cmdReset},
		"wait":   {"wait", "block until static", cmdWait},
		"push":   {"push <us>", "append hold samples", cmdPush},
		"period": {"period [us]", "show or set the pulse period", cmdPeriod},
		"stats":  {"stats", "engine counters", cmdStats},
		"input":  {"input [bit]", "show the input word or one bit", cmdInput},
		"move":   {"move <axis> <interval> <count> [add] [rev]", "queue a move", cmdMove},
		"go":     {"go", "run queued moves", cmdGo},
		"pos":    {"pos <axis>", "axis position", cmdPos},
		"events": {"events [clear]", "show the event ring", cmdEvents},
		"debug":  {"debug <on|off>", "toggle debug output", cmdDebug},
		"help":   {"help", "list commands", cmdHelp},
	}
}

// Exec runs one command line and returns its reply.
func (c *Console) Exec(line string) (string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", nil
	}
	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	return cmd.run(c, args[1:])
}

// Serve reads commands from rw until EOF, writing replies back.
func (c *Console) Serve(rw io.ReadWriter) error {
	sc := bufio.NewScanner(rw)
	for {
		if c.Prompt != "" {
			if _, err := io.WriteString(rw, c.Prompt); err != nil {
				return err
			}
		}
		if !sc.Scan() {
			return sc.Err()
		}
		out, err := c.Exec(sc.Text())
		if err != nil {
			out = "error: " + err.Error()
		}
		if out == "" {
			continue
		}
		if _, err := io.WriteString(rw, out+"\n"); err != nil {
			return err
		}
	}
}

func usage(name string) error {
	return fmt.Errorf("%w: %s", ErrUsage, commands[name].usage)
}

func parseBit(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= output.PortWidth {
		return 0, fmt.Errorf("bad bit %q", s)
	}
	return n, nil
}

func parseLevel(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "on", "high", "true":
		return true, nil
	case "0", "off", "low", "false":
		return false, nil
	}
	return false, fmt.Errorf("bad level %q", s)
}

func level(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func cmdWrite(c *Console, args []string) (string, error) {
	if len(args) != 2 {
		return "", usage("write")
	}
	bit, err := parseBit(args[0])
	if err != nil {
		return "", err
	}
	v, err := parseLevel(args[1])
	if err != nil {
		return "", err
	}
	c.Engine.Write(bit, v)
	return "", nil
}

func cmdRead(c *Console, args []string) (string, error) {
	if len(args) != 1 {
		return "", usage("read")
	}
	bit, err := parseBit(args[0])
	if err != nil {
		return "", err
	}
	return level(c.Engine.Read(bit)), nil
}

func cmdPort(c *Console, args []string) (string, error) {
	return core.Hex32(c.Engine.Value()), nil
}

func cmdMode(c *Console, args []string) (string, error) {
	if len(args) == 0 {
		return c.Engine.Mode().String(), nil
	}
	m, ok := output.ParseMode(args[0])
	if !ok {
		return "", usage("mode")
	}
	return "", c.Engine.RequestMode(m)
}

func cmdStream(c *Console, args []string) (string, error) {
	return "", c.Engine.SetStepping()
}

func cmdDrain(c *Console, args []string) (string, error) {
	return "", c.Engine.SetPassthrough()
}

func cmdReset(c *Console, args []string) (string, error) {
	return "", c.Engine.Reset()
}

func cmdWait(c *Console, args []string) (string, error) {
	return "", c.Engine.WaitStatic()
}

func cmdPush(c *Console, args []string) (string, error) {
	if len(args) != 1 {
		return "", usage("push")
	}
	us, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(c.Engine.PushSample(uint32(us))), nil
}

func cmdPeriod(c *Console, args []string) (string, error) {
	if len(args) == 0 {
		return strconv.FormatUint(uint64(c.Engine.PulsePeriod()), 10), nil
	}
	us, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || us == 0 {
		return "", fmt.Errorf("bad period %q", args[0])
	}
	if c.Steps != nil {
		c.Steps.SetPeriod(uint32(us))
	} else {
		c.Engine.SetPulsePeriod(uint32(us))
	}
	return "", nil
}

func cmdStats(c *Console, args []string) (string, error) {
	s := c.Engine.Stats()
	return fmt.Sprintf("mode=%s completions=%d refills=%d underruns=%d discarded=%d pending=%d",
		s.Mode, s.Completions, s.Refills, s.Underruns, s.Discarded, s.Pending), nil
}

func cmdInput(c *Console, args []string) (string, error) {
	if c.Input == nil {
		return "", ErrNoInput
	}
	if len(args) == 0 {
		return core.Hex32(c.Input.Value()), nil
	}
	bit, err := parseBit(args[0])
	if err != nil {
		return "", err
	}
	return level(c.Input.Read(bit)), nil
}

func cmdMove(c *Console, args []string) (string, error) {
	if c.Steps == nil {
		return "", ErrNoStepper
	}
	if len(args) < 3 || len(args) > 5 {
		return "", usage("move")
	}
	axis, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return "", fmt.Errorf("bad axis %q", args[0])
	}
	interval, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil || interval == 0 {
		return "", fmt.Errorf("bad interval %q", args[1])
	}
	count, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		return "", fmt.Errorf("bad count %q", args[2])
	}
	var add int64
	if len(args) > 3 {
		if add, err = strconv.ParseInt(args[3], 10, 16); err != nil {
			return "", fmt.Errorf("bad add %q", args[3])
		}
	}
	m := stepping.Move{
		Interval: uint32(interval),
		Count:    uint16(count),
		Add:      int16(add),
		Reverse:  len(args) == 5 && args[4] == "rev",
	}
	return "", c.Steps.Queue(uint8(axis), m)
}

func cmdGo(c *Console, args []string) (string, error) {
	if c.Steps == nil {
		return "", ErrNoStepper
	}
	return "", c.Steps.Start()
}

func cmdPos(c *Console, args []string) (string, error) {
	if c.Steps == nil {
		return "", ErrNoStepper
	}
	if len(args) != 1 {
		return "", usage("pos")
	}
	n, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(c.Steps.Position(uint8(n)), 10), nil
}

func cmdEvents(c *Console, args []string) (string, error) {
	if len(args) == 1 && args[0] == "clear" {
		core.ClearEvents()
		return "", nil
	}
	var b strings.Builder
	for i, e := range core.Events() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(core.FormatEvent(e))
	}
	return b.String(), nil
}

func cmdDebug(c *Console, args []string) (string, error) {
	if len(args) != 1 {
		return "", usage("debug")
	}
	on, err := parseLevel(args[0])
	if err != nil {
		return "", err
	}
	core.SetDebugEnabled(on)
	return "", nil
}

func cmdHelp(c *Console, args []string) (string, error) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		cmd := commands[name]
		fmt.Fprintf(&b, "%-44s %s", cmd.usage, cmd.help)
	}
	return b.String(), nil
}
