package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stepstream/core"
	"stepstream/output"
	"stepstream/sim"
	"stepstream/stepping"
	"stepstream/trace"
)

var errMoveSyntax = errors.New("move must be axis:interval:count[:add][:r]")

type queuedMove struct {
	axis uint8
	move stepping.Move
}

// parseMove reads "axis:interval:count[:add][:r]". A trailing "r" reverses
// the direction.
func parseMove(s string) (queuedMove, error) {
	var q queuedMove
	parts := strings.Split(s, ":")
	if len(parts) > 0 && parts[len(parts)-1] == "r" {
		q.move.Reverse = true
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 3 || len(parts) > 4 {
		return q, errMoveSyntax
	}
	axis, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return q, fmt.Errorf("%w: axis %q", errMoveSyntax, parts[0])
	}
	interval, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return q, fmt.Errorf("%w: interval %q", errMoveSyntax, parts[1])
	}
	count, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return q, fmt.Errorf("%w: count %q", errMoveSyntax, parts[2])
	}
	q.axis = uint8(axis)
	q.move.Interval = uint32(interval)
	q.move.Count = uint16(count)
	if len(parts) == 4 {
		add, err := strconv.ParseInt(parts[3], 10, 16)
		if err != nil {
			return q, fmt.Errorf("%w: add %q", errMoveSyntax, parts[3])
		}
		q.move.Add = int16(add)
	}
	return q, nil
}

// simResult is what one simulated run produced.
type simResult struct {
	Trace     *trace.Trace
	Positions []int64
	Drained   int
	Stats     output.Stats
}

// simulate runs moves through an engine on simulated hardware until the
// generator is idle and the engine is back in Static.
func simulate(cfg output.Config, axes int, moves []queuedMove) (*simResult, error) {
	hw := sim.NewOutput()
	cfg.Pins = core.ShiftPins{Data: 6, Clock: 7, Latch: 8}

	eng := output.New(hw)
	gen := stepping.NewGenerator(eng, cfg.PeriodUS)
	if err := eng.Init(cfg, gen.Pulse); err != nil {
		return nil, err
	}
	defer eng.Close()
	cfg = eng.Config()
	gen.SetPeriod(cfg.PeriodUS)
	rec := trace.NewRecorder(cfg.TickUS)
	hw.Sink = rec.Append

	for i := 0; i < axes; i++ {
		if _, err := gen.AddAxis(uint8(2*i), uint8(2*i+1), false, false, 0); err != nil {
			return nil, err
		}
	}
	for _, q := range moves {
		if err := gen.Queue(q.axis, q.move); err != nil {
			return nil, fmt.Errorf("axis %d: %w", q.axis, err)
		}
	}

	core.ClearEvents()
	if err := gen.Start(); err != nil {
		return nil, err
	}
	done := func() bool { return !gen.Busy() && eng.Mode() == output.Static }
	idle := func() bool { return eng.Stats().Idle() }
	n, err := hw.DrainUntil(done, idle, 1_000_000)
	if err != nil {
		return nil, fmt.Errorf("after %d buffers: %w", n, err)
	}
	rec.AddEvents(core.Events())

	res := &simResult{Trace: rec.Trace(), Drained: n, Stats: eng.Stats()}
	for i := 0; i < axes; i++ {
		res.Positions = append(res.Positions, gen.Position(uint8(i)))
	}
	return res, nil
}

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run step moves against simulated hardware and record a trace.",
	Long: "`sim --move 0:200:50 --move 1:100:20:-2:r` queues moves on " +
		"axes with step/dir on port bits 2n/2n+1, streams them through " +
		"the engine and writes the sampled port to a CBOR trace.",
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, _ := cmd.Flags().GetStringArray("move")
		axes, _ := cmd.Flags().GetInt("axes")
		var moves []queuedMove
		for _, s := range specs {
			q, err := parseMove(s)
			if err != nil {
				return err
			}
			moves = append(moves, q)
		}

		var cfg output.Config
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if cfg, err = output.LoadConfig(data); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("tick") {
			cfg.TickUS, _ = cmd.Flags().GetUint32("tick")
		}
		if cmd.Flags().Changed("period") {
			cfg.PeriodUS, _ = cmd.Flags().GetUint32("period")
		}

		res, err := simulate(cfg, axes, moves)
		if err != nil {
			return err
		}

		out := stringFlag(cmd, "out", "STEPSTREAM_TRACE", "stepstream.cbor")
		if err := trace.Save(out, res.Trace); err != nil {
			return err
		}

		fmt.Printf("trace %s: %d samples, %v, %d buffers\n",
			res.Trace.ID, res.Trace.Len(), res.Trace.Duration(), res.Drained)
		for i, pos := range res.Positions {
			fmt.Printf("axis %d: position %d, %d steps\n",
				i, pos, len(res.Trace.Edges(2*i)))
		}
		fmt.Printf("completions %d, underruns %d\n", res.Stats.Completions, res.Stats.Underruns)
		fmt.Printf("written to %s\n", out)
		return nil
	},
}

func init() {
	simCmd.Flags().StringArrayP("move", "m", nil, "Move as axis:interval:count[:add][:r], repeatable")
	simCmd.Flags().Int("axes", 4, "Number of step/dir axes")
	simCmd.Flags().String("config", "", "JSON engine configuration")
	simCmd.Flags().Uint32("tick", output.DefaultTickUS, "Sample tick in microseconds")
	simCmd.Flags().Uint32("period", output.DefaultPeriodUS, "Pulse callback period in microseconds")
	simCmd.Flags().StringP("out", "o", "", "Trace file (default $STEPSTREAM_TRACE or stepstream.cbor)")
	rootCmd.AddCommand(simCmd)
}
