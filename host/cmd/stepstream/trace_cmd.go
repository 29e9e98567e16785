package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stepstream/core"
	"stepstream/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace [file]",
	Short: "Summarize a recorded trace.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := stringFlag(cmd, "file", "STEPSTREAM_TRACE", "stepstream.cbor")
		if len(args) == 1 {
			path = args[0]
		}
		t, err := trace.Load(path)
		if err != nil {
			return err
		}

		fmt.Printf("trace %s created %s\n", t.ID, time.Unix(t.Created, 0).Format(time.DateTime))
		fmt.Printf("%d samples of %dus, %v, %d runs\n", t.Len(), t.TickUS, t.Duration(), len(t.Runs))

		bits, _ := cmd.Flags().GetIntSlice("bit")
		if len(bits) == 0 {
			for bit := 0; bit < 32; bit++ {
				bits = append(bits, bit)
			}
		}
		for _, bit := range bits {
			edges := t.Edges(bit)
			if len(edges) == 0 {
				continue
			}
			widths := t.Widths(bit)
			lo, hi := widths[0], widths[0]
			for _, w := range widths {
				lo, hi = min(lo, w), max(hi, w)
			}
			fmt.Printf("bit %2d: %d pulses, width %d..%d ticks, first at %d\n",
				bit, len(edges), lo, hi, edges[0])
		}

		if show, _ := cmd.Flags().GetBool("events"); show {
			for _, e := range t.Events {
				fmt.Println(core.FormatEvent(core.Event{
					Kind: e.Kind, ID: e.ID, Clock: e.Clock,
					Value1: e.Value1, Value2: e.Value2,
				}))
			}
		}
		return nil
	},
}

func init() {
	traceCmd.Flags().String("file", "", "Trace file (default $STEPSTREAM_TRACE or stepstream.cbor)")
	traceCmd.Flags().IntSlice("bit", nil, "Port bits to report (default all that toggle)")
	traceCmd.Flags().Bool("events", false, "Print recorded engine events")
	rootCmd.AddCommand(traceCmd)
}
