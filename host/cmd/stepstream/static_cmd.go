package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stepstream/bus"
	"stepstream/core"
	"stepstream/host/gpio"
)

var staticCmd = &cobra.Command{
	Use:   "static [value]",
	Short: "Write a shift register chain from host GPIO.",
	Long: "`static 0x1f` shifts a whole value out. `static --bit 3 --on` " +
		"changes one bit of a chain that starts cleared.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		latch, _ := cmd.Flags().GetUint32("latch")
		clock, _ := cmd.Flags().GetUint32("clock")
		data, _ := cmd.Flags().GetUint32("data")
		chips, _ := cmd.Flags().GetInt("chips")

		driver, err := gpio.Open()
		if err != nil {
			return err
		}
		pins := core.ShiftPins{
			Latch: core.GPIOPin(latch),
			Clock: core.GPIOPin(clock),
			Data:  core.GPIOPin(data),
		}
		chain, err := bus.NewStatic(driver, pins, chips)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			v, err := strconv.ParseUint(args[0], 0, 32)
			if err != nil {
				return fmt.Errorf("value %q: %w", args[0], err)
			}
			if err := chain.Set(uint32(v)); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("bit") {
			bit, _ := cmd.Flags().GetInt("bit")
			on, _ := cmd.Flags().GetBool("on")
			if err := chain.Write(bit, on); err != nil {
				return err
			}
		}
		fmt.Printf("%d bits: %s\n", chain.Bits(), core.Hex32(chain.Value()))
		return nil
	},
}

func init() {
	staticCmd.Flags().Uint32("latch", 17, "Latch GPIO")
	staticCmd.Flags().Uint32("clock", 22, "Clock GPIO")
	staticCmd.Flags().Uint32("data", 27, "Data GPIO")
	staticCmd.Flags().Int("chips", 1, "Number of 8-bit registers in the chain")
	staticCmd.Flags().Int("bit", 0, "Bit to change")
	staticCmd.Flags().Bool("on", false, "Set the bit instead of clearing it")
	rootCmd.AddCommand(staticCmd)
}
