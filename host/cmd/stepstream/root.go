package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"stepstream/core"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stepstream",
	Short: "Host tools for the streamed 32-bit output port.",
	Long: `Host tools for the streamed 32-bit output port. Simulate step ` +
		`generation, inspect recorded traces, drive the firmware console ` +
		`and write a static shift register chain.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			core.SetDebugWriter(func(msg string) {
				fmt.Fprintln(os.Stderr, msg)
			})
			core.SetDebugEnabled(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print debug output to stderr")
}

// stringFlag returns the named flag when it was given on the command line,
// otherwise the environment value for key, otherwise def. Values from a .env
// file in the working directory count as environment.
func stringFlag(cmd *cobra.Command, name, key, def string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
