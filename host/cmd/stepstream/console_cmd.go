package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"stepstream/core"
	"stepstream/host/serial"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Talk to the firmware console over a serial port.",
	Long: "`console` opens an interactive session. With --exec the given " +
		"commands run in order and the replies are printed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		device := stringFlag(cmd, "device", "STEPSTREAM_PORT", "/dev/ttyACM0")
		cfg := serial.DefaultConfig(device)
		if baud := stringFlag(cmd, "baud", "STEPSTREAM_BAUD", ""); baud != "" {
			n, err := strconv.Atoi(baud)
			if err != nil {
				return fmt.Errorf("baud %q: %w", baud, err)
			}
			cfg.Baud = n
		}

		port, err := serial.Open(cfg)
		if err != nil {
			return err
		}
		atexit.Register(func() { port.Close() })
		core.DebugPrintln("console: opened " + device)

		sess := serial.NewSession(port)
		if err := port.Flush(); err != nil {
			return err
		}
		// An empty line makes the firmware print a fresh prompt.
		if _, err := port.Write([]byte("\n")); err != nil {
			return err
		}
		if err := sess.Sync(); err != nil {
			return err
		}

		lines, _ := cmd.Flags().GetStringArray("exec")
		if len(lines) > 0 {
			for _, line := range lines {
				reply, err := sess.Exec(line)
				if err != nil {
					return err
				}
				fmt.Println(reply)
				if strings.HasPrefix(reply, "error:") {
					return fmt.Errorf("%s: %s", line, reply)
				}
			}
			return nil
		}
		return repl(sess)
	},
}

func repl(sess *serial.Session) error {
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(serial.Prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		}
		reply, err := sess.Exec(line)
		if err != nil {
			return err
		}
		if reply != "" {
			fmt.Println(reply)
		}
	}
}

func init() {
	consoleCmd.Flags().StringP("device", "d", "", "Serial device (default $STEPSTREAM_PORT or /dev/ttyACM0)")
	consoleCmd.Flags().String("baud", "", "Baud rate, ignored for USB CDC (default $STEPSTREAM_BAUD or 115200)")
	consoleCmd.Flags().StringArrayP("exec", "e", nil, "Run a command and exit, repeatable")
	rootCmd.AddCommand(consoleCmd)
}
