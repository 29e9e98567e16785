//go:build rp2040

package main

import (
	"context"
	"machine"
	"time"

	"stepstream/console"
	"stepstream/core"
	"stepstream/input"
	"stepstream/output"
	"stepstream/stepping"
)

var (
	outputPins = core.ShiftPins{Data: 6, Clock: 7, Latch: 8}
	inputPins  = core.ShiftPins{Clock: 10, Latch: 11, Data: 12}
	inputChips = 1

	// Step/dir bit pairs on the virtual port.
	axes = [][2]uint8{{0, 1}, {2, 3}, {4, 5}, {6, 7}}

	consoleErrors uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	usb := usbConsole{}
	core.SetDebugWriter(func(msg string) {
		usb.Write([]byte(msg + "\n"))
	})
	core.InitAsyncDebug()

	gpio := NewRPGPIODriver()
	core.SetGPIODriver(gpio)

	hw := NewPIOOutput(gpio)
	engine := output.New(hw)
	gen := stepping.NewGenerator(engine, output.DefaultPeriodUS)
	if err := engine.Init(output.Config{Pins: outputPins}, gen.Pulse); err != nil {
		fatal("output init: " + err.Error())
	}
	for _, a := range axes {
		if _, err := gen.AddAxis(a[0], a[1], false, false, 0); err != nil {
			fatal("axis: " + err.Error())
		}
	}

	in := startInput(gpio)
	go clockLoop()

	con := console.New(engine)
	con.Steps = gen
	con.Input = in
	usb.Write([]byte("stepstream console\n"))
	for {
		serve(con, usb)
		time.Sleep(100 * time.Millisecond)
	}
}

// startInput mirrors the input chain through the PIO capture, or polls it
// with the shifter driver when the capture cannot start.
func startInput(gpio *RPGPIODriver) *input.Port {
	in := input.New(NewPIOInput(gpio, DefaultScanUS))
	err := in.Init(input.Config{Pins: inputPins, Chips: inputChips})
	if err == nil {
		return in
	}
	core.DebugPrintln("input capture unavailable, polling: " + err.Error())

	reader, err := newChainReader(inputPins, inputChips)
	if err != nil {
		core.DebugPrintln("input disabled: " + err.Error())
		return nil
	}
	in = input.New(nil)
	poller := &input.Poller{Port: in, Reader: reader}
	go poller.Run(context.Background())
	return in
}

// serve runs the console until it fails, recovering from panics such as an
// out-of-range port bit so the firmware keeps running.
func serve(con *console.Console, usb usbConsole) {
	defer func() {
		if r := recover(); r != nil {
			consoleErrors++
			core.DumpEvents()
		}
	}()
	if err := con.Serve(usb); err != nil {
		consoleErrors++
	}
}

func clockLoop() {
	for {
		UpdateSystemTime()
		time.Sleep(time.Millisecond)
	}
}

func fatal(msg string) {
	for {
		core.DebugPrintln("fatal: " + msg)
		core.DumpEvents()
		time.Sleep(5 * time.Second)
	}
}
