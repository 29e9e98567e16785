//go:build rp2040

package main

import (
	"machine"
	"time"
)

// InitUSB initializes USB serial communication
// TinyGo automatically sets up USB CDC-ACM on RP2040
func InitUSB() {
	// machine.Serial is USB CDC on RP2040
	machine.Serial.Configure(machine.UARTConfig{})
}

// usbConsole adapts USB CDC to io.ReadWriter for the console. Read blocks,
// polling the receive buffer.
type usbConsole struct{}

func (usbConsole) Read(b []byte) (int, error) {
	for machine.Serial.Buffered() == 0 {
		time.Sleep(time.Millisecond)
	}
	n := 0
	for n < len(b) && machine.Serial.Buffered() > 0 {
		c, err := machine.Serial.ReadByte()
		if err != nil {
			return n, err
		}
		b[n] = c
		n++
	}
	return n, nil
}

// Write translates \n to \r\n for terminal emulators.
func (usbConsole) Write(b []byte) (int, error) {
	for _, c := range b {
		if c == '\n' {
			machine.Serial.WriteByte('\r')
		}
		if err := machine.Serial.WriteByte(c); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}
