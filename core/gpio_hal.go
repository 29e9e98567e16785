package core

import "fmt"

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	// Returns error if pin is invalid or already in use
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}

// ShiftPins names the three lines of a serial-in shift-register chain.
type ShiftPins struct {
	Latch GPIOPin `json:"ws"`   // storage clock, word select on I2S
	Clock GPIOPin `json:"bck"`  // shift clock
	Data  GPIOPin `json:"data"` // serial data
}

// ConfigureShiftPins makes all three lines outputs with latch and clock low.
func ConfigureShiftPins(d GPIODriver, p ShiftPins) error {
	for _, pin := range []GPIOPin{p.Latch, p.Clock, p.Data} {
		if err := d.ConfigureOutput(pin); err != nil {
			return fmt.Errorf("configure pin %d: %w", pin, err)
		}
	}
	if err := d.SetPin(p.Latch, false); err != nil {
		return err
	}
	return d.SetPin(p.Clock, false)
}

// ShiftOut bit-bangs the low `bits` bits of value into the chain, most
// significant first, then pulses the latch so the outputs update together.
// Bit 0 ends up on the first output of the chip nearest the controller.
func ShiftOut(d GPIODriver, p ShiftPins, value uint32, bits int) error {
	if err := d.SetPin(p.Latch, false); err != nil {
		return err
	}
	for i := bits - 1; i >= 0; i-- {
		if err := d.SetPin(p.Data, value&(1<<uint(i)) != 0); err != nil {
			return err
		}
		if err := d.SetPin(p.Clock, true); err != nil {
			return err
		}
		if err := d.SetPin(p.Clock, false); err != nil {
			return err
		}
	}
	return d.SetPin(p.Latch, true)
}
