// Package gpio implements core.GPIODriver on Linux boards through periph.io,
// so the static bus can drive a shift-register chain from a Raspberry Pi.
package gpio

import (
	"fmt"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"stepstream/core"
)

// Driver maps core pin numbers to periph pins named "GPIO<n>".
type Driver struct {
	lookup func(name string) gpio.PinIO

	mu   sync.Mutex
	pins map[core.GPIOPin]gpio.PinIO
}

// Open initializes the host drivers and returns a driver backed by the
// periph pin registry.
func Open() (*Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: host init: %w", err)
	}
	return New(gpioreg.ByName), nil
}

// New returns a driver resolving pins through lookup.
func New(lookup func(name string) gpio.PinIO) *Driver {
	return &Driver{lookup: lookup, pins: make(map[core.GPIOPin]gpio.PinIO)}
}

func (d *Driver) pin(n core.GPIOPin) (gpio.PinIO, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pins[n]; ok {
		return p, nil
	}
	p := d.lookup("GPIO" + strconv.Itoa(int(n)))
	if p == nil {
		return nil, fmt.Errorf("gpio: no pin GPIO%d", n)
	}
	d.pins[n] = p
	return p, nil
}

func (d *Driver) ConfigureOutput(n core.GPIOPin) error {
	p, err := d.pin(n)
	if err != nil {
		return err
	}
	return p.Out(gpio.Low)
}

func (d *Driver) ConfigureInputPullUp(n core.GPIOPin) error {
	p, err := d.pin(n)
	if err != nil {
		return err
	}
	return p.In(gpio.PullUp, gpio.NoEdge)
}

func (d *Driver) SetPin(n core.GPIOPin, value bool) error {
	p, err := d.pin(n)
	if err != nil {
		return err
	}
	return p.Out(gpio.Level(value))
}

func (d *Driver) GetPin(n core.GPIOPin) (bool, error) {
	p, err := d.pin(n)
	if err != nil {
		return false, err
	}
	return p.Read() == gpio.High, nil
}

// Capabilities reports plain GPIO for any pin the registry knows. Nothing
// here can be fed by DMA.
func (d *Driver) Capabilities(n core.GPIOPin) core.PinCaps {
	if _, err := d.pin(n); err != nil {
		return 0
	}
	return core.CapInput | core.CapOutput | core.CapPullUp | core.CapPullDown
}
