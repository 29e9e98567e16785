package core

// PinCaps is the capability set a target reports for a physical pin.
type PinCaps uint16

const (
	CapInput   PinCaps = 1 << iota // readable
	CapOutput                      // drivable
	CapPullUp                      // internal pull-up available
	CapPullDown                    // internal pull-down available
	CapNative                      // can be routed to a peripheral (PIO, I2S)
	CapADC                         // analog input
	CapPWM                         // hardware PWM
	CapVirtual                     // bit of a virtual port rather than a pad
)

// Has reports whether every capability in want is present.
func (c PinCaps) Has(want PinCaps) bool {
	return c&want == want
}

func (c PinCaps) String() string {
	if c == 0 {
		return "none"
	}
	names := [...]string{"input", "output", "pullup", "pulldown", "native", "adc", "pwm", "virtual"}
	s := ""
	for i, name := range names {
		if c&(1<<uint(i)) == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += name
	}
	return s
}

// PinCapabilities is implemented by anything that can tell which pins it
// can drive.
type PinCapabilities interface {
	Capabilities(pin GPIOPin) PinCaps
}
