package core

import "testing"

func TestPinCapsHas(t *testing.T) {
	c := CapOutput | CapNative | CapInput

	if !c.Has(CapOutput | CapNative) {
		t.Errorf("Expected %s to have output|native", c)
	}
	if c.Has(CapOutput | CapPWM) {
		t.Errorf("Expected %s to lack pwm", c)
	}
	if !c.Has(0) {
		t.Errorf("Empty requirement must always be satisfied")
	}
}

func TestPinCapsString(t *testing.T) {
	tests := []struct {
		caps PinCaps
		want string
	}{
		{0, "none"},
		{CapOutput, "output"},
		{CapInput | CapOutput | CapNative, "input|output|native"},
		{CapVirtual, "virtual"},
	}
	for _, tt := range tests {
		if got := tt.caps.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}
