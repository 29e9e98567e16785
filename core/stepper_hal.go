package core

// StepperBackend defines the hardware abstraction for one stepper's step and
// direction outputs. On this firmware the outputs are usually bits of the
// virtual port, and Step only marks the bit in the pattern the pulse engine
// emits next.
type StepperBackend interface {
	// Init binds the backend to its outputs.
	// stepPin: output for step pulses
	// dirPin: output for the direction signal
	// invertStep: step pulses are active low
	// invertDir: invert direction polarity
	Init(stepPin, dirPin uint8, invertStep, invertDir bool) error

	// Step generates a single step pulse. Called from the pulse callback, so
	// it must not block.
	Step()

	// SetDirection sets the direction output
	// dir: true = reverse, false = forward
	SetDirection(dir bool)

	// Stop immediately returns the step output to idle
	Stop()

	// GetName returns backend implementation name
	GetName() string
}

// StepperBackendInfo provides information about available backends
type StepperBackendInfo struct {
	Name        string
	MaxStepRate uint32 // Maximum steps/second per axis
	MinPulseNs  uint32 // Minimum step pulse width (ns)
}
