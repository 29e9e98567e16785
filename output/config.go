package output

import (
	"encoding/json"
	"errors"
	"fmt"

	"stepstream/core"
)

const (
	DefaultTickUS      = 4
	DefaultBuffers     = 5
	DefaultBufferWords = 500 // 2000 bytes of 32-bit samples
	DefaultMaxPushUS   = 20
	DefaultPeriodUS    = 100
)

// Config describes the output engine. Zero fields take the defaults above.
type Config struct {
	Pins        core.ShiftPins `json:"pins"`
	TickUS      uint32         `json:"tick_us"`      // duration of one sample
	InitValue   uint32         `json:"init_value"`   // port value at start
	Buffers     int            `json:"buffers"`      // descriptors in the ring
	BufferWords int            `json:"buffer_words"` // samples per descriptor
	PulseUS     uint32         `json:"pulse_us"`     // how long a callback pattern is held
	MaxPushUS   uint32         `json:"max_push_us"`  // safety margin at the end of each buffer
	PeriodUS    uint32         `json:"period_us"`    // initial pulse callback period
}

// LoadConfig parses a JSON engine configuration and applies defaults.
func LoadConfig(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("output: parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, cfg.validate()
}

func (c *Config) applyDefaults() {
	if c.TickUS == 0 {
		c.TickUS = DefaultTickUS
	}
	if c.Buffers == 0 {
		c.Buffers = DefaultBuffers
	}
	if c.BufferWords == 0 {
		c.BufferWords = DefaultBufferWords
	}
	if c.MaxPushUS == 0 {
		c.MaxPushUS = DefaultMaxPushUS
	}
	if c.PulseUS == 0 {
		c.PulseUS = c.TickUS
	}
	if c.PeriodUS == 0 {
		c.PeriodUS = DefaultPeriodUS
	}
}

var errConfig = errors.New("output: invalid config")

func (c *Config) validate() error {
	if c.Buffers < 2 {
		return fmt.Errorf("%w: need at least 2 buffers, got %d", errConfig, c.Buffers)
	}
	safe := c.SafeCount()
	if safe < 1 {
		return fmt.Errorf("%w: max_push_us %d is shorter than one tick", errConfig, c.MaxPushUS)
	}
	if safe >= c.BufferWords {
		return fmt.Errorf("%w: safety margin of %d samples leaves no room in %d", errConfig, safe, c.BufferWords)
	}
	if c.PulseTicks() > safe {
		return fmt.Errorf("%w: pulse_us %d exceeds max_push_us %d", errConfig, c.PulseUS, c.MaxPushUS)
	}
	return nil
}

// SafeCount is the number of samples kept free at the end of every buffer so
// a pulse that is due there moves whole into the next buffer.
func (c Config) SafeCount() int {
	return int(c.MaxPushUS / c.TickUS)
}

// PulseTicks is the number of samples a callback pattern occupies.
func (c Config) PulseTicks() int {
	n := int(core.TicksFromUS(c.PulseUS, c.TickUS))
	if n < 1 {
		n = 1
	}
	return n
}
