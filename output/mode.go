package output

// Mode is the state of the output engine.
type Mode uint32

const (
	// Static drives the outputs straight from the port register; the ring
	// keeps cycling but its content is ignored.
	Static Mode = iota
	// Streaming drains the ring; each sample is one output tick.
	Streaming
	// Draining waits for the cut tail descriptor to finish before Static.
	Draining
)

func (m Mode) String() string {
	switch m {
	case Static:
		return "static"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	}
	return "unknown"
}

// ParseMode accepts the names printed by String plus the passthrough and
// stepping aliases used on the console.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "static", "passthrough":
		return Static, true
	case "streaming", "stepping", "stream":
		return Streaming, true
	case "draining", "drain":
		return Draining, true
	}
	return Static, false
}
