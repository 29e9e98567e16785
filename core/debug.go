package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event captures a state change of the pulse engine or input mirror for
// post-mortem analysis.
type Event struct {
	Kind   uint8  // Event kind code
	ID     uint8  // Descriptor index, bit index, etc.
	Clock  uint32 // Core clock (µs) at event
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event kind codes
const (
	EvtModeChange  = 1 // v1=from, v2=to
	EvtChainCut    = 2 // id=descriptor
	EvtDrainDone   = 3 // id=tail descriptor
	EvtUnderrun    = 4 // v1=total underruns
	EvtReset       = 5 // v1=mode before reset
	EvtStart       = 6 // v1=port value, v2=1 when passthrough
	EvtStop        = 7 // v1=port value
	EvtInputChange = 8 // v1=old, v2=new
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// Disabled by default; the console "debug" command or --verbose enables it
	debugEnabled bool = false

	eventLock SpinLock
	eventRing [EventRingSize]Event
	eventHead uint8

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Never call it from an interrupt handler.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if !debugEnabled || debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordEvent stores an event in the ring, overwriting the oldest.
// It does not allocate or block.
func RecordEvent(kind, id uint8, value1, value2 uint32) {
	s := eventLock.Lock()
	eventRing[eventHead] = Event{
		Kind:   kind,
		ID:     id,
		Clock:  Micros(),
		Value1: value1,
		Value2: value2,
	}
	eventHead = (eventHead + 1) % EventRingSize
	eventLock.Unlock(s)
}

// Events returns the recorded events, oldest first.
func Events() []Event {
	s := eventLock.Lock()
	out := make([]Event, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(eventHead+i)%EventRingSize]
		if evt.Kind != 0 {
			out = append(out, evt)
		}
	}
	eventLock.Unlock(s)
	return out
}

// EventName returns the display name for an event kind.
func EventName(kind uint8) string {
	switch kind {
	case EvtModeChange:
		return "MODE"
	case EvtChainCut:
		return "CHAIN_CUT"
	case EvtDrainDone:
		return "DRAIN_DONE"
	case EvtUnderrun:
		return "UNDERRUN!"
	case EvtReset:
		return "RESET"
	case EvtStart:
		return "START"
	case EvtStop:
		return "STOP"
	case EvtInputChange:
		return "INPUT"
	}
	return "UNKNOWN"
}

// FormatEvent renders one event the way DumpEvents prints it.
func FormatEvent(evt Event) string {
	return EventName(evt.Kind) +
		" id=" + itoa(int(evt.ID)) +
		" clock=" + utoa(evt.Clock) +
		" v1=" + Hex32(evt.Value1) +
		" v2=" + Hex32(evt.Value2)
}

// DumpEvents writes the event ring through the debug writer regardless of
// the enabled flag (call on shutdown/error).
func DumpEvents() {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[EVENTS] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENTS] " + FormatEvent(evt))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// ClearEvents empties the event ring
func ClearEvents() {
	s := eventLock.Lock()
	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventHead = 0
	eventLock.Unlock(s)
}
