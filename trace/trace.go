// Package trace records streamed port samples as run-length encoded CBOR
// documents and answers simple timing questions about them.
package trace

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/xid"

	"stepstream/core"
)

// Run is Count consecutive samples holding Value.
type Run struct {
	Value uint32 `cbor:"1,keyasint"`
	Count uint32 `cbor:"2,keyasint"`
}

// Event is a recorded core event.
type Event struct {
	Kind   uint8  `cbor:"1,keyasint"`
	ID     uint8  `cbor:"2,keyasint"`
	Clock  uint32 `cbor:"3,keyasint"`
	Value1 uint32 `cbor:"4,keyasint"`
	Value2 uint32 `cbor:"5,keyasint"`
}

// Trace is one capture.
type Trace struct {
	ID      string  `cbor:"1,keyasint"`
	Created int64   `cbor:"2,keyasint"`
	TickUS  uint32  `cbor:"3,keyasint"`
	Runs    []Run   `cbor:"4,keyasint"`
	Events  []Event `cbor:"5,keyasint,omitempty"`
}

// Len returns the number of samples in the trace.
func (t *Trace) Len() uint64 {
	var n uint64
	for _, r := range t.Runs {
		n += uint64(r.Count)
	}
	return n
}

// Duration returns the trace length in output time.
func (t *Trace) Duration() time.Duration {
	return time.Duration(t.Len()) * time.Duration(t.TickUS) * time.Microsecond
}

// Samples expands the trace.
func (t *Trace) Samples() []uint32 {
	out := make([]uint32, 0, t.Len())
	for _, r := range t.Runs {
		for i := uint32(0); i < r.Count; i++ {
			out = append(out, r.Value)
		}
	}
	return out
}

// Edges returns the sample indices where bit rises. The line is taken to be
// low before the first sample.
func (t *Trace) Edges(bit int) []uint64 {
	var edges []uint64
	m := uint32(1) << uint(bit)
	var pos uint64
	prev := false
	for _, r := range t.Runs {
		level := r.Value&m != 0
		if level && !prev {
			edges = append(edges, pos)
		}
		prev = level
		pos += uint64(r.Count)
	}
	return edges
}

// Widths returns the length in samples of each high period of bit.
func (t *Trace) Widths(bit int) []uint32 {
	var widths []uint32
	m := uint32(1) << uint(bit)
	var cur uint32
	for _, r := range t.Runs {
		if r.Value&m != 0 {
			cur += r.Count
			continue
		}
		if cur > 0 {
			widths = append(widths, cur)
			cur = 0
		}
	}
	if cur > 0 {
		widths = append(widths, cur)
	}
	return widths
}

// At returns the sample at index i.
func (t *Trace) At(i uint64) (uint32, bool) {
	for _, r := range t.Runs {
		if i < uint64(r.Count) {
			return r.Value, true
		}
		i -= uint64(r.Count)
	}
	return 0, false
}

// Encode writes t as CBOR.
func Encode(w io.Writer, t *Trace) error {
	return cbor.NewEncoder(w).Encode(t)
}

// Decode reads one CBOR trace.
func Decode(r io.Reader) (*Trace, error) {
	var t Trace
	if err := cbor.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("trace: decode: %w", err)
	}
	return &t, nil
}

// Save writes t to path.
func Save(path string, t *Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a trace from path.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Recorder accumulates samples. Append has the signature of a simulated
// peripheral's sink.
type Recorder struct {
	mu sync.Mutex
	t  Trace
}

// NewRecorder starts an empty capture.
func NewRecorder(tickUS uint32) *Recorder {
	return &Recorder{t: Trace{
		ID:      xid.New().String(),
		Created: time.Now().Unix(),
		TickUS:  tickUS,
	}}
}

// Append adds samples to the capture.
func (r *Recorder) Append(samples []uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range samples {
		n := len(r.t.Runs)
		if n > 0 && r.t.Runs[n-1].Value == v {
			r.t.Runs[n-1].Count++
			continue
		}
		r.t.Runs = append(r.t.Runs, Run{Value: v, Count: 1})
	}
}

// AddEvents copies core events into the capture.
func (r *Recorder) AddEvents(events []core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.t.Events = append(r.t.Events, Event{
			Kind: e.Kind, ID: e.ID, Clock: e.Clock, Value1: e.Value1, Value2: e.Value2,
		})
	}
}

// Trace returns a copy of the capture so far.
func (r *Recorder) Trace() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.t
	t.Runs = append([]Run(nil), r.t.Runs...)
	t.Events = append([]Event(nil), r.t.Events...)
	return &t
}
