package trace

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepstream/core"
)

func TestRecorderRunLength(t *testing.T) {
	r := NewRecorder(4)
	r.Append([]uint32{0, 0, 1, 1, 1})
	r.Append([]uint32{1, 0})

	tr := r.Trace()
	assert.Equal(t, []Run{{0, 2}, {1, 4}, {0, 1}}, tr.Runs)
	assert.Equal(t, uint64(7), tr.Len())
	assert.Equal(t, []uint32{0, 0, 1, 1, 1, 1, 0}, tr.Samples())
	assert.NotEmpty(t, tr.ID)
}

func TestEdgesAndWidths(t *testing.T) {
	r := NewRecorder(4)
	r.Append([]uint32{0x1, 0x3, 0x2, 0x0, 0x1, 0x1, 0x0})
	tr := r.Trace()

	if got := tr.Edges(0); len(got) != 2 || got[0] != 0 || got[1] != 4 {
		t.Errorf("Expected bit 0 edges [0 4], got %v", got)
	}
	assert.Equal(t, []uint64{1}, tr.Edges(1))
	assert.Equal(t, []uint32{2, 2}, tr.Widths(0))
	assert.Equal(t, []uint32{2}, tr.Widths(1))

	v, ok := tr.At(5)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), v)
	_, ok = tr.At(7)
	assert.False(t, ok)
}

func TestEncodeDecode(t *testing.T) {
	r := NewRecorder(4)
	r.Append([]uint32{5, 5, 6})
	r.AddEvents([]core.Event{{Kind: core.EvtModeChange, ID: 1, Clock: 40, Value1: 2}})
	want := r.Trace()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, want))
	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(12000), got.Duration().Nanoseconds())
}

func TestSaveLoad(t *testing.T) {
	r := NewRecorder(2)
	r.Append([]uint32{1, 2, 3})
	path := filepath.Join(t.TempDir(), "run.cbor")

	require.NoError(t, Save(path, r.Trace()))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Len())
	assert.Equal(t, uint32(2), got.TickUS)

	_, err = Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0xff, 0x00}))
	assert.Error(t, err)
}
