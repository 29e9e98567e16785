package serial

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loop replies to each written line from a script, one byte per Read to
// exercise prompt reassembly.
type loop struct {
	replies map[string]string
	out     bytes.Buffer
	written []string
}

func (l *loop) Write(b []byte) (int, error) {
	line := strings.TrimSpace(string(b))
	l.written = append(l.written, line)
	l.out.WriteString(l.replies[line] + Prompt)
	return len(b), nil
}

func (l *loop) Read(b []byte) (int, error) {
	if l.out.Len() == 0 {
		return 0, io.EOF
	}
	return l.out.Read(b[:1])
}

func TestSessionExec(t *testing.T) {
	l := &loop{replies: map[string]string{
		"port":   "0x00000004\r\n",
		"stream": "",
	}}
	l.out.WriteString("stepstream console\r\n" + Prompt)
	s := NewSession(l)
	require.NoError(t, s.Sync())

	got, err := s.Exec("port")
	require.NoError(t, err)
	if got != "0x00000004" {
		t.Errorf("Expected 0x00000004, got %q", got)
	}
	got, err = s.Exec("stream")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []string{"port", "stream"}, l.written)
}

func TestSessionClosed(t *testing.T) {
	s := NewSession(&loop{})
	assert.ErrorIs(t, s.Sync(), ErrNoPrompt)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, "/dev/ttyACM0", cfg.Device)
}
