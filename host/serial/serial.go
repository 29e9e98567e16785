// Package serial talks to the firmware console over a USB CDC port.
package serial

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// Port is an open serial connection. Tests substitute an in-memory pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; USB CDC ignores it
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the console settings for device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}

// Prompt ends every console reply.
const Prompt = "> "

var ErrNoPrompt = errors.New("serial: connection closed before prompt")

// Session runs console commands over a port.
type Session struct {
	rw  io.ReadWriter
	buf bytes.Buffer
}

// NewSession wraps rw.
func NewSession(rw io.ReadWriter) *Session {
	return &Session{rw: rw}
}

// Sync reads until the first prompt, discarding the banner.
func (s *Session) Sync() error {
	_, err := s.readPrompt()
	return err
}

// Exec sends one command and returns the reply without the prompt.
func (s *Session) Exec(line string) (string, error) {
	if _, err := io.WriteString(s.rw, line+"\n"); err != nil {
		return "", err
	}
	reply, err := s.readPrompt()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(reply, "\r\n"), nil
}

func (s *Session) readPrompt() (string, error) {
	chunk := make([]byte, 256)
	for {
		if i := bytes.Index(s.buf.Bytes(), []byte(Prompt)); i >= 0 {
			reply := string(s.buf.Next(i))
			s.buf.Next(len(Prompt))
			return reply, nil
		}
		n, err := s.rw.Read(chunk)
		s.buf.Write(chunk[:n])
		if err == io.EOF {
			return "", ErrNoPrompt
		}
		if err != nil {
			return "", err
		}
	}
}
