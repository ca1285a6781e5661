package providers

import (
	"bufio"
	"bytes"
	"io"
)

// maxSSELineSize bounds one SSE line. Chat deltas are small but error
// payloads can be large.
const maxSSELineSize = 1024 * 1024

var (
	sseDataPrefix  = []byte("data:")
	sseEventPrefix = []byte("event:")
)

// SSEScanner scans Server-Sent Events (SSE) streams. Every "data:" line is
// reported as its own event.
type SSEScanner struct {
	scanner *bufio.Scanner
	event   string
	data    string
	err     error
}

// NewSSEScanner creates a new SSE scanner
func NewSSEScanner(r io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &SSEScanner{
		scanner: scanner,
	}
}

// Scan advances to the next SSE data line
func (s *SSEScanner) Scan() bool {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()

		// Blank lines end an event; the event name does not carry over.
		if len(line) == 0 {
			s.event = ""
			continue
		}

		if bytes.HasPrefix(line, sseEventPrefix) {
			s.event = string(trimFieldValue(line[len(sseEventPrefix):]))
			continue
		}

		if bytes.HasPrefix(line, sseDataPrefix) {
			s.data = string(trimFieldValue(line[len(sseDataPrefix):]))
			return true
		}
	}

	s.err = s.scanner.Err()
	return false
}

// trimFieldValue drops the single optional space after the field colon.
func trimFieldValue(v []byte) []byte {
	if len(v) > 0 && v[0] == ' ' {
		return v[1:]
	}
	return v
}

// Data returns the current event data
func (s *SSEScanner) Data() string {
	return s.data
}

// Event returns the "event:" name in effect for the current data line, or
// "" when the server did not name it.
func (s *SSEScanner) Event() string {
	return s.event
}

// Err returns any scanning error
func (s *SSEScanner) Err() error {
	return s.err
}
