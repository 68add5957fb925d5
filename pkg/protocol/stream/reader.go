package stream

import (
	"bufio"
	"io"
	"strings"
)

// Event is a single server-sent event as read from an upstream body.
type Event struct {
	// Name is the value of the "event:" field, empty if the upstream
	// only sends data lines.
	Name string

	// Data is the joined payload of the event's "data:" lines.
	Data string
}

// Reader is a pull-based iterator over an SSE byte stream. Adapters call
// Next in a loop and interpret each event's data per their upstream's
// vocabulary.
type Reader struct {
	scanner *bufio.Scanner
}

// maxEventSize bounds a single SSE event. Upstream deltas are small, but
// some providers send whole tool schemas or images in one event.
const maxEventSize = 10 * 1024 * 1024

// NewReader creates a reader over an upstream response body.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the stream ends,
// including the OpenAI-style "data: [DONE]" terminator.
func (r *Reader) Next() (*Event, error) {
	var name string
	var dataLines []string

	for r.scanner.Scan() {
		line := r.scanner.Text()

		// Blank line terminates an event.
		if line == "" {
			if name == "" && len(dataLines) == 0 {
				continue
			}
			break
		}

		// Comment lines are keep-alives.
		if strings.HasPrefix(line, ":") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// Other fields (id, retry) are ignored.
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if name == "" && len(dataLines) == 0 {
		return nil, io.EOF
	}

	data := strings.Join(dataLines, "\n")
	if data == "[DONE]" {
		return nil, io.EOF
	}
	return &Event{Name: name, Data: data}, nil
}
