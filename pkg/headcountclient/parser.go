package headcountclient

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"
)

const maxFrameSize = 1 << 20

// Event is one server-sent event.
type Event struct {
	Name  string
	ID    string
	Data  string
	Retry time.Duration
}

// Decode unmarshals the event data as JSON.
func (e Event) Decode(v any) error {
	return json.Unmarshal([]byte(e.Data), v)
}

// reader splits a text/event-stream body into events.
type reader struct {
	scanner *bufio.Scanner
}

func newReader(r io.Reader) *reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &reader{scanner: s}
}

// Next returns the next complete event. It returns io.EOF when the stream ends cleanly.
func (r *reader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
		seen    bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if !seen {
				continue
			}
			if hasData {
				ev.Data = strings.Join(data, "\n")
			}
			if ev.Name == "" {
				ev.Name = "message"
			}
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		seen = true
		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			ev.ID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
