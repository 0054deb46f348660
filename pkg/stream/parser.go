package stream

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxLineSize bounds a single SSE line. One spectrum frame is one data line,
// and large FFT sizes produce lines of a few hundred kilobytes.
const maxLineSize = 8 << 20

// Event is one dispatched server-sent event.
type Event struct {
	ID    string
	Type  string
	Data  []byte
	Retry time.Duration
}

// Reader splits a text/event-stream body into events.
type Reader struct {
	scanner *bufio.Scanner

	lastID string
}

// NewReader wraps an event-stream body.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: sc}
}

// LastEventID returns the most recent id field seen, which persists across
// events as in a browser EventSource.
func (r *Reader) LastEventID() string { return r.lastID }

// Next blocks until a complete event is available. An event whose data
// buffer is empty is not dispatched, but a retry field on its own is
// reported with nil Data. A trailing event without its blank line
// terminator is discarded at EOF.
func (r *Reader) Next() (Event, error) {
	var (
		data    strings.Builder
		hasData bool
		ev      Event
	)
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if line == "" {
			if !hasData {
				if ev.Retry > 0 {
					return Event{Retry: ev.Retry, ID: r.lastID}, nil
				}
				ev.Type = ""
				continue
			}
			ev.ID = r.lastID
			ev.Data = []byte(data.String())
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := line, ""
		if i := strings.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], strings.TrimPrefix(line[i+1:], " ")
		}
		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			ev.Type = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
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
