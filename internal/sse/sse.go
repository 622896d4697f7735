// ABOUTME: Server-sent event codec used to stream turns to remote callers
// ABOUTME: Encoder writes named multi-line frames; Decoder reads them back until an end event

package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Reserved event names.
const (
	// EventError carries an error document; the receiver surfaces it and stops.
	EventError = "error"
	// EventEnd terminates the stream; nothing after it is read.
	EventEnd = "end"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// maxLineSize bounds a single line of the stream.
const maxLineSize = 1024 * 1024

// Event is one frame of the stream. An empty Name marks a plain data event.
type Event struct {
	Name string
	Data string
}

// IsTerminal reports whether the receiver must stop after this event.
func (e Event) IsTerminal() bool {
	return e.Name == EventEnd || e.Name == EventError
}

// Encoder writes events to an underlying writer, flushing after each one when
// the writer supports it.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		enc.flusher = f
	}
	return enc
}

// Encode writes a single event frame. Each payload line becomes its own
// data line with surrounding whitespace trimmed.
func (e *Encoder) Encode(ev Event) error {
	var b strings.Builder
	if name := strings.TrimSpace(ev.Name); name != "" {
		b.WriteString("event: ")
		b.WriteString(name)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSpace(line))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(e.w, b.String()); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// EncodeJSON marshals v and writes it as the payload of an event named name.
func (e *Encoder) EncodeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling event data: %w", err)
	}
	return e.Encode(Event{Name: name, Data: string(data)})
}

// Decoder reads events from a stream.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: scanner}
}

// Next returns the next complete event.
//
// After an end event has been returned, Next returns io.EOF without reading
// further. If the input ends before an end event, any partial frame is
// dropped and io.ErrUnexpectedEOF is returned. Read errors are passed through.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{}, io.EOF
	}

	var name string
	var dataLines []string
	var hasData bool

	for d.scanner.Scan() {
		line := d.scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if name == "" && !hasData {
				continue
			}
			ev := Event{Name: name, Data: strings.Join(dataLines, "\n")}
			if ev.Name == EventEnd {
				d.done = true
			}
			return ev, nil
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			hasData = true
		}
		// Comments (":") and unknown fields are ignored.
	}

	d.done = true
	if err := d.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("reading event stream: %w", err)
	}
	return Event{}, io.ErrUnexpectedEOF
}

// ReadAll decodes events until the stream ends, an end event is seen or an
// error event is seen. The returned events include the terminal one. err is
// nil when the stream terminated with an end or error event.
func ReadAll(r io.Reader) ([]Event, error) {
	dec := NewDecoder(r)
	var events []Event
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
		if ev.IsTerminal() {
			return events, nil
		}
	}
}
