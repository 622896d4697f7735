// ABOUTME: Reader for the event stream returned by a streamed chat turn
// ABOUTME: Surfaces data events, converts error events to APIError and flags truncation

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/2389/irma/internal/sse"
)

// Stream reads the events of one streamed turn.
type Stream struct {
	body io.ReadCloser
	dec  *sse.Decoder
	done bool
}

func newStream(body io.ReadCloser) *Stream {
	return &Stream{body: body, dec: sse.NewDecoder(body)}
}

// Next returns the next event.
//
// Data events and the end event are returned with a nil error; after the end
// event Next returns io.EOF. An error event is returned together with its
// decoded *APIError, after which the stream is finished. If the stream breaks
// before an end event, Next returns an error wrapping ErrStreamInterrupted.
func (s *Stream) Next() (sse.Event, error) {
	if s.done {
		return sse.Event{}, io.EOF
	}

	ev, err := s.dec.Next()
	if err != nil {
		s.done = true
		if errors.Is(err, io.EOF) {
			return sse.Event{}, io.EOF
		}
		return sse.Event{}, fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
	}

	switch ev.Name {
	case sse.EventEnd:
		s.done = true
	case sse.EventError:
		s.done = true
		apiErr := newAPIError(0, []byte(ev.Data))
		apiErr.StatusCode = statusForCode(apiErr.Code)
		return ev, apiErr
	}
	return ev, nil
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

// DecodePayload decodes the JSON payload of a data or end event.
func DecodePayload(ev sse.Event) (*StreamPayload, error) {
	var p StreamPayload
	if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
		return nil, fmt.Errorf("decoding event payload: %w", err)
	}
	return &p, nil
}
