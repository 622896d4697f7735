// ABOUTME: Error types returned by the gateway client
// ABOUTME: APIError carries the structured error body; ErrStreamInterrupted marks a broken stream

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrStreamInterrupted is returned when an event stream ends without an end event.
var ErrStreamInterrupted = errors.New("event stream interrupted")

// Error codes used in gateway error bodies.
const (
	CodeValidation   = "Validation"
	CodeUnauthorized = "Unauthorized"
	CodeForbidden    = "Forbidden"
	CodeNotFound     = "NotFound"
	CodeConflict     = "Conflict"
	CodeUnexpected   = "Unexpected"
)

// APIError is a failure reported by the gateway.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	TraceID    string
	RawBody    []byte
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", msg, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s (%d)", msg, e.StatusCode)
}

// errorBody mirrors the gateway's {code, message, traceId} document.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"traceId"`
}

// newAPIError builds an APIError from a status and a response body that may
// or may not be a structured error document.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, RawBody: body}
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Message
		apiErr.TraceID = eb.TraceID
	}
	if apiErr.Message == "" && len(body) > 0 && len(body) < 512 {
		apiErr.Message = string(body)
	}
	return apiErr
}

// statusForCode maps an error body code to its HTTP status. Stream error
// events carry only the body, so the status is recovered from the code.
func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
