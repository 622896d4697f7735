// ABOUTME: JSON error bodies and the mapping from service errors to HTTP status codes
// ABOUTME: Every error response carries a code, a message and the request trace id

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2389/irma/internal/conversation"
)

// Error codes used in response bodies
const (
	CodeValidation   = "Validation"
	CodeUnauthorized = "Unauthorized"
	CodeForbidden    = "Forbidden"
	CodeNotFound     = "NotFound"
	CodeConflict     = "Conflict"
	CodeUnexpected   = "Unexpected"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"traceId"`
}

// writeJSON writes v as a JSON response with the given status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Warn("failed to write response", "error", err)
	}
}

// writeError writes a JSON error response.
func (g *Gateway) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	g.writeJSON(w, status, errorBody(r, code, message))
}

// writeAuthError adapts writeError to the auth middleware's callback.
func (g *Gateway) writeAuthError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	g.logger.Debug("request rejected by auth", "path", r.URL.Path, "status", status, "reason", message)
	g.writeError(w, r, status, code, message)
}

func errorBody(r *http.Request, code, message string) ErrorResponse {
	return ErrorResponse{Code: code, Message: message, TraceID: TraceID(r.Context())}
}

// classifyError maps a service error to status, code and message.
func classifyError(err error) (int, string, string) {
	var verr *conversation.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, CodeValidation, verr.Error()
	case errors.Is(err, conversation.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, err.Error()
	case errors.Is(err, conversation.ErrConflict):
		return http.StatusConflict, CodeConflict, err.Error()
	default:
		return http.StatusInternalServerError, CodeUnexpected, "An unexpected error occurred."
	}
}

// writeServiceError renders err from the conversation service.
func (g *Gateway) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classifyError(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("request failed", "path", r.URL.Path, "trace_id", TraceID(r.Context()), "error", err)
	}
	g.writeError(w, r, status, code, message)
}
