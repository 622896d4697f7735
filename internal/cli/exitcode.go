// ABOUTME: Process exit codes and the mapping from command errors to them
// ABOUTME: Gateway failures map by HTTP status; everything else is a generic failure

package cli

import (
	"errors"
	"net/http"

	"github.com/2389/irma/internal/client"
)

// Exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitValidation   = 3
	ExitUnauthorized = 4
	ExitForbidden    = 5
	ExitNotFound     = 6
	ExitConflict     = 7
)

// exitError ends a command with a specific code and an optional message for stderr.
type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string { return e.message }

func failf(message string) error {
	return &exitError{code: ExitFailure, message: message}
}

// ExitCodeForStatus maps an HTTP status to an exit code.
func ExitCodeForStatus(status int) int {
	switch status {
	case http.StatusBadRequest:
		return ExitValidation
	case http.StatusUnauthorized:
		return ExitUnauthorized
	case http.StatusForbidden:
		return ExitForbidden
	case http.StatusNotFound:
		return ExitNotFound
	case http.StatusConflict:
		return ExitConflict
	default:
		return ExitFailure
	}
}

// ExitCode maps a command error to its exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return ExitCodeForStatus(apiErr.StatusCode)
	}
	return ExitFailure
}
