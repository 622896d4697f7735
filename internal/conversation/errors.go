// ABOUTME: Error taxonomy for the conversation service
// ABOUTME: Sentinels plus typed errors carrying the detail handlers need for bodies

package conversation

import (
	"errors"
	"fmt"

	"github.com/2389/irma/internal/store"
)

var (
	// ErrNotFound is returned when no conversation has the requested ID.
	ErrNotFound = errors.New("conversation not found")

	// ErrConflict is returned when a turn is appended to a conversation that is not Active.
	ErrConflict = errors.New("conversation cannot accept turns")

	// ErrValidation is returned when a request is malformed.
	ErrValidation = errors.New("validation failed")
)

// NotFoundError identifies the conversation that could not be found.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Conversation '%s' not found.", e.ID)
}

// Is makes errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports the state that blocked a turn.
type ConflictError struct {
	ID    string
	State store.State
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Conversation '%s' is in state '%s' and cannot receive new messages.", e.ID, e.State)
}

// Is makes errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError names the offending request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
