// ABOUTME: Turn responder contract and the placeholder echo implementation
// ABOUTME: The responder turns a user utterance plus context into assistant text

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/irma/internal/store"
)

// ContextItem is a piece of caller-supplied grounding text.
type ContextItem struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// Options tunes generation. Zero values mean "responder default".
type Options struct {
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// ResponderRequest is everything a responder may look at for one turn.
type ResponderRequest struct {
	Conversation *store.Conversation
	// History is the most recent window of prior messages, oldest first.
	History  []*store.Message
	UserText string
	Context  []ContextItem
	Options  Options
}

// Responder produces the assistant reply for a turn.
type Responder interface {
	Respond(ctx context.Context, req *ResponderRequest) (string, error)
}

// DependencyStatus is the health of one dependency.
type DependencyStatus string

// Dependency health values
const (
	StatusHealthy   DependencyStatus = "Healthy"
	StatusDegraded  DependencyStatus = "Degraded"
	StatusUnhealthy DependencyStatus = "Unhealthy"
	StatusUnknown   DependencyStatus = "Unknown"
)

// HealthChecker is implemented by responders that can report their own health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (DependencyStatus, string)
}

// EchoResponder is the placeholder responder. It answers every turn by
// quoting the user text back.
type EchoResponder struct {
	// Delay simulates generation latency. The wait is abandoned if ctx ends.
	Delay  time.Duration
	logger *slog.Logger
}

// NewEchoResponder creates an EchoResponder with the given artificial delay.
func NewEchoResponder(delay time.Duration, logger *slog.Logger) *EchoResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EchoResponder{
		Delay:  delay,
		logger: logger.With("component", "responder"),
	}
}

// Respond returns the echo text for req.
func (r *EchoResponder) Respond(ctx context.Context, req *ResponderRequest) (string, error) {
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	r.logger.Debug("echo reply",
		"conversation_id", req.Conversation.ID,
		"history", len(req.History),
		"context_items", len(req.Context))

	return fmt.Sprintf("Echo: %q", req.UserText), nil
}
