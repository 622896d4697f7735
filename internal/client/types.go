// ABOUTME: Wire types exchanged with the irma gateway
// ABOUTME: Conversations, messages, request bodies, health and version documents

package client

import (
	"encoding/json"
	"time"
)

// Message is one utterance of a conversation.
type Message struct {
	MessageID       string    `json:"messageId"`
	Role            string    `json:"role"`
	Text            string    `json:"text"`
	CreatedDateTime time.Time `json:"createdDateTime"`
}

// Conversation is the wire shape of a conversation.
type Conversation struct {
	ConversationID  string    `json:"conversationId"`
	CreatedDateTime time.Time `json:"createdDateTime"`
	DisplayName     string    `json:"displayName"`
	State           string    `json:"state"`
	TurnCount       int       `json:"turnCount"`
	Product         string    `json:"product,omitempty"`
	// Messages is nil in the response to CreateConversation.
	Messages []Message `json:"messages"`

	// Raw is the undecoded response body.
	Raw json.RawMessage `json:"-"`
}

// ContextItem is one piece of additional grounding context.
type ContextItem struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// ChatOptions tune the assistant reply.
type ChatOptions struct {
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// CreateRequest is the body of POST /conversations.
type CreateRequest struct {
	Product           string        `json:"product,omitempty"`
	AdditionalContext []ContextItem `json:"additionalContext,omitempty"`
}

// ChatRequest is the body of the chat and chat-stream calls.
type ChatRequest struct {
	Message           string        `json:"message"`
	Product           string        `json:"product,omitempty"`
	AdditionalContext []ContextItem `json:"additionalContext,omitempty"`
	Options           *ChatOptions  `json:"options,omitempty"`
}

// StreamPayload is the payload of data and end events.
type StreamPayload struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
}

// Dependency is the health of one gateway dependency.
type Dependency struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// Health is the body of GET /healthz.
type Health struct {
	Status        string       `json:"status"`
	UptimeSeconds int64        `json:"uptimeSeconds"`
	Dependencies  []Dependency `json:"dependencies"`
	TraceID       string       `json:"traceId"`

	// StatusCode is the HTTP status of the response (200 or 503).
	StatusCode int             `json:"-"`
	Raw        json.RawMessage `json:"-"`
}

// Healthy reports whether the gateway answered 200.
func (h *Health) Healthy() bool {
	return h.StatusCode == 200
}

// Version is the body of GET /version.
type Version struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildDate   string `json:"buildDate"`
	Runtime     string `json:"runtime"`
	Environment string `json:"environment"`

	Raw json.RawMessage `json:"-"`
}
