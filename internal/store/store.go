// ABOUTME: Store interface and data types for irma conversation persistence
// ABOUTME: Defines Conversation, Message, State and Role plus the repository contract

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when creating a conversation whose ID is taken
var ErrDuplicateConversation = errors.New("conversation already exists")

// ErrStaleConversation is returned by SaveConversation when the stored turn count no longer
// matches the one the caller loaded, meaning another turn was committed in between.
var ErrStaleConversation = errors.New("conversation modified concurrently")

// ErrNotActive is returned by SaveConversation when the conversation left the Active
// state after the caller loaded it.
var ErrNotActive = errors.New("conversation is not active")

// State is the lifecycle state of a conversation. It is stored verbatim so that states
// added later (archival, expiry) need no schema change; only StateActive accepts turns.
type State string

// Known conversation states
const (
	StateActive   State = "Active"
	StateClosed   State = "Closed"
	StateArchived State = "Archived"
	StateExpired  State = "Expired"
)

// AcceptsTurns reports whether a conversation in this state may receive new turns.
func (s State) AcceptsTurns() bool {
	return s == StateActive
}

// Role identifies the author of a message
type Role string

// Message roles
const (
	RoleUser      Role = "User"
	RoleAssistant Role = "Assistant"
)

// Conversation is a single chat conversation and, when loaded with messages, its turns
type Conversation struct {
	ID          string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DisplayName string
	Product     string // empty when no product tag is set
	State       State
	TurnCount   int

	// Messages is ordered by CreatedAt ascending. It is nil unless the conversation
	// was loaded with messages.
	Messages []*Message
}

// Message is one utterance within a conversation
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Text           string
	CreatedAt      time.Time
}

// Store defines the repository used by the conversation service
type Store interface {
	// CreateConversation inserts a new conversation row (messages are ignored).
	CreateConversation(ctx context.Context, conv *Conversation) error

	// GetConversation loads a conversation, optionally with its messages.
	// Returns ErrNotFound if the conversation doesn't exist.
	GetConversation(ctx context.Context, id string, withMessages bool) (*Conversation, error)

	// SaveConversation updates the conversation row and inserts newMessages as one unit.
	// The stored state is never written here. expectedTurns is the turn count the caller
	// loaded; if the stored value differs the write is rejected with ErrStaleConversation,
	// and if the conversation is no longer Active it is rejected with ErrNotActive.
	// Either way nothing is changed.
	SaveConversation(ctx context.Context, conv *Conversation, expectedTurns int, newMessages []*Message) error

	// SetConversationState changes the lifecycle state of a conversation.
	SetConversationState(ctx context.Context, id string, state State) error

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
