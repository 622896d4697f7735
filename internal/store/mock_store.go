// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by conversation ID, messages held separately
	messages      map[string][]*Message    // keyed by conversation ID

	// PingErr, when set, is returned from Ping.
	PingErr error
	// SaveErr, when set, is returned from SaveConversation without changing anything.
	SaveErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
	}
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conv.ID]; ok {
		return ErrDuplicateConversation
	}

	// Make a copy to avoid external modification
	c := *conv
	c.Messages = nil
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string, withMessages bool) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *c
	if withMessages {
		result.Messages = make([]*Message, 0, len(m.messages[id]))
		for _, msg := range m.messages[id] {
			msgCopy := *msg
			result.Messages = append(result.Messages, &msgCopy)
		}
		sort.SliceStable(result.Messages, func(i, j int) bool {
			return result.Messages[i].CreatedAt.Before(result.Messages[j].CreatedAt)
		})
	}
	return &result, nil
}

// SaveConversation updates a conversation and appends messages.
func (m *MockStore) SaveConversation(ctx context.Context, conv *Conversation, expectedTurns int, newMessages []*Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}

	existing, ok := m.conversations[conv.ID]
	if !ok {
		return ErrNotFound
	}
	if !existing.State.AcceptsTurns() {
		return ErrNotActive
	}
	if existing.TurnCount != expectedTurns {
		return ErrStaleConversation
	}

	c := *conv
	c.Messages = nil
	c.CreatedAt = existing.CreatedAt
	c.State = existing.State
	m.conversations[c.ID] = &c

	for _, msg := range newMessages {
		msgCopy := *msg
		msgCopy.ConversationID = c.ID
		m.messages[c.ID] = append(m.messages[c.ID], &msgCopy)
	}
	return nil
}

// SetConversationState updates the lifecycle state of a conversation.
func (m *MockStore) SetConversationState(ctx context.Context, id string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.State = state
	return nil
}

// Ping returns PingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingErr
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// MessageCount returns the number of stored messages for a conversation.
func (m *MockStore) MessageCount(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[id])
}

// Compile-time checks
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
