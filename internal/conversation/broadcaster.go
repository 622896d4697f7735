// ABOUTME: In-memory fan-out of committed turns to watchers of a conversation
// ABOUTME: Lets observers follow a conversation live without polling the store

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// TurnBroadcaster provides in-memory pub/sub for committed turns.
// Subscribers register for a conversation ID and receive each turn after it
// has been persisted.
type TurnBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *TurnResult // conversationID -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewTurnBroadcaster creates a broadcaster. Pass nil logger for default.
func NewTurnBroadcaster(logger *slog.Logger) *TurnBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnBroadcaster{
		subscribers: make(map[string]map[string]chan *TurnResult),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for turns on the given conversation.
// The returned channel is closed when ctx is cancelled or the broadcaster closes.
func (b *TurnBroadcaster) Subscribe(ctx context.Context, conversationID string) (<-chan *TurnResult, string) {
	subID := uuid.New().String()
	ch := make(chan *TurnResult, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan *TurnResult)
	}
	b.subscribers[conversationID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		"conversation_id", conversationID,
		"sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish delivers a turn to every subscriber of its conversation.
// Non-blocking: turns are dropped for subscribers whose channels are full.
func (b *TurnBroadcaster) Publish(turn *TurnResult) {
	id := turn.Conversation.ID

	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers[id] {
		select {
		case ch <- turn:
		default:
			b.logger.Debug("dropped turn for slow subscriber",
				"conversation_id", id,
				"sub_id", subID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *TurnBroadcaster) Unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}

	b.logger.Debug("subscriber removed",
		"conversation_id", conversationID,
		"sub_id", subID)
}

// SubscriberCount returns the number of live subscriptions for a conversation.
func (b *TurnBroadcaster) SubscriberCount(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[conversationID])
}

// Close shuts down the broadcaster and closes all subscriber channels.
// Later subscriptions receive an already closed channel.
func (b *TurnBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	for convID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, convID)
	}

	b.logger.Debug("broadcaster closed")
}
