// ABOUTME: Conversation service implementing create, get and append-turn
// ABOUTME: Guards the Active state, serialises turns per conversation and commits each turn atomically

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/irma/internal/store"
)

const (
	// DefaultHistoryWindow is how many prior messages a responder sees.
	DefaultHistoryWindow = 20

	// assistantOffset separates the assistant timestamp from the user timestamp.
	assistantOffset = 50 * time.Millisecond

	// displayNameLimit is the number of characters of the first user message kept as display name.
	displayNameLimit = 80

	minMaxTokens   = 16
	maxMaxTokens   = 8192
	minTemperature = 0.0
	maxTemperature = 2.0
)

var productPattern = regexp.MustCompile(`^[^/]+/[^/]+$`)

// CreateRequest carries the optional inputs of a new conversation.
type CreateRequest struct {
	Product string
	Context []ContextItem
	// Caller names the authenticated subject, if any. It is only logged.
	Caller string
}

// TurnRequest is one user utterance to append to a conversation.
type TurnRequest struct {
	ConversationID string
	Message        string
	// Product, when non-blank, replaces the stored product tag.
	Product string
	Context []ContextItem
	Options Options
	// Caller names the authenticated subject, if any. It is only logged.
	Caller string
}

// TurnResult is the outcome of AppendTurn.
type TurnResult struct {
	// Conversation is the updated conversation including all messages. On a
	// conflict it is the unchanged stored conversation.
	Conversation *store.Conversation
	// UserMessage and AssistantMessage are nil unless the turn was committed.
	UserMessage      *store.Message
	AssistantMessage *store.Message
}

// Service owns conversation state transitions.
type Service struct {
	store         store.Store
	responder     Responder
	broadcaster   *TurnBroadcaster
	locks         *keyLock
	historyWindow int
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHistoryWindow limits how many prior messages the responder receives.
func WithHistoryWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

// WithBroadcaster publishes each committed turn to b.
func WithBroadcaster(b *TurnBroadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a new conversation Service
func New(st store.Store, responder Responder, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:         st,
		responder:     responder,
		locks:         newKeyLock(),
		historyWindow: DefaultHistoryWindow,
		now:           time.Now,
		logger:        logger.With("component", "conversation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Responder returns the responder the service delegates to.
func (s *Service) Responder() Responder {
	return s.responder
}

// Broadcaster returns the turn broadcaster, or nil if none is configured.
func (s *Service) Broadcaster() *TurnBroadcaster {
	return s.broadcaster
}

// Create allocates a new Active conversation with no turns.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*store.Conversation, error) {
	if req == nil {
		req = &CreateRequest{}
	}
	if err := validateProduct(req.Product); err != nil {
		return nil, err
	}
	if err := validateContext(req.Context); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	conv := &store.Conversation{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		Product:   strings.TrimSpace(req.Product),
		State:     store.StateActive,
		Messages:  []*store.Message{},
	}

	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"product", conv.Product,
		"context_items", len(req.Context),
		"caller", req.Caller)
	return conv, nil
}

// Get loads a conversation, with its messages when withMessages is set.
func (s *Service) Get(ctx context.Context, id string, withMessages bool) (*store.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id, withMessages)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return conv, nil
}

// SetState moves a conversation to the given state. The append path never
// calls this; it exists for administrative transitions.
func (s *Service) SetState(ctx context.Context, id string, state store.State) error {
	if strings.TrimSpace(string(state)) == "" {
		return &ValidationError{Field: "state", Message: "must not be empty"}
	}
	err := s.store.SetConversationState(ctx, id, state)
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("setting conversation state: %w", err)
	}
	s.logger.Info("conversation state set", "conversation_id", id, "state", state)
	return nil
}

// Validate checks the shape of a turn request.
func (r *TurnRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return &ValidationError{Field: "message", Message: "is required"}
	}
	if err := validateProduct(r.Product); err != nil {
		return err
	}
	if err := validateContext(r.Context); err != nil {
		return err
	}
	if mt := r.Options.MaxTokens; mt != nil && (*mt < minMaxTokens || *mt > maxMaxTokens) {
		return &ValidationError{
			Field:   "options.maxTokens",
			Message: fmt.Sprintf("must be between %d and %d", minMaxTokens, maxMaxTokens),
		}
	}
	if temp := r.Options.Temperature; temp != nil && (*temp < minTemperature || *temp > maxTemperature) {
		return &ValidationError{
			Field:   "options.temperature",
			Message: fmt.Sprintf("must be between %g and %g", minTemperature, maxTemperature),
		}
	}
	return nil
}

// AppendTurn records a user message and the responder's reply as one turn.
//
// Unknown IDs yield a *NotFoundError. A conversation that is not Active is
// returned unchanged together with a *ConflictError. If the responder fails
// nothing is persisted.
func (s *Service) AppendTurn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.ConversationID)
	defer unlock()

	conv, err := s.Get(ctx, req.ConversationID, true)
	if err != nil {
		return nil, err
	}

	if !conv.State.AcceptsTurns() {
		s.logger.Info("turn rejected",
			"conversation_id", conv.ID,
			"state", conv.State,
			"caller", req.Caller)
		return &TurnResult{Conversation: conv}, &ConflictError{ID: conv.ID, State: conv.State}
	}

	reply, err := s.responder.Respond(ctx, &ResponderRequest{
		Conversation: conv,
		History:      lastMessages(conv.Messages, s.historyWindow),
		UserText:     req.Message,
		Context:      req.Context,
		Options:      req.Options,
	})
	if err != nil {
		s.logger.Warn("responder failed", "conversation_id", conv.ID, "error", err)
		return nil, fmt.Errorf("generating reply: %w", err)
	}

	userAt := s.now().UTC()
	// A turn must sort after the previous assistant message, which carries a synthetic offset.
	if n := len(conv.Messages); n > 0 {
		if last := conv.Messages[n-1].CreatedAt; !userAt.After(last) {
			userAt = last.Add(time.Millisecond)
		}
	}
	assistantAt := userAt.Add(assistantOffset)

	userMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           store.RoleUser,
		Text:           req.Message,
		CreatedAt:      userAt,
	}
	assistantMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           store.RoleAssistant,
		Text:           reply,
		CreatedAt:      assistantAt,
	}

	updated := *conv
	updated.TurnCount = conv.TurnCount + 1
	updated.UpdatedAt = assistantAt
	if updated.DisplayName == "" {
		updated.DisplayName = truncateRunes(req.Message, displayNameLimit)
	}
	if product := strings.TrimSpace(req.Product); product != "" {
		updated.Product = product
	}

	newMessages := []*store.Message{userMsg, assistantMsg}
	if err := s.store.SaveConversation(ctx, &updated, conv.TurnCount, newMessages); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{ID: conv.ID}
		}
		if errors.Is(err, store.ErrNotActive) {
			return s.rejectClosedDuringTurn(ctx, conv.ID, req.Caller)
		}
		return nil, fmt.Errorf("saving turn: %w", err)
	}

	updated.Messages = append(append([]*store.Message{}, conv.Messages...), newMessages...)

	result := &TurnResult{
		Conversation:     &updated,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}

	s.logger.Info("turn appended",
		"conversation_id", updated.ID,
		"turn_count", updated.TurnCount,
		"caller", req.Caller)

	if s.broadcaster != nil {
		s.broadcaster.Publish(result)
	}

	return result, nil
}

// rejectClosedDuringTurn reports a conversation whose state changed while its
// reply was being generated. The generated reply is discarded.
func (s *Service) rejectClosedDuringTurn(ctx context.Context, id, caller string) (*TurnResult, error) {
	current, err := s.Get(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("turn rejected after generation",
		"conversation_id", id,
		"state", current.State,
		"caller", caller)
	return &TurnResult{Conversation: current}, &ConflictError{ID: id, State: current.State}
}

// lastMessages returns at most n trailing messages.
func lastMessages(msgs []*store.Message, n int) []*store.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func validateProduct(product string) error {
	product = strings.TrimSpace(product)
	if product == "" {
		return nil
	}
	if !productPattern.MatchString(product) {
		return &ValidationError{Field: "product", Message: "must have the form Name/Version"}
	}
	return nil
}

func validateContext(items []ContextItem) error {
	for i, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("additionalContext[%d].text", i),
				Message: "is required",
			}
		}
	}
	return nil
}
