// ABOUTME: HTTP handlers for the conversation API including the SSE chat stream
// ABOUTME: Decodes and validates request bodies before dispatching to the conversation service

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/2389/irma/internal/auth"
	"github.com/2389/irma/internal/conversation"
	"github.com/2389/irma/internal/sse"
	"github.com/2389/irma/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// CreateConversationRequest is the body of POST /conversations.
type CreateConversationRequest struct {
	Product           string                     `json:"product,omitempty"`
	AdditionalContext []conversation.ContextItem `json:"additionalContext,omitempty"`
}

// ChatRequest is the body of the chat and chat-stream endpoints.
type ChatRequest struct {
	Message           string                     `json:"message"`
	Product           string                     `json:"product,omitempty"`
	AdditionalContext []conversation.ContextItem `json:"additionalContext,omitempty"`
	Options           *conversation.Options      `json:"options,omitempty"`
}

// ConversationSummary is a conversation without its messages, as returned on create.
type ConversationSummary struct {
	ConversationID  string    `json:"conversationId"`
	CreatedDateTime time.Time `json:"createdDateTime"`
	DisplayName     string    `json:"displayName"`
	State           string    `json:"state"`
	TurnCount       int       `json:"turnCount"`
	Product         string    `json:"product,omitempty"`
}

// ConversationResponse is a conversation with its messages.
type ConversationResponse struct {
	ConversationSummary
	Messages []MessageResponse `json:"messages"`
}

// MessageResponse is the wire shape of a message.
type MessageResponse struct {
	MessageID       string    `json:"messageId"`
	Role            string    `json:"role"`
	Text            string    `json:"text"`
	CreatedDateTime time.Time `json:"createdDateTime"`
}

// StreamPayload is the JSON payload of data and end events.
type StreamPayload struct {
	ConversationID string            `json:"conversationId"`
	Messages       []MessageResponse `json:"messages"`
}

func toMessageResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		MessageID:       m.ID,
		Role:            string(m.Role),
		Text:            m.Text,
		CreatedDateTime: m.CreatedAt,
	}
}

func toConversationSummary(c *store.Conversation) ConversationSummary {
	return ConversationSummary{
		ConversationID:  c.ID,
		CreatedDateTime: c.CreatedAt,
		DisplayName:     c.DisplayName,
		State:           string(c.State),
		TurnCount:       c.TurnCount,
		Product:         c.Product,
	}
}

func toConversationResponse(c *store.Conversation) ConversationResponse {
	resp := ConversationResponse{
		ConversationSummary: toConversationSummary(c),
		Messages:            make([]MessageResponse, 0, len(c.Messages)),
	}
	for _, m := range c.Messages {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}
	return resp
}

// decodeJSONBody decodes r's body into dst, rejecting unknown fields and
// trailing data. An empty body is reported with errEmptyBody.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return &conversation.ValidationError{Field: "body", Message: err.Error()}
	}
	if dec.More() {
		return &conversation.ValidationError{Field: "body", Message: "must contain a single JSON object"}
	}
	return nil
}

var errEmptyBody = &conversation.ValidationError{Field: "body", Message: "is required"}

// parseChatRequest decodes and validates a chat body for the conversation in the path.
func parseChatRequest(w http.ResponseWriter, r *http.Request, id string) (*conversation.TurnRequest, error) {
	var body ChatRequest
	if err := decodeJSONBody(w, r, &body); err != nil {
		return nil, err
	}

	req := &conversation.TurnRequest{
		ConversationID: id,
		Message:        body.Message,
		Product:        body.Product,
		Context:        body.AdditionalContext,
		Caller:         auth.Subject(r.Context()),
	}
	if body.Options != nil {
		req.Options = *body.Options
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// conversationID extracts the {id} path value. Non-UUID ids cannot name a
// conversation, so they are reported as not found.
func conversationID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", &conversation.NotFoundError{ID: id}
	}
	return id, nil
}

// handleCreateConversation handles POST /conversations.
func (g *Gateway) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var body CreateConversationRequest
	if err := decodeJSONBody(w, r, &body); err != nil && !errors.Is(err, errEmptyBody) {
		g.writeServiceError(w, r, err)
		return
	}

	conv, err := g.conversation.Create(r.Context(), &conversation.CreateRequest{
		Product: body.Product,
		Context: body.AdditionalContext,
		Caller:  auth.Subject(r.Context()),
	})
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/conversations/"+conv.ID)
	g.writeJSON(w, http.StatusCreated, toConversationSummary(conv))
}

// handleGetConversation handles GET /conversations/{id}.
func (g *Gateway) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	conv, err := g.conversation.Get(r.Context(), id, true)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	g.writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

// handleChat handles POST /conversations/{id}/chat.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	req, err := parseChatRequest(w, r, id)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	result, err := g.conversation.AppendTurn(r.Context(), req)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	g.writeJSON(w, http.StatusOK, toConversationResponse(result.Conversation))
}

// setSSEHeaders prepares w for an event stream.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// handleChatStream handles POST /conversations/{id}/chat-stream.
//
// The turn is committed before any byte of the stream is written. Not-found
// and validation failures are ordinary JSON errors. A rejected turn yields a
// single error event and no end event.
func (g *Gateway) handleChatStream(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	req, err := parseChatRequest(w, r, id)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	if _, ok := w.(http.Flusher); !ok {
		g.writeError(w, r, http.StatusInternalServerError, CodeUnexpected, "streaming not supported")
		return
	}

	result, err := g.conversation.AppendTurn(r.Context(), req)
	if err != nil && !errors.Is(err, conversation.ErrConflict) {
		g.writeServiceError(w, r, err)
		return
	}

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	enc := sse.NewEncoder(w)

	if err != nil {
		_, code, message := classifyError(err)
		if werr := enc.EncodeJSON(sse.EventError, errorBody(r, code, message)); werr != nil {
			g.logger.Warn("failed to write error event", "conversation_id", id, "error", werr)
		}
		return
	}

	if result.AssistantMessage != nil && result.AssistantMessage.Text != "" {
		payload := StreamPayload{
			ConversationID: id,
			Messages:       []MessageResponse{toMessageResponse(result.AssistantMessage)},
		}
		if err := enc.EncodeJSON("", payload); err != nil {
			g.logger.Warn("client went away during stream", "conversation_id", id, "error", err)
			return
		}
	}

	if err := enc.EncodeJSON(sse.EventEnd, StreamPayload{ConversationID: id, Messages: []MessageResponse{}}); err != nil {
		g.logger.Warn("failed to write end event", "conversation_id", id, "error", err)
	}
}

// handleWatch handles GET /conversations/{id}/watch, streaming every turn
// committed to the conversation until the client disconnects.
func (g *Gateway) handleWatch(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	if _, err := g.conversation.Get(r.Context(), id, false); err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.writeError(w, r, http.StatusInternalServerError, CodeUnexpected, "streaming not supported")
		return
	}

	turns, _ := g.broadcaster.Subscribe(r.Context(), id)

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	// Release headers now; the first turn may be a long way off.
	flusher.Flush()
	enc := sse.NewEncoder(w)

	g.logger.Debug("watch started", "conversation_id", id)
	for turn := range turns {
		payload := StreamPayload{
			ConversationID: id,
			Messages: []MessageResponse{
				toMessageResponse(turn.UserMessage),
				toMessageResponse(turn.AssistantMessage),
			},
		}
		if err := enc.EncodeJSON("", payload); err != nil {
			g.logger.Debug("watch ended", "conversation_id", id, "error", err)
			return
		}
	}

	// Channel closed: the client left or the gateway is shutting down.
	if r.Context().Err() == nil {
		_ = enc.EncodeJSON(sse.EventEnd, StreamPayload{ConversationID: id, Messages: []MessageResponse{}})
	}
	g.logger.Debug("watch ended", "conversation_id", id)
}
