// ABOUTME: Tests for the gateway HTTP client
// ABOUTME: Runs the client against a real gateway handler and against scripted servers

package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/irma/internal/buildinfo"
	"github.com/2389/irma/internal/config"
	"github.com/2389/irma/internal/conversation"
	"github.com/2389/irma/internal/gateway"
	"github.com/2389/irma/internal/sse"
	"github.com/2389/irma/internal/store"
)

type replyResponder struct{ reply string }

func (r *replyResponder) Respond(ctx context.Context, req *conversation.ResponderRequest) (string, error) {
	return r.reply, nil
}

// newGatewayServer starts a gateway over an in-memory store.
func newGatewayServer(t *testing.T, cfgMod func(*config.Config)) (*httptest.Server, *store.MockStore) {
	t.Helper()

	cfg := &config.Config{
		Server:    config.ServerConfig{Environment: "Test", ShutdownTimeout: time.Second},
		Responder: config.ResponderConfig{HistoryWindow: 20},
	}
	if cfgMod != nil {
		cfgMod(cfg)
	}

	st := store.NewMockStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := gateway.New(cfg, buildinfo.New("9.9.9", "deadbeef", "2025-06-01"), logger,
		gateway.WithStore(st),
		gateway.WithResponder(&replyResponder{reply: "Hi there"}),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func TestClient_ConversationLifecycle(t *testing.T) {
	srv, st := newGatewayServer(t, nil)
	c := New(srv.URL + "/")
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, &CreateRequest{Product: "Widget/2.0"})
	require.NoError(t, err)
	assert.Equal(t, "Active", conv.State)
	assert.Equal(t, "Widget/2.0", conv.Product)
	assert.NotEmpty(t, conv.Raw)

	got, err := c.Chat(ctx, conv.ConversationID, &ChatRequest{Message: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TurnCount)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "Hello", got.Messages[0].Text)
	assert.Equal(t, "Hi there", got.Messages[1].Text)

	require.NoError(t, st.SetConversationState(ctx, conv.ConversationID, store.StateClosed))

	_, err = c.Chat(ctx, conv.ConversationID, &ChatRequest{Message: "Again"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, CodeConflict, apiErr.Code)
	assert.NotEmpty(t, apiErr.TraceID)

	fetched, err := c.GetConversation(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.TurnCount)
	assert.Equal(t, "Closed", fetched.State)
}

func TestClient_NotFound(t *testing.T) {
	srv, _ := newGatewayServer(t, nil)
	c := New(srv.URL)

	_, err := c.GetConversation(context.Background(), "5a0e1c1a-0000-4000-8000-000000000000")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, CodeNotFound, apiErr.Code)
	assert.Contains(t, apiErr.Error(), "not found")
}

func TestClient_ChatStream(t *testing.T) {
	srv, _ := newGatewayServer(t, nil)
	c := New(srv.URL)
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, nil)
	require.NoError(t, err)

	stream, err := c.ChatStream(ctx, conv.ConversationID, &ChatRequest{Message: "Hello"})
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Empty(t, ev.Name)
	payload, err := DecodePayload(ev)
	require.NoError(t, err)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "Hi there", payload.Messages[0].Text)

	ev, err = stream.Next()
	require.NoError(t, err)
	assert.Equal(t, sse.EventEnd, ev.Name)

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestClient_ChatStreamConflict(t *testing.T) {
	srv, st := newGatewayServer(t, nil)
	c := New(srv.URL)
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, st.SetConversationState(ctx, conv.ConversationID, store.StateExpired))

	stream, err := c.ChatStream(ctx, conv.ConversationID, &ChatRequest{Message: "Hello"})
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Next()
	assert.Equal(t, sse.EventError, ev.Name)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestClient_ChatStreamNotFoundBeforeStreaming(t *testing.T) {
	srv, _ := newGatewayServer(t, nil)
	c := New(srv.URL)

	_, err := c.ChatStream(context.Background(), "5a0e1c1a-0000-4000-8000-000000000000", &ChatRequest{Message: "Hello"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClient_StreamInterrupted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", sse.ContentType)
		io.WriteString(w, "data: {\"conversationId\":\"x\",\"messages\":[]}\n\ndata: partial")
	}))
	defer srv.Close()

	stream, err := New(srv.URL).ChatStream(context.Background(), "x", &ChatRequest{Message: "hi"})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next()
	require.NoError(t, err)

	_, err = stream.Next()
	assert.ErrorIs(t, err, ErrStreamInterrupted)
}

func TestClient_BearerToken(t *testing.T) {
	const secret = "client-test-secret-0123456789abcd"
	srv, _ := newGatewayServer(t, func(cfg *config.Config) {
		cfg.Auth.JWTSecret = secret
	})
	ctx := context.Background()

	_, err := New(srv.URL).CreateConversation(ctx, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	token := signToken(t, secret)
	_, err = New(srv.URL, WithToken(token)).CreateConversation(ctx, nil)
	require.NoError(t, err)
}

func TestClient_HealthAndVersion(t *testing.T) {
	srv, st := newGatewayServer(t, nil)
	c := New(srv.URL)
	ctx := context.Background()

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.True(t, h.Healthy())
	assert.Equal(t, "Healthy", h.Status)

	st.PingErr = errors.New("disk gone")
	h, err = c.Health(ctx)
	require.NoError(t, err)
	assert.False(t, h.Healthy())
	assert.Equal(t, http.StatusServiceUnavailable, h.StatusCode)
	assert.Equal(t, "Unhealthy", h.Status)

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", v.Version)
	assert.Equal(t, "deadbeef", v.Commit)
	assert.Equal(t, "Test", v.Environment)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Version(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Empty(t, apiErr.Code)
	assert.Contains(t, apiErr.Message, "bad gateway")
}

func TestStatusForCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForCode(CodeValidation))
	assert.Equal(t, http.StatusUnauthorized, statusForCode(CodeUnauthorized))
	assert.Equal(t, http.StatusForbidden, statusForCode(CodeForbidden))
	assert.Equal(t, http.StatusNotFound, statusForCode(CodeNotFound))
	assert.Equal(t, http.StatusConflict, statusForCode(CodeConflict))
	assert.Equal(t, http.StatusInternalServerError, statusForCode("Mystery"))
}
