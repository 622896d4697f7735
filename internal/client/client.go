// ABOUTME: HTTP client for the irma gateway conversation API
// ABOUTME: Sends JSON requests with an optional bearer token and decodes typed responses

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes bounds non-streamed response bodies.
const maxResponseBytes = 8 * 1024 * 1024

// Client talks to one gateway.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With("component", "client") }
}

// New creates a client for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default().With("component", "client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the gateway address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateConversation starts a new conversation.
func (c *Client) CreateConversation(ctx context.Context, req *CreateRequest) (*Conversation, error) {
	if req == nil {
		req = &CreateRequest{}
	}
	var conv Conversation
	raw, err := c.doJSON(ctx, http.MethodPost, "/conversations", req, &conv, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	conv.Raw = raw
	return &conv, nil
}

// GetConversation fetches a conversation with its messages.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	raw, err := c.doJSON(ctx, http.MethodGet, conversationPath(id, ""), nil, &conv, http.StatusOK)
	if err != nil {
		return nil, err
	}
	conv.Raw = raw
	return &conv, nil
}

// Chat appends a turn and returns the updated conversation.
func (c *Client) Chat(ctx context.Context, id string, req *ChatRequest) (*Conversation, error) {
	var conv Conversation
	raw, err := c.doJSON(ctx, http.MethodPost, conversationPath(id, "/chat"), req, &conv, http.StatusOK)
	if err != nil {
		return nil, err
	}
	conv.Raw = raw
	return &conv, nil
}

// ChatStream appends a turn and returns the event stream carrying the reply.
// Failures reported before the stream starts are returned as *APIError.
func (c *Client) ChatStream(ctx context.Context, id string, req *ChatRequest) (*Stream, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, conversationPath(id, "/chat-stream"), req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.errorFromResponse(resp)
	}
	return newStream(resp.Body), nil
}

// Health reads the gateway's health. A 503 is not an error: the returned
// Health carries the status code and the unhealthy dependencies.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, c.errorFromResponse(resp)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading health response: %w", err)
	}
	var h Health
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("decoding health response: %w", err)
	}
	h.StatusCode = resp.StatusCode
	h.Raw = raw
	return &h, nil
}

// Version reads the gateway's build metadata.
func (c *Client) Version(ctx context.Context) (*Version, error) {
	var v Version
	raw, err := c.doJSON(ctx, http.MethodGet, "/version", nil, &v, http.StatusOK)
	if err != nil {
		return nil, err
	}
	v.Raw = raw
	return &v, nil
}

func conversationPath(id, suffix string) string {
	return "/conversations/" + url.PathEscape(id) + suffix
}

// newRequest builds a request with the JSON body (if any) and credentials.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	c.logger.Debug("request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"trace_id", resp.Header.Get("X-Trace-Id"),
	)
	return resp, nil
}

// doJSON sends a request and decodes a JSON response with status want into out,
// returning the raw body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, want int) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return nil, c.errorFromResponse(resp)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return raw, nil
}

// errorFromResponse extracts an APIError from a failed response.
func (c *Client) errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	return newAPIError(resp.StatusCode, body)
}
