// ABOUTME: Gateway orchestrator that wires store, conversation service and HTTP server
// ABOUTME: Manages the listener, routing table and graceful shutdown lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/2389/irma/internal/auth"
	"github.com/2389/irma/internal/buildinfo"
	"github.com/2389/irma/internal/config"
	"github.com/2389/irma/internal/conversation"
	"github.com/2389/irma/internal/store"
)

// Gateway serves the conversation API over HTTP.
type Gateway struct {
	config       *config.Config
	build        buildinfo.Info
	store        store.Store
	responder    conversation.Responder
	conversation *conversation.Service
	broadcaster  *conversation.TurnBroadcaster
	verifier     auth.TokenVerifier
	httpServer   *http.Server
	logger       *slog.Logger
}

// Option customises a Gateway during construction.
type Option func(*Gateway)

// WithStore uses s instead of opening the configured SQLite database.
func WithStore(s store.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithResponder replaces the placeholder echo responder.
func WithResponder(r conversation.Responder) Option {
	return func(g *Gateway) { g.responder = r }
}

// initStore opens the SQLite store at the configured path.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	return s, nil
}

// New creates a Gateway from configuration.
func New(cfg *config.Config, build buildinfo.Info, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		config: cfg,
		build:  build,
		logger: logger.With("component", "gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.store == nil {
		s, err := initStore(cfg)
		if err != nil {
			return nil, err
		}
		g.store = s
	}

	if cfg.Auth.Enabled() {
		verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			g.store.Close()
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		g.verifier = verifier
	}

	if g.responder == nil {
		g.responder = conversation.NewEchoResponder(cfg.Responder.Delay, logger)
	}

	g.broadcaster = conversation.NewTurnBroadcaster(logger)
	g.conversation = conversation.New(g.store, g.responder, logger,
		conversation.WithHistoryWindow(cfg.Responder.HistoryWindow),
		conversation.WithBroadcaster(g.broadcaster),
	)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	g.logger.Info("gateway initialized",
		"http_addr", cfg.Server.HTTPAddr,
		"environment", cfg.Server.Environment,
		"auth", cfg.Auth.Enabled(),
	)

	return g, nil
}

// Conversations exposes the conversation service, used by admin commands.
func (g *Gateway) Conversations() *conversation.Service {
	return g.conversation
}

// Run listens on the configured address and serves until ctx is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.config.Server.ShutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends a labelled error when err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, closes watchers and releases the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	// Watch streams only end when their subscription channel closes.
	g.broadcaster.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
