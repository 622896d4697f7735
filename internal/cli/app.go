// ABOUTME: Client session controller wrapping every command in load, execute and commit
// ABOUTME: Maps command outcomes to exit codes and reports failures once on stderr

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/irma/internal/buildinfo"
	"github.com/2389/irma/internal/client"
)

// App is the client binary's configuration and I/O.
type App struct {
	Build  buildinfo.Info
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Getenv reads environment variables; os.Getenv when nil.
	Getenv func(string) string
	// Now is the clock used for credential expiry; time.Now when nil.
	Now func() time.Time
	// HTTPClient is used for gateway calls; a default client when nil.
	HTTPClient *http.Client
	// TTY enables coloured output and markdown rendering.
	TTY bool
	// Width is the terminal width used when rendering markdown.
	Width int
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	baseURL string
	json    bool
	product string
	debug   bool
}

// invocation is the state of one Run.
type invocation struct {
	app    *App
	paths  Paths
	flags  globalFlags
	state  *State
	render *Renderer
	logger *slog.Logger

	// started is set once argument parsing succeeded and a command began.
	started bool
}

// Run executes args and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if a.Getenv == nil {
		a.Getenv = os.Getenv
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.Stdin == nil {
		a.Stdin = os.Stdin
	}
	if a.Stdout == nil {
		a.Stdout = os.Stdout
	}
	if a.Stderr == nil {
		a.Stderr = os.Stderr
	}

	inv := &invocation{
		app:    a,
		render: NewRenderer(a.Stdout, a.Stderr, a.TTY, a.Width),
	}

	root := inv.rootCommand()
	root.SetArgs(args)
	root.SetIn(a.Stdin)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	err := root.ExecuteContext(ctx)
	return inv.report(ctx, err)
}

// report prints the outcome of a failed command and returns its exit code.
func (inv *invocation) report(ctx context.Context, err error) int {
	if err == nil {
		return ExitOK
	}

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		inv.render.Errorf("Operation cancelled.\n")
		return ExitFailure
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.message != "" {
			inv.render.Errorf("%s\n", ee.message)
		}
		return ee.code
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		inv.render.Errorf("Request failed with status %d (%s).\n", apiErr.StatusCode, http.StatusText(apiErr.StatusCode))
		if body := strings.TrimSpace(string(apiErr.RawBody)); body != "" {
			inv.render.Errorf("%s\n", body)
		}
		return ExitCode(err)
	}

	if errors.Is(err, client.ErrStreamInterrupted) {
		inv.render.Errorf("Stream interrupted: %v\n", err)
		return ExitFailure
	}

	if !inv.started {
		inv.render.Errorf("Error: %v\nRun 'irma --help' for usage.\n", err)
		return ExitFailure
	}

	inv.render.Errorf("Unexpected error: %v\n", err)
	return ExitFailure
}

// setup runs before every command: it configures logging and loads state.
func (inv *invocation) setup(cmd *cobra.Command) error {
	inv.started = true

	level := slog.LevelWarn
	if inv.flags.debug {
		level = slog.LevelDebug
	}
	inv.logger = slog.New(slog.NewTextHandler(inv.app.Stderr, &slog.HandlerOptions{Level: level}))

	paths, err := ResolvePaths(inv.app.Getenv)
	if err != nil {
		return err
	}
	inv.paths = paths

	state, err := LoadState(paths)
	if err != nil {
		return fmt.Errorf("loading local state: %w", err)
	}
	inv.state = state
	inv.logger.Debug("state loaded", "dir", paths.Dir, "command", cmd.CommandPath())
	return nil
}

// action wraps a command body with the commit discipline: dirty state is
// written only when the body succeeds.
func (inv *invocation) action(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := fn(ctx, args); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := inv.state.Commit(inv.paths); err != nil {
			return fmt.Errorf("saving local state: %w", err)
		}
		return nil
	}
}

// client builds a gateway client for the resolved endpoint, attaching the
// cached credential only while it is unexpired.
func (inv *invocation) client() *client.Client {
	baseURL := ResolveBaseURL(inv.flags.baseURL, inv.app.Getenv, inv.state)

	opts := []client.Option{client.WithLogger(inv.logger)}
	if inv.app.HTTPClient != nil {
		opts = append(opts, client.WithHTTPClient(inv.app.HTTPClient))
	}
	if cred := inv.state.Credential; cred != nil {
		if cred.Expired(inv.app.Now()) {
			inv.logger.Debug("cached credential expired, sending request without it", "expires_at", cred.ExpiresAt)
		} else {
			opts = append(opts, client.WithToken(cred.AccessToken))
		}
	}

	inv.logger.Debug("resolved endpoint", "base_url", baseURL)
	return client.New(baseURL, opts...)
}

func (inv *invocation) product() string {
	return ResolveProduct(inv.flags.product, inv.state)
}
