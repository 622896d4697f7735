// ABOUTME: Cobra command tree of the irma client
// ABOUTME: Account, defaults, health, version and conversation commands

package cli

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/irma/internal/auth"
	"github.com/2389/irma/internal/client"
	"github.com/2389/irma/internal/sse"
)

// stubTokenLifetime is the validity of a locally minted login token.
const stubTokenLifetime = time.Hour

func (inv *invocation) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "irma",
		Short:         "Irma command-line client",
		Version:       inv.app.Build.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return inv.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&inv.flags.baseURL, "base-url", "", "Base URL of the Irma gateway (e.g. "+DefaultBaseURL+")")
	pf.BoolVar(&inv.flags.json, "json", false, "Output raw JSON responses")
	pf.StringVar(&inv.flags.product, "product", "", "Product identifier for this command (Name/Version)")
	pf.BoolVar(&inv.flags.debug, "debug", false, "Log diagnostics to stderr")

	root.AddCommand(
		inv.loginCommand(),
		inv.logoutCommand(),
		inv.defaultsCommand(),
		inv.healthCommand(),
		inv.versionCommand(),
		inv.newConversationCommand(),
		inv.showCommand(),
		inv.askCommand(),
		inv.chatCommand(),
	)
	return root
}

func (inv *invocation) loginCommand() *cobra.Command {
	var token string
	var deviceCode, clientCredentials bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and cache a token locally",
		Args:  cobra.NoArgs,
		RunE: inv.action(func(ctx context.Context, args []string) error {
			now := inv.app.Now()
			cred := &Credential{Scheme: "Bearer", ExpiresAt: now.Add(stubTokenLifetime)}

			if token != "" {
				cred.AccessToken = token
				if exp, ok := auth.UnverifiedExpiry(token); ok {
					cred.ExpiresAt = exp
				}
				if cred.Expired(now) {
					return failf("The supplied token is already expired.")
				}
			} else {
				flow := "device code"
				if clientCredentials {
					flow = "client credentials"
				}
				inv.render.Printf("Starting stubbed %s login flow...\n", flow)

				var raw [16]byte
				if _, err := rand.Read(raw[:]); err != nil {
					return fmt.Errorf("generating token: %w", err)
				}
				cred.AccessToken = base64.StdEncoding.EncodeToString(raw[:])
			}

			inv.state.SetCredential(cred)
			inv.render.Printf("Authentication complete. Token cached locally (expires %s).\n", cred.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		}),
	}
	cmd.Flags().StringVar(&token, "token", "", "Use this bearer token instead of a login flow")
	cmd.Flags().BoolVar(&deviceCode, "device-code", true, "Use the device code flow")
	cmd.Flags().BoolVar(&clientCredentials, "client-credentials", false, "Use the client credentials flow")
	cmd.MarkFlagsMutuallyExclusive("device-code", "client-credentials")
	cmd.MarkFlagsMutuallyExclusive("token", "client-credentials")
	return cmd
}

func (inv *invocation) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the cached token",
		Args:  cobra.NoArgs,
		RunE: inv.action(func(ctx context.Context, args []string) error {
			if inv.state.Credential == nil {
				inv.render.Printf("You are already logged out.\n")
				return nil
			}
			inv.state.ClearCredential()
			inv.render.Printf("Cached tokens removed.\n")
			return nil
		}),
	}
}

func (inv *invocation) defaultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Manage local default settings",
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a default setting (e.g. product, base-url)",
		Args:  cobra.ExactArgs(2),
		RunE: inv.action(func(ctx context.Context, args []string) error {
			key, value := args[0], args[1]
			if normalizeKey(key) == keyBaseURL {
				if _, ok := parseAbsoluteURL(value); !ok {
					return failf("Invalid base-url. Provide an absolute URL (e.g. " + DefaultBaseURL + ").")
				}
			}
			inv.state.SetDefault(key, value)
			inv.render.Printf("Stored default '%s'.\n", normalizeKey(key))
			return nil
		}),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored defaults",
		Args:  cobra.NoArgs,
		RunE: inv.action(func(ctx context.Context, args []string) error {
			if inv.flags.json {
				return inv.printJSON(inv.state.Defaults)
			}
			keys := inv.state.DefaultKeys()
			if len(keys) == 0 {
				inv.render.Printf("No defaults stored.\n")
				return nil
			}
			for _, k := range keys {
				inv.render.Printf("%s: %s\n", k, inv.state.Defaults[k])
			}
			return nil
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear <key>",
		Short: "Remove a stored default",
		Args:  cobra.ExactArgs(1),
		RunE: inv.action(func(ctx context.Context, args []string) error {
			if !inv.state.ClearDefault(args[0]) {
				return failf(fmt.Sprintf("Default '%s' was not set.", normalizeKey(args[0])))
			}
			inv.render.Printf("Removed default '%s'.\n", normalizeKey(args[0]))
			return nil
		}),
	}

	cmd.AddCommand(set, list, clearCmd)
	return cmd
}

func (inv *invocation) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check gateway health",
		Args:  cobra.NoArgs,
		RunE: inv.action(func(ctx context.Context, args []string) error {
			h, err := inv.client().Health(ctx)
			if err != nil {
				return err
			}

			if inv.flags.json {
				inv.render.Printf("%s\n", h.Raw)
			} else {
				inv.render.Printf("Status: %s\n", h.Status)
				inv.render.Printf("Uptime: %s\n", time.Duration(h.UptimeSeconds)*time.Second)
				for _, d := range h.Dependencies {
					line := fmt.Sprintf(" - %s: %s", d.Name, d.Status)
					if d.Description != "" {
						line += fmt.Sprintf(" (%s)", d.Description)
					}
					inv.render.Printf("%s\n", line)
				}
				inv.render.Infof("TraceId: %s\n", h.TraceID)
			}

			if !h.Healthy() {
				return &exitError{code: ExitFailure}
			}
			return nil
		}),
	}
}

func (inv *invocation) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client and gateway versions",
		Args:  cobra.NoArgs,
		RunE: inv.action(func(ctx context.Context, args []string) error {
			v, err := inv.client().Version(ctx)
			if err != nil {
				return err
			}
			if inv.flags.json {
				inv.render.Printf("%s\n", v.Raw)
				return nil
			}
			inv.render.Printf("Client:  %s\n", inv.app.Build.String())
			inv.render.Printf("Gateway: %s (commit %s, built %s, %s, %s)\n", v.Version, v.Commit, v.BuildDate, v.Runtime, v.Environment)
			return nil
		}),
	}
}

func (inv *invocation) newConversationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new-conversation",
		Short: "Start a conversation and make it current",
		Args:  cobra.NoArgs,
		RunE: inv.action(func(ctx context.Context, args []string) error {
			conv, err := inv.client().CreateConversation(ctx, &client.CreateRequest{Product: inv.product()})
			if err != nil {
				return err
			}
			inv.state.SetCurrentConversation(conv.ConversationID)

			if inv.flags.json {
				inv.render.Printf("%s\n", conv.Raw)
				return nil
			}
			inv.render.Printf("Conversation created: %s\n", conv.ConversationID)
			return nil
		}),
	}
}

func (inv *invocation) showCommand() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a conversation transcript",
		Args:  cobra.NoArgs,
		RunE: inv.action(func(ctx context.Context, args []string) error {
			id, err := inv.conversationID(conversationID)
			if err != nil {
				return err
			}
			conv, err := inv.client().GetConversation(ctx, id)
			if err != nil {
				return err
			}

			if inv.flags.json {
				inv.render.Printf("%s\n", conv.Raw)
				return nil
			}
			title := conv.DisplayName
			if title == "" {
				title = "(untitled)"
			}
			inv.render.Printf("%s\n", title)
			inv.render.Infof("%s · %s · %d turns\n", conv.ConversationID, conv.State, conv.TurnCount)
			inv.render.Transcript(conv.Messages)
			return nil
		}),
	}
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "Conversation to show (default: current)")
	return cmd
}

func (inv *invocation) askCommand() *cobra.Command {
	var conversationID, contextFile string
	var noStream bool

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send a single message",
		Args:  cobra.ExactArgs(1),
		RunE: inv.action(func(ctx context.Context, args []string) error {
			id, err := inv.conversationID(conversationID)
			if err != nil {
				return err
			}
			product := inv.product()
			if product == "" {
				return failf("Product is required. Use --product or 'irma defaults set product <value>'.")
			}

			req := &client.ChatRequest{
				Message:           args[0],
				Product:           product,
				AdditionalContext: inv.loadContextFile(contextFile),
			}

			c := inv.client()
			if noStream {
				conv, err := c.Chat(ctx, id, req)
				if err != nil {
					return err
				}
				if inv.flags.json {
					inv.render.Printf("%s\n", conv.Raw)
				} else {
					inv.render.Transcript(conv.Messages)
				}
			} else if err := inv.streamTurn(ctx, c, id, req); err != nil {
				return err
			}

			inv.state.SetCurrentConversation(id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "Target conversation (default: current)")
	cmd.Flags().StringVar(&contextFile, "context", "", "JSON file with additional context items")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Use the non-streaming chat endpoint")
	return cmd
}

func (inv *invocation) chatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE:  inv.action(inv.runChat),
	}
}

// conversationID returns the explicit id or the current one from the session.
func (inv *invocation) conversationID(explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	if id := inv.state.Session.CurrentConversationID; id != "" {
		return id, nil
	}
	return "", failf("No conversation selected. Run 'irma new-conversation' first or provide --conversation-id.")
}

// loadContextFile reads a JSON array of context items. Problems are reported
// and yield no context.
func (inv *invocation) loadContextFile(path string) []client.ContextItem {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		inv.render.Errorf("Context file '%s' not found.\n", path)
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		inv.render.Errorf("Context file must contain a JSON array of objects with 'text' properties.\n")
		return nil
	}

	items := make([]client.ContextItem, 0, len(raw))
	for _, r := range raw {
		var item struct {
			Text        *string `json:"text"`
			Description *string `json:"description"`
		}
		if json.Unmarshal(r, &item) != nil || item.Text == nil {
			continue
		}
		ci := client.ContextItem{Text: *item.Text}
		if item.Description != nil {
			ci.Description = *item.Description
		}
		items = append(items, ci)
	}
	return items
}

// streamTurn sends a streamed turn and renders it. With --json the raw event
// payloads are printed as one JSON array, including when the stream fails.
func (inv *invocation) streamTurn(ctx context.Context, c *client.Client, id string, req *client.ChatRequest) error {
	stream, err := c.ChatStream(ctx, id, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	var raw []string
	defer func() {
		if inv.flags.json && len(raw) > 0 {
			inv.render.Printf("[%s]\n", strings.Join(raw, ","))
		}
	}()

	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ev.Name == sse.EventError && inv.flags.json {
				raw = append(raw, ev.Data)
			}
			return err
		}

		if inv.flags.json {
			raw = append(raw, ev.Data)
			continue
		}

		if ev.Name == sse.EventEnd {
			inv.render.EndOfReply()
			continue
		}
		payload, err := client.DecodePayload(ev)
		if err != nil {
			inv.render.Printf("%s\n", ev.Data)
			continue
		}
		for _, m := range payload.Messages {
			inv.render.Reply(m.Text)
		}
	}
}

func (inv *invocation) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	inv.render.Printf("%s\n", data)
	return nil
}
