// ABOUTME: Entry point for irma-gateway, the conversation API server
// ABOUTME: Dispatches serve, init, health, token, close and version subcommands

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/irma/internal/auth"
	"github.com/2389/irma/internal/buildinfo"
	"github.com/2389/irma/internal/client"
	"github.com/2389/irma/internal/config"
	"github.com/2389/irma/internal/conversation"
	"github.com/2389/irma/internal/gateway"
	"github.com/2389/irma/internal/store"
)

// Set by goreleaser at build time.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

const banner = `
  _
 (_)_ __ _ __ ___   __ _        __ _  __ _| |_ _____      ____ _ _   _
 | | '__| '_ ' _ \ / _' |_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 | | |  | | | | | | (_| |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |_|_|  |_| |_| |_|\__,_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                               |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: IRMA_CONFIG env var > XDG_CONFIG_HOME/irma/gateway.yaml > ~/.config/irma/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("IRMA_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "irma", "gateway.yaml")
}

// loadConfig reads the config file, falling back to defaults when it does not exist.
func loadConfig(path string) (*config.Config, bool, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if dbPath := os.Getenv("IRMA_DB_PATH"); dbPath != "" {
			cfg.Database.Path = dbPath
		}
		return cfg, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, true, nil
}

func usage() {
	fmt.Println("Usage: irma-gateway <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                           Start the gateway server")
	fmt.Println("  init                            Create a new config file interactively")
	fmt.Println("  health                          Check gateway health")
	fmt.Println("  token --subject NAME            Issue a bearer token signed with the configured secret")
	fmt.Println("  close ID [--state STATE]        Move a conversation out of Active")
	fmt.Println("  version                         Print version information")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	build := buildinfo.New(version, commit, date)
	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, build)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "token":
		err = runToken(args)
	case "close":
		err = runClose(ctx, args)
	case "version":
		fmt.Println(build.String())
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, build buildinfo.Info) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", build.String())

	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if fromFile {
		fmt.Printf("Config:    %s\n", configPath)
	} else {
		fmt.Printf("Config:    ")
		yellow.Println("built-in defaults")
	}
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Auth:      ")
	if cfg.Auth.Enabled() {
		cyan.Println("bearer (HS256)")
	} else {
		yellow.Println("disabled")
	}
	fmt.Println()

	logger.Info("starting irma-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"environment", cfg.Server.Environment,
	)

	gw, err := gateway.New(cfg, build, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	h, err := client.New("http://" + cfg.Server.HTTPAddr).Health(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	for _, d := range h.Dependencies {
		fmt.Printf("  %-14s %s\n", d.Name, d.Status)
	}
	if !h.Healthy() {
		return fmt.Errorf("unhealthy: %s", h.Status)
	}
	fmt.Println(strings.ToLower(h.Status))
	return nil
}

// runToken issues a bearer token for the irma client's login --token.
func runToken(args []string) error {
	flags := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := flags.String("subject", "", "Token subject (required)")
	scope := flags.String("scope", "", "Space-separated scopes (default: the configured required_scope)")
	ttl := flags.Duration("ttl", 30*24*time.Hour, "Token lifetime")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*subject) == "" {
		return fmt.Errorf("--subject is required")
	}
	if *ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}
	if !cfg.Auth.Enabled() {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	scopes := strings.Fields(*scope)
	if len(scopes) == 0 && cfg.Auth.RequiredScope != "" {
		scopes = []string{cfg.Auth.RequiredScope}
	}

	token, err := verifier.Generate(*subject, scopes, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	color.New(color.FgHiBlack).Fprintf(os.Stderr, "expires %s; use: irma login --token <token>\n",
		time.Now().Add(*ttl).UTC().Format(time.RFC3339))
	return nil
}

// runClose moves a conversation to a non-Active state directly in the store.
func runClose(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("close", flag.ContinueOnError)
	state := flags.String("state", string(store.StateClosed), "Target state")

	// Allow the id before or after the flags.
	var id string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id, args = args[0], args[1:]
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if id == "" && flags.NArg() > 0 {
		id = flags.Arg(0)
	}
	if id == "" {
		return fmt.Errorf("conversation id is required")
	}
	if store.State(*state).AcceptsTurns() {
		return fmt.Errorf("target state must not be %s", store.StateActive)
	}

	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	svc := conversation.New(s, conversation.NewEchoResponder(0, logger), logger)
	if err := svc.SetState(ctx, id, store.State(*state)); err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("  ✓ Conversation %s is now %s\n", id, *state)
	return nil
}
