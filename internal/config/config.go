// ABOUTME: Configuration loading and parsing for irma-gateway
// ABOUTME: Supports YAML files with environment variable expansion, defaults and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/irma/internal/auth"
)

// Defaults applied to unset optional fields
const (
	DefaultHTTPAddr          = "localhost:5001"
	DefaultEnvironment       = "Production"
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultHistoryWindow     = 20
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Config represents the complete irma-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Responder ResponderConfig `yaml:"responder"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	Environment string `yaml:"environment"`

	ShutdownTimeout   time.Duration `yaml:"-"`
	ReadHeaderTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ShutdownTimeoutRaw   string `yaml:"shutdown_timeout,omitempty"`
	ReadHeaderTimeoutRaw string `yaml:"read_header_timeout,omitempty"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration. An empty JWTSecret disables auth.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	RequiredScope string `yaml:"required_scope,omitempty"`
}

// Enabled reports whether bearer authentication is required.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// ResponderConfig tunes the placeholder turn responder
type ResponderConfig struct {
	HistoryWindow int           `yaml:"history_window,omitempty"`
	Delay         time.Duration `yaml:"-"`
	DelayRaw      string        `yaml:"delay,omitempty"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every optional field at its default
// and the database under the user's data directory.
func Default() *Config {
	cfg := &Config{
		Database: DatabaseConfig{Path: DefaultDatabasePath()},
	}
	cfg.applyDefaults()
	cfg.Server.ShutdownTimeoutRaw = cfg.Server.ShutdownTimeout.String()
	cfg.Server.ReadHeaderTimeoutRaw = cfg.Server.ReadHeaderTimeout.String()
	return cfg
}

// DefaultDatabasePath returns $XDG_DATA_HOME/irma/irma.db, falling back to ~/.local/share.
func DefaultDatabasePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "irma", "irma.db")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// IRMA_DB_PATH, when set, overrides database.path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if dbPath := os.Getenv("IRMA_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.Environment == "" {
		c.Server.Environment = DefaultEnvironment
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.Responder.HistoryWindow == 0 {
		c.Responder.HistoryWindow = DefaultHistoryWindow
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", auth.MinSecretLength)
	}
	if c.Auth.RequiredScope != "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.required_scope needs auth.jwt_secret")
	}

	if c.Responder.HistoryWindow < 0 {
		return fmt.Errorf("responder.history_window must not be negative")
	}
	if c.Responder.Delay < 0 {
		return fmt.Errorf("responder.delay must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"server.read_header_timeout", cfg.Server.ReadHeaderTimeoutRaw, &cfg.Server.ReadHeaderTimeout},
		{"responder.delay", cfg.Responder.DelayRaw, &cfg.Responder.Delay},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
