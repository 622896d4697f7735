// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, overrides and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"
  environment: "Development"
  shutdown_timeout: "5s"
  read_header_timeout: "2s"

database:
  path: "./test.db"

auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  required_scope: "conversations"

responder:
  history_window: 8
  delay: "250ms"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Server.Environment != "Development" {
		t.Errorf("Server.Environment = %q, want %q", cfg.Server.Environment, "Development")
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.ReadHeaderTimeout != 2*time.Second {
		t.Errorf("Server.ReadHeaderTimeout = %v, want 2s", cfg.Server.ReadHeaderTimeout)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if !cfg.Auth.Enabled() {
		t.Error("Auth.Enabled() = false, want true")
	}
	if cfg.Auth.RequiredScope != "conversations" {
		t.Errorf("Auth.RequiredScope = %q, want %q", cfg.Auth.RequiredScope, "conversations")
	}
	if cfg.Responder.HistoryWindow != 8 {
		t.Errorf("Responder.HistoryWindow = %d, want 8", cfg.Responder.HistoryWindow)
	}
	if cfg.Responder.Delay != 250*time.Millisecond {
		t.Errorf("Responder.Delay = %v, want 250ms", cfg.Responder.Delay)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  path: ./irma.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Server.Environment != DefaultEnvironment {
		t.Errorf("Server.Environment = %q, want %q", cfg.Server.Environment, DefaultEnvironment)
	}
	if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if cfg.Responder.HistoryWindow != DefaultHistoryWindow {
		t.Errorf("Responder.HistoryWindow = %d, want %d", cfg.Responder.HistoryWindow, DefaultHistoryWindow)
	}
	if cfg.Auth.Enabled() {
		t.Error("Auth.Enabled() = true, want false")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_IRMA_SECRET", "env-secret-env-secret-env-secret!")
	t.Setenv("TEST_IRMA_ADDR", "127.0.0.1:9999")

	cfg, err := Load(writeConfig(t, `
server:
  http_addr: "${TEST_IRMA_ADDR}"
database:
  path: "./x.db"
auth:
  jwt_secret: "${TEST_IRMA_SECRET}"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9999" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9999")
	}
	if cfg.Auth.JWTSecret != "env-secret-env-secret-env-secret!" {
		t.Errorf("Auth.JWTSecret = %q, want expanded value", cfg.Auth.JWTSecret)
	}
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  path: "./x.db"
auth:
  jwt_secret: "${TEST_IRMA_DEFINITELY_UNSET}"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.Enabled() {
		t.Error("expected auth to be disabled when the secret expands to empty")
	}
}

func TestLoad_DBPathOverride(t *testing.T) {
	t.Setenv("IRMA_DB_PATH", "/tmp/override.db")

	cfg, err := Load(writeConfig(t, "database:\n  path: ./file.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/override.db")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v, want reading config file", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad yaml",
			content: "server: [unclosed",
			wantErr: "parsing config file",
		},
		{
			name:    "bad duration",
			content: "database:\n  path: x.db\nserver:\n  shutdown_timeout: soon\n",
			wantErr: "server.shutdown_timeout",
		},
		{
			name:    "missing database path",
			content: "server:\n  http_addr: :1\n",
			wantErr: "database.path is required",
		},
		{
			name:    "short secret",
			content: "database:\n  path: x.db\nauth:\n  jwt_secret: short\n",
			wantErr: "auth.jwt_secret must be at least",
		},
		{
			name:    "scope without secret",
			content: "database:\n  path: x.db\nauth:\n  required_scope: conversations\n",
			wantErr: "auth.required_scope needs auth.jwt_secret",
		},
		{
			name:    "bad level",
			content: "database:\n  path: x.db\nlogging:\n  level: loud\n",
			wantErr: "logging.level",
		},
		{
			name:    "bad format",
			content: "database:\n  path: x.db\nlogging:\n  format: xml\n",
			wantErr: "logging.format",
		},
		{
			name:    "negative window",
			content: "database:\n  path: x.db\nresponder:\n  history_window: -1\n",
			wantErr: "responder.history_window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("Load() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefault_SaveAndLoad(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg := Default()
	if !strings.HasSuffix(cfg.Database.Path, filepath.Join("irma", "irma.db")) {
		t.Errorf("Database.Path = %q, want .../irma/irma.db", cfg.Database.Path)
	}

	path := filepath.Join(t.TempDir(), "nested", "gateway.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Database.Path != cfg.Database.Path {
		t.Errorf("Database.Path = %q, want %q", loaded.Database.Path, cfg.Database.Path)
	}
	if loaded.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("ShutdownTimeout = %v, want %v", loaded.Server.ShutdownTimeout, DefaultShutdownTimeout)
	}
}
