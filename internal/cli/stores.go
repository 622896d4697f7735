// ABOUTME: Whole-document stores for defaults, credential and session state
// ABOUTME: Defaults are TOML, credential and session are JSON; all writes are atomic

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// credentialSkew treats a credential as expired this long before its expiry.
const credentialSkew = 2 * time.Minute

// maxRecentConversations caps the most-recently-used list.
const maxRecentConversations = 10

// Credential is a cached bearer token.
type Credential struct {
	AccessToken string    `json:"accessToken"`
	Scheme      string    `json:"scheme"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Expired reports whether the credential must no longer be sent at now.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt.Add(-credentialSkew))
}

// Session tracks the current conversation and recently used ones, newest first.
type Session struct {
	CurrentConversationID string   `json:"currentConversationId,omitempty"`
	RecentConversations   []string `json:"recentConversations"`
}

// loadDefaults reads defaults.toml. A missing file yields an empty map.
func loadDefaults(path string) (map[string]string, error) {
	defaults := make(map[string]string)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading defaults: %w", err)
	}

	var raw map[string]string
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing defaults: %w", err)
	}
	for k, v := range raw {
		defaults[normalizeKey(k)] = v
	}
	return defaults, nil
}

func saveDefaults(path string, defaults map[string]string) error {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(defaults); err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	return writeFileAtomic(path, []byte(b.String()), 0600)
}

// loadCredential reads auth.json. A missing file yields nil.
func loadCredential(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credential: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("parsing credential: %w", err)
	}
	if cred.AccessToken == "" {
		return nil, nil
	}
	return &cred, nil
}

func saveCredential(path string, cred *Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	return writeFileAtomic(path, data, 0600)
}

func clearCredential(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing credential: %w", err)
	}
	return nil
}

// loadSession reads sessions.json. A missing file yields an empty session.
func loadSession(path string) (*Session, error) {
	session := &Session{RecentConversations: []string{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return session, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	if session.RecentConversations == nil {
		session.RecentConversations = []string{}
	}
	return session, nil
}

func saveSession(path string, session *Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return writeFileAtomic(path, data, 0600)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
