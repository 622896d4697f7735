// ABOUTME: In-memory client state for one command invocation
// ABOUTME: Tracks which sub-states were modified so only those are committed

package cli

import (
	"fmt"
	"sort"
)

// State is the loaded snapshot a command works against.
type State struct {
	Defaults   map[string]string
	Credential *Credential
	Session    *Session

	defaultsDirty   bool
	credentialDirty bool
	credentialClear bool
	sessionDirty    bool
}

// LoadState reads all three documents. Each is independently optional.
func LoadState(paths Paths) (*State, error) {
	defaults, err := loadDefaults(paths.DefaultsFile())
	if err != nil {
		return nil, err
	}
	cred, err := loadCredential(paths.AuthFile())
	if err != nil {
		return nil, err
	}
	session, err := loadSession(paths.SessionsFile())
	if err != nil {
		return nil, err
	}
	return &State{Defaults: defaults, Credential: cred, Session: session}, nil
}

// Commit writes every dirty sub-state. Clearing the credential wins over setting it.
func (s *State) Commit(paths Paths) error {
	if s.defaultsDirty {
		if err := saveDefaults(paths.DefaultsFile(), s.Defaults); err != nil {
			return fmt.Errorf("saving defaults: %w", err)
		}
	}

	switch {
	case s.credentialClear:
		if err := clearCredential(paths.AuthFile()); err != nil {
			return err
		}
	case s.credentialDirty && s.Credential != nil:
		if err := saveCredential(paths.AuthFile(), s.Credential); err != nil {
			return fmt.Errorf("saving credential: %w", err)
		}
	}

	if s.sessionDirty {
		if err := saveSession(paths.SessionsFile(), s.Session); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
	}
	return nil
}

// Default returns the stored value for key, matched case-insensitively.
func (s *State) Default(key string) (string, bool) {
	v, ok := s.Defaults[normalizeKey(key)]
	return v, ok
}

// SetDefault stores value under key.
func (s *State) SetDefault(key, value string) {
	s.Defaults[normalizeKey(key)] = value
	s.defaultsDirty = true
}

// ClearDefault removes key and reports whether it was set.
func (s *State) ClearDefault(key string) bool {
	key = normalizeKey(key)
	if _, ok := s.Defaults[key]; !ok {
		return false
	}
	delete(s.Defaults, key)
	s.defaultsDirty = true
	return true
}

// DefaultKeys returns the stored keys in sorted order.
func (s *State) DefaultKeys() []string {
	keys := make([]string, 0, len(s.Defaults))
	for k := range s.Defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCredential caches cred, cancelling any earlier clear.
func (s *State) SetCredential(cred *Credential) {
	s.Credential = cred
	s.credentialDirty = true
	s.credentialClear = false
}

// ClearCredential drops the cached credential.
func (s *State) ClearCredential() {
	s.Credential = nil
	s.credentialDirty = false
	s.credentialClear = true
}

// SetCurrentConversation selects id and moves it to the front of the recent list.
func (s *State) SetCurrentConversation(id string) {
	s.Session.CurrentConversationID = id

	recent := make([]string, 0, len(s.Session.RecentConversations)+1)
	recent = append(recent, id)
	for _, r := range s.Session.RecentConversations {
		if r != id {
			recent = append(recent, r)
		}
	}
	if len(recent) > maxRecentConversations {
		recent = recent[:maxRecentConversations]
	}
	s.Session.RecentConversations = recent
	s.sessionDirty = true
}
