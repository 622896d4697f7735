// Package store provides persistent storage for conversations using SQLite.
//
// # Data Models
//
//   - Conversation: identity, timestamps, display name, optional product tag,
//     lifecycle State and turn count
//   - Message: one User or Assistant utterance owned by a conversation
//
// State is an open string type. StateActive is the only state that accepts
// new turns; any other stored value is preserved as-is.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as fixed-width UTC text with nine fractional digits so
// that ordering by created_at reconstructs turn order. The save never writes
// state; a conversation that left Active is rejected with ErrNotActive.
//
// # Writes
//
// SaveConversation updates the conversation row and inserts the new messages
// in one transaction. The update is conditional on the turn count the caller
// loaded, so two writers racing on the same conversation cannot both commit.
//
// # Error Handling
//
//   - ErrNotFound: requested conversation does not exist
//   - ErrDuplicateConversation: conversation ID already taken
//   - ErrStaleConversation: guarded save lost a race
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore with a path under
// t.TempDir() for integration tests.
package store
