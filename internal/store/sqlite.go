// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed width so that text order in SQLite is chronological order.
// Values are always written in UTC.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTime also accepts RFC3339 text written by hand or by older builds.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			display_name    TEXT NOT NULL DEFAULT '',
			product         TEXT,
			state           TEXT NOT NULL,
			turn_count      INTEGER NOT NULL DEFAULT 0,

			CHECK (turn_count >= 0)
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_created
			ON conversations(created_at);

		CREATE TABLE IF NOT EXISTS messages (
			message_id      TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id) ON DELETE CASCADE,
			role            TEXT NOT NULL,
			text            TEXT NOT NULL,
			created_at      TEXT NOT NULL,

			CHECK (role IN ('User', 'Assistant'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "conversations",
			column: "product",
			apply:  `ALTER TABLE conversations ADD COLUMN product TEXT`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(
			`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column,
		).Scan(&exists)
		if err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping runs a trivial query against the database
func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// CreateConversation inserts a new conversation.
// Returns ErrDuplicateConversation if the ID is already in use.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (conversation_id, created_at, updated_at, display_name, product, state, turn_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		formatTime(conv.CreatedAt),
		formatTime(conv.UpdatedAt),
		conv.DisplayName,
		nullString(conv.Product),
		string(conv.State),
		conv.TurnCount,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "product", conv.Product)
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed")
}

// nullString maps empty strings to NULL
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var conv Conversation
	var createdAtStr, updatedAtStr, state string
	var product sql.NullString

	if err := row.Scan(
		&conv.ID,
		&createdAtStr,
		&updatedAtStr,
		&conv.DisplayName,
		&product,
		&state,
		&conv.TurnCount,
	); err != nil {
		return nil, err
	}

	var err error
	conv.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	conv.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	conv.Product = product.String
	conv.State = State(state)

	return &conv, nil
}

// GetConversation retrieves a conversation by ID, with its messages if requested.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string, withMessages bool) (*Conversation, error) {
	query := `
		SELECT conversation_id, created_at, updated_at, display_name, product, state, turn_count
		FROM conversations
		WHERE conversation_id = ?
	`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if !withMessages {
		return conv, nil
	}

	conv.Messages, err = s.getMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// getMessages returns all messages of a conversation in chronological order
func (s *SQLiteStore) getMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	query := `
		SELECT message_id, conversation_id, role, text, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*Message, 0)
	for rows.Next() {
		var msg Message
		var role, createdAtStr string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Text, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = Role(role)
		msg.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

// SaveConversation writes the conversation row and appends newMessages in one transaction.
// The update only applies to an Active conversation whose turn count still equals
// expectedTurns, so neither a concurrent turn nor a concurrent state change is overwritten.
func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *Conversation, expectedTurns int, newMessages []*Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET updated_at = ?, display_name = ?, product = ?, turn_count = ?
		WHERE conversation_id = ? AND turn_count = ? AND state = ?
	`,
		formatTime(conv.UpdatedAt),
		conv.DisplayName,
		nullString(conv.Product),
		conv.TurnCount,
		conv.ID,
		expectedTurns,
		string(StateActive),
	)
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		var state string
		err := tx.QueryRowContext(ctx, `SELECT state FROM conversations WHERE conversation_id = ?`, conv.ID).Scan(&state)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrNotFound
		case err != nil:
			return fmt.Errorf("checking conversation: %w", err)
		case !State(state).AcceptsTurns():
			return ErrNotActive
		default:
			return ErrStaleConversation
		}
	}

	for _, msg := range newMessages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (message_id, conversation_id, role, text, created_at)
			VALUES (?, ?, ?, ?, ?)
		`,
			msg.ID,
			conv.ID,
			string(msg.Role),
			msg.Text,
			formatTime(msg.CreatedAt),
		); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing conversation: %w", err)
	}

	s.logger.Debug("saved conversation", "id", conv.ID, "turn_count", conv.TurnCount, "new_messages", len(newMessages))
	return nil
}

// SetConversationState updates the lifecycle state of a conversation.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) SetConversationState(ctx context.Context, id string, state State) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET state = ?, updated_at = ? WHERE conversation_id = ?
	`, string(state), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating conversation state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Info("conversation state changed", "id", id, "state", state)
	return nil
}
