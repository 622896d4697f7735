// ABOUTME: Tests for SQLite store construction and schema handling
// ABOUTME: Covers file creation, nested directories, migrations and ping

package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	first.Close()

	// Schema creation and migrations must be idempotent
	second, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer second.Close()
}

func TestNewSQLiteStore_MigratesProductColumn(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// Simulate a database created before the product column existed
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening legacy database: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE conversations (
			conversation_id TEXT PRIMARY KEY,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			display_name    TEXT NOT NULL DEFAULT '',
			state           TEXT NOT NULL,
			turn_count      INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		t.Fatalf("creating legacy table: %v", err)
	}
	db.Close()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed on legacy database: %v", err)
	}
	defer store.Close()

	conv := newConversation("3b0c2f0e-0000-4000-8000-000000000001")
	conv.Product = "Widget/1.0"
	if err := store.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("CreateConversation after migration failed: %v", err)
	}

	got, err := store.GetConversation(context.Background(), conv.ID, false)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.Product != "Widget/1.0" {
		t.Errorf("Product = %q, want %q", got.Product, "Widget/1.0")
	}
}

func TestSQLiteStore_Ping(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSQLiteStore_PingAfterClose(t *testing.T) {
	store := newTestStore(t)
	store.Close()

	if err := store.Ping(context.Background()); err == nil {
		t.Error("expected Ping to fail on a closed store")
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	return store
}
