package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/ledgersync/internal/types"
	_ "modernc.org/sqlite"
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite-backed implementation of Store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable pragmas for performance and safety
	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	// Run goose migrations
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetStats returns aggregate store statistics.
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	st := &types.StoreStats{}

	queries := []struct {
		sql  string
		dest *int64
	}{
		{"SELECT COUNT(*) FROM items", &st.ItemCount},
		{"SELECT COUNT(*) FROM accounts", &st.AccountCount},
		{"SELECT COUNT(*) FROM transactions", &st.TransactionCount},
		{"SELECT COUNT(*) FROM transactions WHERE pending = 1", &st.PendingCount},
		{"SELECT COUNT(*) FROM transactions WHERE potential_duplicate = 1", &st.DuplicateFlagCount},
		{"SELECT COUNT(*) FROM transactions WHERE category_status = 'UNCATEGORIZED'", &st.UncategorizedCount},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("store stats: %w", err)
		}
	}

	return st, nil
}

// Snapshot writes a consistent copy of the database to destPath.
// VACUUM INTO produces a compact single-file snapshot without blocking writers.
func (s *SQLiteStore) Snapshot(ctx context.Context, destPath string) error {
	// VACUUM INTO refuses to overwrite an existing file
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("vacuum into snapshot: %w", err)
	}
	return nil
}

// formatTime renders a timestamp for TEXT column storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a stored TEXT timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
