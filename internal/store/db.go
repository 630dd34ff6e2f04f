package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotInitialized is returned when the database has no schema or no
// baseline transaction yet. Callers surface it as "run swinv init".
var ErrNotInitialized = errors.New(`database not initialized (run "swinv init" first)`)

// ErrNotFound is returned by lookups for rows that do not exist.
var ErrNotFound = errors.New("not found")

// Store provides SQLite database operations for swinv.
type Store struct {
	db *sql.DB
}

// Open creates a Store from a database URI. Accepted forms are
// sqlite:///absolute/path, sqlite://:memory: and a bare filesystem path.
// Any other scheme is rejected.
func Open(uri string) (*Store, error) {
	path, err := parseURI(uri)
	if err != nil {
		return nil, err
	}
	return New(path)
}

// New creates a new Store with the specified database path.
// Use ":memory:" for in-memory databases (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool defaults
	db.SetMaxOpenConns(1) // SQLite only allows one writer at a time
	db.SetMaxIdleConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Begin starts a write transaction. The extraction hot path shares one
// transaction per log entry so that the transaction row and its package
// events commit or roll back together.
func (s *Store) Begin() (*sql.Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CreateSchema creates all tables and indexes.
func (s *Store) CreateSchema() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// DropSchema removes all tables. Used by "swinv init --force" to rebuild
// the inventory under a fresh epoch.
func (s *Store) DropSchema() error {
	_, err := s.db.Exec(dropSchema)
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}

func parseURI(uri string) (string, error) {
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	scheme, path, _ := strings.Cut(uri, "://")
	if scheme != "sqlite" {
		return "", fmt.Errorf("unsupported database scheme %q", scheme)
	}
	if path == "" {
		return "", fmt.Errorf("empty database path in %q", uri)
	}
	return path, nil
}

// modernc.org/sqlite reports a missing table as a plain error string, so
// mapping it to the sentinel has to match on the message.
func notInitialized(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
