package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a *sql.DB opened against the remem database file.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the sqlite database at path and applies
// migrations. A single writer connection is enforced since the schema's
// invariants (cooldown's atomic check-and-set above all) depend on there
// being no concurrent writer within this process.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create data directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("store: resolve path: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", absPath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if err := applyMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply migrations: %w", err)
	}

	return &DB{conn: conn}, nil
}

// OpenReadOnly opens the database in read-only mode without applying
// migrations. No command in this repository calls it: the Query Server
// (`remem mcp`) opens a regular connection through Open, which it uses for
// both its read tools and save_memory.
func OpenReadOnly(path string) (*DB, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("store: resolve path: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL&_busy_timeout=5000", absPath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite read-only: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Conn returns the underlying *sql.DB.
func (d *DB) Conn() *sql.DB { return d.conn }

// Close closes the database connection.
func (d *DB) Close() error { return d.conn.Close() }
