// Package sqlite stores preference envelopes in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const (
	driverName  = "sqlite"
	defaultPath = "grid-prefs.db"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Backend persists envelopes in the prefs table, one row per storage key.
type Backend struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the prefs table.
func Open(ctx context.Context, path string) (*Backend, error) {
	if path == "" {
		path = defaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, path)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	return New(ctx, db)
}

// New wraps an already opened database.
func New(ctx context.Context, db *sql.DB) (*Backend, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite: db is required")
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create prefs table: %w", err)
	}
	return &Backend{db: db, now: time.Now}, nil
}

// Load returns the payload stored under key.
func (b *Backend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx, `SELECT payload FROM prefs WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select prefs: %w", err)
	}
	return payload, true, nil
}

// LoadSync reads key without a caller context.
func (b *Backend) LoadSync(key string) ([]byte, bool, error) {
	return b.Load(context.Background(), key)
}

// Save upserts payload under key.
func (b *Backend) Save(ctx context.Context, key string, payload []byte) error {
	_, err := b.db.ExecContext(ctx, `INSERT INTO prefs (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, payload, b.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert prefs: %w", err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM prefs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete prefs: %w", err)
	}
	return nil
}

// Keys lists every stored key in order.
func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key FROM prefs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DB exposes the underlying handle.
func (b *Backend) DB() *sql.DB { return b.db }

// Close releases the database.
func (b *Backend) Close() error { return b.db.Close() }

// OverrideSQLOpen swaps the sql.Open function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
