// Package postgres stores preference envelopes as JSONB rows in Postgres.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/grid?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Backend persists envelopes in the grid_prefs table.
type Backend struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects using dsn (falls back to a local default), pings and ensures
// the table exists.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(ctx, db)
}

// New wraps an opened database and ensures the table exists.
func New(ctx context.Context, db *sql.DB) (*Backend, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres: db is required")
	}
	ddl := `CREATE TABLE IF NOT EXISTS grid_prefs (
		key TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at BIGINT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure prefs table: %w", err)
	}
	return &Backend{db: db, now: time.Now}, nil
}

// Load returns the payload stored under key.
func (b *Backend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx, `SELECT payload FROM grid_prefs WHERE key = $1`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select prefs: %w", err)
	}
	return payload, true, nil
}

// Save upserts payload under key.
func (b *Backend) Save(ctx context.Context, key string, payload []byte) error {
	_, err := b.db.ExecContext(ctx, `INSERT INTO grid_prefs (key, payload, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		key, string(payload), b.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert prefs: %w", err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM grid_prefs WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete prefs: %w", err)
	}
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (b *Backend) DB() *sql.DB { return b.db }

// Close releases the pool.
func (b *Backend) Close() error { return b.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
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
