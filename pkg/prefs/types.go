package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-grid/internal/hydrate"
)

var (
	// ErrNotFound is returned by backends that report missing keys as errors.
	ErrNotFound = errors.New("prefs: not found")
	// ErrUnsupported marks an optional backend capability that is missing.
	ErrUnsupported = errors.New("prefs: operation not supported")
	// ErrCorrupt marks a stored payload that could not be decoded.
	ErrCorrupt = errors.New("prefs: corrupt envelope")
	// ErrNewerSchema marks an envelope written by a newer schema version.
	ErrNewerSchema = errors.New("prefs: stored schema is newer than current")
)

// Envelope is the only unit ever written to a backend.
type Envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	UpdatedAt     int64           `json:"updatedAt"`
	Value         json.RawMessage `json:"value"`
}

// Backend moves raw envelopes in and out of storage.
type Backend interface {
	Load(ctx context.Context, key string) (payload []byte, ok bool, err error)
	Save(ctx context.Context, key string, payload []byte) error
}

// Deleter is implemented by backends able to remove a key.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// SyncLoader is implemented by backends that can read without blocking.
type SyncLoader interface {
	LoadSync(key string) (payload []byte, ok bool, err error)
}

// Schema is the structural context of a read or write: the columns the grid
// currently knows about.
type Schema struct {
	ColumnIDs []string
}

// Known reports whether id is a known column.
func (s Schema) Known(id string) bool {
	for _, known := range s.ColumnIDs {
		if known == id {
			return true
		}
	}
	return false
}

// MigrateFunc upgrades a raw value from one schema version to another.
type MigrateFunc func(from, to int, raw json.RawMessage, schema Schema) (json.RawMessage, error)

// Definition describes one preference kind.
type Definition[V any] struct {
	// Kind names the preference, e.g. "columnSizing".
	Kind string
	// Version is the current schema version (>= 1).
	Version int
	// Defaults returns the value used when nothing usable is stored.
	Defaults func(schema Schema) V
	// Merge combines defaults with a stored value. Nil keeps the stored value.
	Merge func(defaults, stored V, schema Schema) V
	// Migrate upgrades older envelopes. Nil decodes older values as-is.
	Migrate MigrateFunc
	// Strict treats stored object fields V does not declare as corruption.
	Strict bool
	// Validate rejects decoded values; rejected values read as corrupt.
	Validate func(value V) error
}

func (d Definition[V]) validate() error {
	if d.Kind == "" {
		return fmt.Errorf("prefs: definition kind is required")
	}
	if d.Version < 1 {
		return fmt.Errorf("prefs: definition %q version must be >= 1", d.Kind)
	}
	return nil
}

func (d Definition[V]) decoder() *hydrate.Decoder[V] {
	dec := hydrate.NewDecoder[V]()
	if d.Strict {
		dec.Strict()
	}
	if d.Validate != nil {
		dec.Check(func(_ hydrate.Context, value V) error { return d.Validate(value) })
	}
	return dec
}

func (d Definition[V]) defaults(schema Schema) V {
	if d.Defaults == nil {
		var zero V
		return zero
	}
	return d.Defaults(schema)
}

func (d Definition[V]) merge(stored V, schema Schema) V {
	if d.Merge == nil {
		return stored
	}
	return d.Merge(d.defaults(schema), stored, schema)
}

// Key identifies one stored preference.
type Key struct {
	Table string
	Kind  string
	// User is optional; empty keys are shared by every user of the table.
	User string
}

// Identifier returns the canonical storage key:
// grid/<table>/<kind> or grid/<table>/user/<user>/<kind>.
func (k Key) Identifier() (string, error) {
	table := strings.TrimSpace(k.Table)
	kind := strings.TrimSpace(k.Kind)
	if table == "" {
		return "", fmt.Errorf("prefs: key table is required")
	}
	if kind == "" {
		return "", fmt.Errorf("prefs: key kind is required")
	}
	for _, part := range []string{table, kind, k.User} {
		if strings.Contains(part, "/") {
			return "", fmt.Errorf("prefs: key segment %q must not contain '/'", part)
		}
	}
	if user := strings.TrimSpace(k.User); user != "" {
		return fmt.Sprintf("grid/%s/user/%s/%s", table, user, kind), nil
	}
	return fmt.Sprintf("grid/%s/%s", table, kind), nil
}
