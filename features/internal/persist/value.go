// Package persist binds one preference kind to a feature: it tracks the
// current value and whether the initial read has completed.
package persist

import (
	"context"
	"sync"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/pkg/prefs"
)

// Value is a preference held in memory and mirrored to a prefs.Store. A
// Value without a usable scope is ready immediately and never persists.
type Value[V any] struct {
	def    prefs.Definition[V]
	schema prefs.Schema
	store  *prefs.Store[V]
	key    string

	mu      sync.Mutex
	current V
	ready   bool
	touched bool
	logger  grid.Logger
	// seq counts in-memory changes; cleared marks the latest one as a reset.
	seq     uint64
	cleared bool

	// writeMu serializes backend writes; written is the seq last stored.
	writeMu sync.Mutex
	written uint64
}

// New builds a Value. Backends able to read synchronously are read right
// away so the persisted layout is in place before the first render.
func New[V any](scope prefs.Scope, def prefs.Definition[V], schema prefs.Schema) *Value[V] {
	v := &Value[V]{
		def:    def,
		schema: schema,
		logger: grid.NopLogger(),
	}
	v.current = v.defaults()
	if !scope.Enabled() {
		v.ready = true
		return v
	}
	key, err := scope.Key(def.Kind)
	if err != nil {
		v.ready = true
		return v
	}
	store, err := prefs.NewStore(scope.Backend, def, scope.Options...)
	if err != nil {
		v.ready = true
		return v
	}
	v.store = store
	v.key = key
	if store.CanGetSync() {
		value, _ := store.GetSync(key, schema)
		v.current = value
		v.ready = true
	}
	return v
}

// SetLogger reports persistence failures through logger.
func (v *Value[V]) SetLogger(logger grid.Logger) {
	v.mu.Lock()
	v.logger = grid.LoggerOrNop(logger)
	v.mu.Unlock()
}

// Load performs the initial read. Failures leave the defaults in place and
// still mark the value ready. A value updated while the read was in flight
// wins over the stored one.
func (v *Value[V]) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.ready || v.store == nil {
		v.ready = true
		v.mu.Unlock()
		return nil
	}
	v.mu.Unlock()

	value, err := v.store.Get(ctx, v.key, v.schema)
	v.mu.Lock()
	if !v.touched {
		v.current = value
	}
	v.ready = true
	v.mu.Unlock()
	return err
}

// Get returns the current value.
func (v *Value[V]) Get() V {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Ready reports whether the initial read has completed.
func (v *Value[V]) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// Update merges next with the defaults, stores it in memory and returns the
// merged value. Persisting happens in Save.
func (v *Value[V]) Update(next V) V {
	merged := next
	if v.def.Merge != nil {
		merged = v.def.Merge(v.defaults(), next, v.schema)
	}
	v.mu.Lock()
	v.current = merged
	v.touched = true
	v.seq++
	v.cleared = false
	v.mu.Unlock()
	return merged
}

// Save persists the latest in-memory state. Writes run one at a time and a
// write already superseded by a newer one is skipped, so the backend never
// ends up behind memory. Errors are logged and returned.
func (v *Value[V]) Save(ctx context.Context) error {
	return v.flush(ctx)
}

// Restore puts the defaults back in memory.
func (v *Value[V]) Restore() V {
	defaults := v.defaults()
	v.mu.Lock()
	v.current = defaults
	v.touched = true
	v.seq++
	v.cleared = true
	v.mu.Unlock()
	return defaults
}

// Remove persists a Restore: the stored envelope is dropped, or the defaults
// are written when the backend cannot delete. Like Save it writes the latest
// state, so an Update made after the Restore is stored instead.
func (v *Value[V]) Remove(ctx context.Context) error {
	return v.flush(ctx)
}

func (v *Value[V]) flush(ctx context.Context) error {
	if v.store == nil {
		return nil
	}
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	v.mu.Lock()
	value, seq, cleared := v.current, v.seq, v.cleared
	v.mu.Unlock()
	if seq <= v.written {
		return nil
	}

	var err error
	operation := "save"
	if cleared {
		operation = "reset"
		_, err = v.store.Remove(ctx, v.key, v.schema)
	} else {
		_, err = v.store.Set(ctx, v.key, value, v.schema)
	}
	if err != nil {
		v.log(operation, err)
		return err
	}
	v.written = seq
	return nil
}

// Reset restores the defaults and removes the stored envelope.
func (v *Value[V]) Reset(ctx context.Context) error {
	v.Restore()
	return v.Remove(ctx)
}

func (v *Value[V]) defaults() V {
	if v.def.Defaults == nil {
		var zero V
		return zero
	}
	return v.def.Defaults(v.schema)
}

func (v *Value[V]) log(operation string, err error) {
	v.mu.Lock()
	logger := v.logger
	v.mu.Unlock()
	logger.Log(grid.LogEvent{Component: v.def.Kind, Operation: operation, Key: v.key, Err: err})
}
