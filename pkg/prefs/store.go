package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/internal/hydrate"
)

const componentPrefs = "prefs"

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	logger    grid.Logger
	metrics   grid.MetricsRecorder
	now       func() time.Time
	writeBack bool
}

// WithLogger attaches a logger.
func WithLogger(logger grid.Logger) Option {
	return func(cfg *storeConfig) {
		cfg.logger = grid.LoggerOrNop(logger)
	}
}

// WithMetrics attaches a metrics recorder observing prefs.load and
// prefs.save.
func WithMetrics(recorder grid.MetricsRecorder) Option {
	return func(cfg *storeConfig) {
		cfg.metrics = grid.MetricsOrNop(recorder)
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(cfg *storeConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithWriteBack persists migrated envelopes at the current version after a
// successful read.
func WithWriteBack(enabled bool) Option {
	return func(cfg *storeConfig) {
		cfg.writeBack = enabled
	}
}

// Store reads and writes one preference kind.
type Store[V any] struct {
	backend Backend
	def     Definition[V]
	cfg     storeConfig
	decoder *hydrate.Decoder[V]
	loads   singleflight.Group

	mu    sync.Mutex
	ready map[string]bool
}

// NewStore binds a definition to a backend.
func NewStore[V any](backend Backend, def Definition[V], opts ...Option) (*Store[V], error) {
	if backend == nil {
		return nil, fmt.Errorf("prefs: backend is required")
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	cfg := storeConfig{
		logger:  grid.NopLogger(),
		metrics: grid.NopMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Store[V]{
		backend: backend,
		def:     def,
		cfg:     cfg,
		decoder: def.decoder(),
		ready:   map[string]bool{},
	}, nil
}

// Definition returns the bound definition.
func (s *Store[V]) Definition() Definition[V] {
	return s.def
}

// Defaults returns the defaults for schema.
func (s *Store[V]) Defaults(schema Schema) V {
	return s.def.defaults(schema)
}

// Ready reports whether the initial read for key has completed.
func (s *Store[V]) Ready(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready[key]
}

func (s *Store[V]) markReady(key string) {
	s.mu.Lock()
	s.ready[key] = true
	s.mu.Unlock()
}

// CanGetSync reports whether the backend supports synchronous reads.
func (s *Store[V]) CanGetSync() bool {
	_, ok := s.backend.(SyncLoader)
	return ok
}

// GetSync reads key without blocking when the backend supports it. ok is
// false when the backend cannot read synchronously; the defaults are
// returned in that case.
func (s *Store[V]) GetSync(key string, schema Schema) (V, bool) {
	loader, ok := s.backend.(SyncLoader)
	if !ok {
		return s.def.defaults(schema), false
	}
	payload, found, err := loader.LoadSync(key)
	value, _ := s.resolve(context.Background(), key, payload, found, err, schema)
	s.markReady(key)
	return value, true
}

// Get reads key, migrating and merging the stored value. It always returns a
// usable value: on any failure the defaults come back together with the
// error so callers can log it.
func (s *Store[V]) Get(ctx context.Context, key string, schema Schema) (V, error) {
	type loaded struct {
		payload []byte
		found   bool
	}
	start := s.cfg.now()
	result, err, _ := s.loads.Do(key, func() (any, error) {
		payload, found, err := s.backend.Load(ctx, key)
		return loaded{payload: payload, found: found}, err
	})
	s.cfg.metrics.Observe(ctx, "prefs.load", err == nil, s.cfg.now().Sub(start))

	var payload []byte
	var found bool
	if res, ok := result.(loaded); ok {
		payload = res.payload
		found = res.found
	}
	value, resolveErr := s.resolve(ctx, key, payload, found, err, schema)
	s.markReady(key)
	return value, resolveErr
}

func (s *Store[V]) resolve(ctx context.Context, key string, payload []byte, found bool, loadErr error, schema Schema) (V, error) {
	if loadErr != nil {
		s.log("load", key, loadErr)
		return s.def.defaults(schema), fmt.Errorf("prefs: load %q: %w", key, loadErr)
	}
	if !found || len(payload) == 0 {
		return s.def.defaults(schema), nil
	}

	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		err = fmt.Errorf("%w: %q: %v", ErrCorrupt, key, err)
		s.log("decode", key, err)
		return s.def.defaults(schema), err
	}

	raw := envelope.Value
	switch {
	case envelope.SchemaVersion > s.def.Version:
		s.log("downgrade", key, fmt.Errorf("%w: stored %d, current %d", ErrNewerSchema, envelope.SchemaVersion, s.def.Version))
		return s.def.defaults(schema), nil
	case envelope.SchemaVersion < s.def.Version && s.def.Migrate != nil:
		migrated, err := s.def.Migrate(envelope.SchemaVersion, s.def.Version, raw, schema)
		if err != nil {
			err = fmt.Errorf("prefs: migrate %q from %d to %d: %w", key, envelope.SchemaVersion, s.def.Version, err)
			s.log("migrate", key, err)
			return s.def.defaults(schema), err
		}
		raw = migrated
	}

	if len(raw) == 0 || string(raw) == "null" {
		return s.def.defaults(schema), nil
	}
	stored, err := s.decoder.Decode(hydrate.Context{Key: key, Kind: s.def.Kind, Version: s.def.Version}, raw)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrCorrupt, err)
		s.log("decode", key, err)
		return s.def.defaults(schema), err
	}
	merged := s.def.merge(stored, schema)

	if envelope.SchemaVersion != s.def.Version && s.cfg.writeBack {
		if err := s.save(ctx, key, merged); err != nil {
			s.log("writeback", key, err)
		}
	}
	return merged, nil
}

// Set merges value with the defaults and persists the result. The merged
// value is returned even when the write fails.
func (s *Store[V]) Set(ctx context.Context, key string, value V, schema Schema) (V, error) {
	merged := s.def.merge(value, schema)
	if err := s.save(ctx, key, merged); err != nil {
		s.log("save", key, err)
		return merged, err
	}
	return merged, nil
}

// Remove resets key. Backends able to delete drop the envelope; others get
// the defaults persisted explicitly.
func (s *Store[V]) Remove(ctx context.Context, key string, schema Schema) (V, error) {
	defaults := s.def.defaults(schema)
	if deleter, ok := s.backend.(Deleter); ok {
		start := s.cfg.now()
		err := deleter.Delete(ctx, key)
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		s.cfg.metrics.Observe(ctx, "prefs.delete", err == nil, s.cfg.now().Sub(start))
		if err == nil {
			return defaults, nil
		}
		if !errors.Is(err, ErrUnsupported) {
			s.log("delete", key, err)
			return defaults, fmt.Errorf("prefs: delete %q: %w", key, err)
		}
	}
	if err := s.save(ctx, key, defaults); err != nil {
		s.log("save", key, err)
		return defaults, err
	}
	return defaults, nil
}

func (s *Store[V]) save(ctx context.Context, key string, value V) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("prefs: encode %q: %w", key, err)
	}
	payload, err := json.Marshal(Envelope{
		SchemaVersion: s.def.Version,
		UpdatedAt:     s.cfg.now().UnixMilli(),
		Value:         raw,
	})
	if err != nil {
		return fmt.Errorf("prefs: encode envelope %q: %w", key, err)
	}
	start := s.cfg.now()
	err = s.backend.Save(ctx, key, payload)
	s.cfg.metrics.Observe(ctx, "prefs.save", err == nil, s.cfg.now().Sub(start))
	if err != nil {
		return fmt.Errorf("prefs: save %q: %w", key, err)
	}
	return nil
}

func (s *Store[V]) log(operation, key string, err error) {
	s.cfg.logger.Log(grid.LogEvent{
		Component: componentPrefs,
		Operation: operation,
		Key:       key,
		Err:       err,
		Fields:    map[string]any{"kind": s.def.Kind},
	})
}

// EncodeEnvelope builds a raw envelope, mostly useful to seed backends.
func EncodeEnvelope(version int, updatedAt time.Time, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{SchemaVersion: version, UpdatedAt: updatedAt.UnixMilli(), Value: raw})
}

// DecodeEnvelope parses a raw envelope.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return envelope, nil
}
