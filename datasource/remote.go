package datasource

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	grid "github.com/goliatone/go-grid"
)

const defaultCacheSize = 64

// FetchFunc loads one page from a remote service.
type FetchFunc[T any] func(ctx context.Context, snapshot grid.Snapshot) (grid.DataResult[T], error)

// RemoteOption configures a Remote.
type RemoteOption func(*remoteConfig)

type remoteConfig struct {
	size    int
	ttl     time.Duration
	now     func() time.Time
	metrics grid.MetricsRecorder
	logger  grid.Logger
}

// WithCacheSize bounds the number of cached pages. Zero or less disables
// caching; identical in-flight queries are still shared.
func WithCacheSize(size int) RemoteOption {
	return func(cfg *remoteConfig) {
		cfg.size = size
	}
}

// WithTTL expires cached pages after ttl. Zero keeps pages until evicted.
func WithTTL(ttl time.Duration) RemoteOption {
	return func(cfg *remoteConfig) {
		cfg.ttl = ttl
	}
}

// WithRemoteClock overrides time.Now for expiry.
func WithRemoteClock(now func() time.Time) RemoteOption {
	return func(cfg *remoteConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithRemoteMetrics records "datasource.remote.fetch" and
// "datasource.remote.cache_hit" observations.
func WithRemoteMetrics(recorder grid.MetricsRecorder) RemoteOption {
	return func(cfg *remoteConfig) {
		cfg.metrics = grid.MetricsOrNop(recorder)
	}
}

// WithRemoteLogger reports fetch failures.
func WithRemoteLogger(logger grid.Logger) RemoteOption {
	return func(cfg *remoteConfig) {
		cfg.logger = grid.LoggerOrNop(logger)
	}
}

type cached[T any] struct {
	result grid.DataResult[T]
	stored time.Time
}

// Remote caches a FetchFunc by snapshot fingerprint. Concurrent queries for
// the same snapshot share a single fetch. Errors are never cached.
type Remote[T any] struct {
	fetch FetchFunc[T]
	cfg   remoteConfig
	cache *lru.Cache[string, cached[T]]
	group singleflight.Group
}

// NewRemote wraps fetch.
func NewRemote[T any](fetch FetchFunc[T], opts ...RemoteOption) (*Remote[T], error) {
	cfg := remoteConfig{
		size:    defaultCacheSize,
		now:     time.Now,
		metrics: grid.NopMetrics(),
		logger:  grid.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	r := &Remote[T]{fetch: fetch, cfg: cfg}
	if cfg.size > 0 {
		cache, err := lru.New[string, cached[T]](cfg.size)
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}
	return r, nil
}

// Query returns the cached page for snapshot or fetches it.
func (r *Remote[T]) Query(ctx context.Context, snapshot grid.Snapshot) (grid.DataResult[T], error) {
	key := snapshot.Fingerprint()
	if result, ok := r.lookup(key); ok {
		r.cfg.metrics.Observe(ctx, "datasource.remote.cache_hit", true, 0)
		return result, nil
	}

	value, err, _ := r.group.Do(key, func() (any, error) {
		start := time.Now()
		result, err := r.fetch(ctx, snapshot.Normalize())
		r.cfg.metrics.Observe(ctx, "datasource.remote.fetch", err == nil, time.Since(start))
		if err != nil {
			r.cfg.logger.Log(grid.LogEvent{Component: "datasource", Operation: "fetch", Key: key, Duration: time.Since(start), Err: err})
			return nil, err
		}
		if r.cache != nil {
			r.cache.Add(key, cached[T]{result: result, stored: r.cfg.now()})
		}
		return result, nil
	})
	if err != nil {
		return grid.DataResult[T]{}, err
	}
	return value.(grid.DataResult[T]), nil
}

// Invalidate drops the cached page for snapshot.
func (r *Remote[T]) Invalidate(snapshot grid.Snapshot) {
	if r.cache != nil {
		r.cache.Remove(snapshot.Fingerprint())
	}
}

// Purge drops every cached page, e.g. after a write.
func (r *Remote[T]) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

// Len returns the number of cached pages.
func (r *Remote[T]) Len() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

func (r *Remote[T]) lookup(key string) (grid.DataResult[T], bool) {
	if r.cache == nil {
		return grid.DataResult[T]{}, false
	}
	entry, ok := r.cache.Get(key)
	if !ok {
		return grid.DataResult[T]{}, false
	}
	if r.cfg.ttl > 0 && r.cfg.now().Sub(entry.stored) > r.cfg.ttl {
		r.cache.Remove(key)
		return grid.DataResult[T]{}, false
	}
	return entry.result, true
}
