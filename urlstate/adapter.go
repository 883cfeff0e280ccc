// Package urlstate keeps a grid snapshot in a query string. The routing
// library stays outside: the adapter talks to it through a Navigator.
package urlstate

import (
	"net/url"
	"sync"

	grid "github.com/goliatone/go-grid"
)

// Navigator is the seam to the host router. Push and Replace are
// fire-and-forget.
type Navigator interface {
	Query() url.Values
	Push(values url.Values)
	Replace(values url.Values)
}

// HistoryMode selects how a snapshot change is written to history.
type HistoryMode string

const (
	HistoryPush    HistoryMode = "push"
	HistoryReplace HistoryMode = "replace"
)

// Middleware may rewrite the next snapshot before it is serialized, e.g. to
// clear a dependent filter when its parent changes.
type Middleware func(prev, next grid.Snapshot, reason grid.ChangeReason) grid.Snapshot

// Option configures an Adapter.
type Option func(*config)

type config struct {
	policy     grid.PagePolicy
	history    HistoryMode
	perReason  map[grid.ChangeReason]HistoryMode
	middleware []Middleware
	parsers    map[string]grid.FilterParser
	logger     grid.Logger
}

// WithResetPageOnFilterChange toggles the filter page reset (default true).
func WithResetPageOnFilterChange(reset bool) Option {
	return func(cfg *config) {
		cfg.policy.ResetOnFilterChange = reset
	}
}

// WithResetPageOnSearchChange resets the page only when filters[searchKey]
// changes.
func WithResetPageOnSearchChange(searchKey string) Option {
	return func(cfg *config) {
		cfg.policy.ResetOnSearchChange = searchKey != ""
		cfg.policy.SearchKey = searchKey
	}
}

// WithHistory sets the default history mode (push when unset).
func WithHistory(mode HistoryMode) Option {
	return func(cfg *config) {
		if mode == HistoryPush || mode == HistoryReplace {
			cfg.history = mode
		}
	}
}

// WithHistoryFor overrides the history mode for one change reason.
func WithHistoryFor(reason grid.ChangeReason, mode HistoryMode) Option {
	return func(cfg *config) {
		if mode != HistoryPush && mode != HistoryReplace {
			return
		}
		if cfg.perReason == nil {
			cfg.perReason = map[grid.ChangeReason]HistoryMode{}
		}
		cfg.perReason[reason] = mode
	}
}

// WithMiddleware appends a snapshot rewrite hook. Hooks run in order.
func WithMiddleware(mw Middleware) Option {
	return func(cfg *config) {
		if mw != nil {
			cfg.middleware = append(cfg.middleware, mw)
		}
	}
}

// WithFilterParser decodes the query values of one filter key.
func WithFilterParser(key string, parser grid.FilterParser) Option {
	return func(cfg *config) {
		if cfg.parsers == nil {
			cfg.parsers = map[string]grid.FilterParser{}
		}
		cfg.parsers[key] = parser
	}
}

// WithLogger reports undecodable query strings.
func WithLogger(logger grid.Logger) Option {
	return func(cfg *config) {
		cfg.logger = grid.LoggerOrNop(logger)
	}
}

// Adapter is a grid.StateAdapter whose snapshot lives in the query string
// under one key prefix.
type Adapter struct {
	nav   Navigator
	codec grid.QueryCodec
	cfg   config

	mu        sync.Mutex
	current   grid.Snapshot
	encoded   string
	listeners grid.Listeners
}

var _ grid.StateAdapter = (*Adapter)(nil)

// New reads the initial snapshot from nav. defaults fill page and size when
// the query string does not carry them.
func New(nav Navigator, key string, defaults grid.Snapshot, opts ...Option) *Adapter {
	cfg := config{
		policy:  grid.DefaultPagePolicy(),
		history: HistoryPush,
		logger:  grid.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	a := &Adapter{
		nav:   nav,
		codec: grid.QueryCodec{Key: key, Defaults: defaults.Normalize(), Parsers: cfg.parsers},
		cfg:   cfg,
	}
	a.current = a.read()
	a.encoded = a.serialize(a.current)
	return a
}

// Key returns the query prefix key.
func (a *Adapter) Key() string {
	return a.codec.Key
}

// Snapshot returns the snapshot last read from or written to the navigator.
func (a *Adapter) Snapshot() grid.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current.Clone()
}

// SetSnapshot applies the page policy and middleware, then navigates. Nothing
// happens when the serialized result is unchanged. Listeners receive the
// snapshot as it reads back from the query string.
func (a *Adapter) SetSnapshot(next grid.Snapshot, reason grid.ChangeReason) {
	a.mu.Lock()
	prev := a.current
	candidate := a.cfg.policy.Apply(prev, next.Clone(), reason)
	for _, mw := range a.cfg.middleware {
		candidate = mw(prev.Clone(), candidate, reason)
	}
	candidate = candidate.Normalize()
	encoded := a.serialize(candidate)
	if encoded == a.encoded {
		a.mu.Unlock()
		return
	}
	written := a.readBack(candidate)
	a.current = written
	a.encoded = encoded
	a.mu.Unlock()

	values := a.codec.Encode(a.nav.Query(), candidate)
	if a.HistoryFor(reason) == HistoryReplace {
		a.nav.Replace(values)
	} else {
		a.nav.Push(values)
	}
	a.listeners.Notify(written.Clone(), reason)
}

// HistoryFor returns the history mode used for reason.
func (a *Adapter) HistoryFor(reason grid.ChangeReason) HistoryMode {
	if mode, ok := a.cfg.perReason[reason]; ok {
		return mode
	}
	return a.cfg.history
}

// Sync re-reads the navigator after external navigation such as back or
// forward and notifies listeners with ReasonInit when the state changed. It
// reports whether it did.
func (a *Adapter) Sync() bool {
	snapshot := a.read()
	encoded := a.serialize(snapshot)
	a.mu.Lock()
	if encoded == a.encoded {
		a.mu.Unlock()
		return false
	}
	a.current = snapshot
	a.encoded = encoded
	a.mu.Unlock()

	a.listeners.Notify(snapshot, grid.ReasonInit)
	return true
}

// Subscribe registers listener for snapshot changes.
func (a *Adapter) Subscribe(listener grid.Listener) func() {
	return a.listeners.Add(listener)
}

// serialize renders only the parameters owned by the codec, so foreign
// params never count as a change.
func (a *Adapter) serialize(snapshot grid.Snapshot) string {
	return a.codec.Encode(nil, snapshot).Encode()
}

// readBack decodes what candidate encodes to. A value the configured parsers
// reject is kept as given.
func (a *Adapter) readBack(candidate grid.Snapshot) grid.Snapshot {
	snapshot, err := a.codec.Decode(a.codec.Encode(nil, candidate))
	if err != nil {
		a.cfg.logger.Log(grid.LogEvent{Component: "urlstate", Operation: "encode", Key: a.codec.Key, Err: err})
		return candidate
	}
	return snapshot
}

func (a *Adapter) read() grid.Snapshot {
	snapshot, err := a.codec.Decode(a.nav.Query())
	if err != nil {
		a.cfg.logger.Log(grid.LogEvent{Component: "urlstate", Operation: "decode", Key: a.codec.Key, Err: err})
		return a.codec.Defaults.Clone()
	}
	return snapshot
}
