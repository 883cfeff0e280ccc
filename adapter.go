package grid

import (
	"sort"
	"sync"
)

// Listener observes snapshot replacements.
type Listener func(next Snapshot, reason ChangeReason)

// StateAdapter owns (or mirrors) the active Snapshot. Implementations must
// treat SetSnapshot as a no-op when the serialized result is unchanged.
type StateAdapter interface {
	Snapshot() Snapshot
	SetSnapshot(next Snapshot, reason ChangeReason)
	Subscribe(listener Listener) (unsubscribe func())
}

// PagePolicy decides when a snapshot change sends the user back to page 1.
type PagePolicy struct {
	// ResetOnFilterChange resets the page for ReasonFilters changes.
	ResetOnFilterChange bool
	// ResetOnSearchChange resets the page when Filters[SearchKey] changes,
	// regardless of ResetOnFilterChange.
	ResetOnSearchChange bool
	SearchKey           string
}

// DefaultPagePolicy resets on any filter change.
func DefaultPagePolicy() PagePolicy {
	return PagePolicy{ResetOnFilterChange: true}
}

// Apply returns next with the page reset when the policy requires it.
func (p PagePolicy) Apply(prev, next Snapshot, reason ChangeReason) Snapshot {
	if reason == ReasonFilters && p.ResetOnFilterChange {
		next.Page = 1
		return next
	}
	if p.ResetOnSearchChange && p.SearchKey != "" && FilterValueChanged(prev.Filters, next.Filters, p.SearchKey) {
		next.Page = 1
	}
	return next
}

// AdapterOption configures the in-process adapters.
type AdapterOption func(*adapterConfig)

type adapterConfig struct {
	policy PagePolicy
}

func applyAdapterOptions(opts []AdapterOption) adapterConfig {
	cfg := adapterConfig{policy: DefaultPagePolicy()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithResetPageOnFilterChange toggles the filter page reset (default true).
func WithResetPageOnFilterChange(reset bool) AdapterOption {
	return func(cfg *adapterConfig) {
		cfg.policy.ResetOnFilterChange = reset
	}
}

// WithResetPageOnSearchChange resets the page whenever the designated search
// filter changes.
func WithResetPageOnSearchChange(searchKey string) AdapterOption {
	return func(cfg *adapterConfig) {
		cfg.policy.ResetOnSearchChange = searchKey != ""
		cfg.policy.SearchKey = searchKey
	}
}

// WithPagePolicy replaces the whole page policy.
func WithPagePolicy(policy PagePolicy) AdapterOption {
	return func(cfg *adapterConfig) {
		cfg.policy = policy
	}
}

// Listeners is a registry of snapshot listeners. It is safe for concurrent
// use and delivers notifications in subscription order.
type Listeners struct {
	mu     sync.Mutex
	nextID uint64
	items  map[uint64]Listener
}

// Add registers listener and returns its unsubscribe function. Calling the
// returned function more than once is harmless.
func (l *Listeners) Add(listener Listener) func() {
	if listener == nil {
		return func() {}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.items == nil {
		l.items = make(map[uint64]Listener)
	}
	id := l.nextID
	l.nextID++
	l.items[id] = listener
	return func() {
		l.mu.Lock()
		delete(l.items, id)
		l.mu.Unlock()
	}
}

// Len returns the number of registered listeners.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Notify calls every listener with its own copy of next. It must not be
// called while holding the owner's lock.
func (l *Listeners) Notify(next Snapshot, reason ChangeReason) {
	l.mu.Lock()
	ids := make([]uint64, 0, len(l.items))
	for id := range l.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, l.items[id])
	}
	l.mu.Unlock()

	for _, listener := range listeners {
		listener(next.Clone(), reason)
	}
}
