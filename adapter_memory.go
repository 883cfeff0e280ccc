package grid

import "sync"

// MemoryAdapter keeps the snapshot inside the adapter itself.
type MemoryAdapter struct {
	mu        sync.RWMutex
	current   Snapshot
	policy    PagePolicy
	listeners Listeners
}

var _ StateAdapter = (*MemoryAdapter)(nil)

// NewMemoryAdapter constructs an adapter seeded with initial.
func NewMemoryAdapter(initial Snapshot, opts ...AdapterOption) *MemoryAdapter {
	cfg := applyAdapterOptions(opts)
	return &MemoryAdapter{
		current: initial.Normalize(),
		policy:  cfg.policy,
	}
}

// Snapshot returns a copy of the current snapshot.
func (a *MemoryAdapter) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current.Clone()
}

// SetSnapshot replaces the snapshot after applying the page policy.
func (a *MemoryAdapter) SetSnapshot(next Snapshot, reason ChangeReason) {
	a.mu.Lock()
	prev := a.current
	candidate := a.policy.Apply(prev, next.Clone(), reason).Normalize()
	if candidate.Fingerprint() == prev.Fingerprint() {
		a.mu.Unlock()
		return
	}
	a.current = candidate
	a.mu.Unlock()

	a.listeners.Notify(candidate, reason)
}

// Subscribe registers listener for future replacements.
func (a *MemoryAdapter) Subscribe(listener Listener) func() {
	return a.listeners.Add(listener)
}
