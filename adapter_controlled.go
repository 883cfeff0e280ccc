package grid

import "sync"

// ChangeHandler receives the snapshot a controlled adapter wants to commit.
type ChangeHandler func(next Snapshot, reason ChangeReason)

// ControlledAdapter mirrors a snapshot owned by someone else. SetSnapshot
// only forwards the request to the owner; the value reported by Snapshot is
// whatever the owner last pushed through Update.
type ControlledAdapter struct {
	mu        sync.RWMutex
	value     Snapshot
	onChange  ChangeHandler
	policy    PagePolicy
	listeners Listeners
}

var _ StateAdapter = (*ControlledAdapter)(nil)

// NewControlledAdapter wraps an externally owned snapshot.
func NewControlledAdapter(value Snapshot, onChange ChangeHandler, opts ...AdapterOption) *ControlledAdapter {
	cfg := applyAdapterOptions(opts)
	return &ControlledAdapter{
		value:    value.Normalize(),
		onChange: onChange,
		policy:   cfg.policy,
	}
}

// Snapshot returns the latest externally supplied value.
func (a *ControlledAdapter) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value.Clone()
}

// SetSnapshot applies the page policy and hands the result to the owner.
func (a *ControlledAdapter) SetSnapshot(next Snapshot, reason ChangeReason) {
	a.mu.RLock()
	prev := a.value
	onChange := a.onChange
	a.mu.RUnlock()

	candidate := a.policy.Apply(prev, next.Clone(), reason).Normalize()
	if candidate.Fingerprint() == prev.Fingerprint() {
		return
	}
	if onChange != nil {
		onChange(candidate, reason)
	}
}

// Update records a new value from the owner and notifies listeners when it
// differs from the previous one. reason is forwarded as-is.
func (a *ControlledAdapter) Update(value Snapshot, reason ChangeReason) {
	value = value.Normalize()
	a.mu.Lock()
	if value.Fingerprint() == a.value.Fingerprint() {
		a.mu.Unlock()
		return
	}
	a.value = value
	a.mu.Unlock()

	a.listeners.Notify(value, reason)
}

// Subscribe registers listener for value updates.
func (a *ControlledAdapter) Subscribe(listener Listener) func() {
	return a.listeners.Add(listener)
}
