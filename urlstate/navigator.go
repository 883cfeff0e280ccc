package urlstate

import (
	"net/url"
	"sync"
)

// MemoryNavigator is an in-process history stack, useful for tests and
// server-side rendering.
type MemoryNavigator struct {
	mu      sync.Mutex
	entries []url.Values
	index   int
	pushes  int
	replace int
}

var _ Navigator = (*MemoryNavigator)(nil)

// NewMemoryNavigator starts the history at initial.
func NewMemoryNavigator(initial url.Values) *MemoryNavigator {
	return &MemoryNavigator{entries: []url.Values{cloneValues(initial)}}
}

// Query returns the current entry.
func (n *MemoryNavigator) Query() url.Values {
	n.mu.Lock()
	defer n.mu.Unlock()
	return cloneValues(n.entries[n.index])
}

// Push appends an entry, dropping any forward history.
func (n *MemoryNavigator) Push(values url.Values) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries[:n.index+1], cloneValues(values))
	n.index++
	n.pushes++
}

// Replace overwrites the current entry.
func (n *MemoryNavigator) Replace(values url.Values) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries[n.index] = cloneValues(values)
	n.replace++
}

// Back moves one entry back. It reports false at the start of history.
func (n *MemoryNavigator) Back() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.index == 0 {
		return false
	}
	n.index--
	return true
}

// Forward moves one entry forward. It reports false at the end of history.
func (n *MemoryNavigator) Forward() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.index >= len(n.entries)-1 {
		return false
	}
	n.index++
	return true
}

// Len returns the number of history entries.
func (n *MemoryNavigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

// Counts returns how many pushes and replaces were performed.
func (n *MemoryNavigator) Counts() (pushes, replaces int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pushes, n.replace
}

// String renders the current entry as an encoded query.
func (n *MemoryNavigator) String() string {
	return n.Query().Encode()
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, list := range values {
		out[key] = append([]string(nil), list...)
	}
	return out
}
