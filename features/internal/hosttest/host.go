// Package hosttest provides an in-process grid.Host for feature tests.
package hosttest

import (
	"context"
	"sync"
	"time"

	grid "github.com/goliatone/go-grid"
)

// Host records what features report. Go runs functions synchronously.
type Host struct {
	Adapter grid.StateAdapter

	mu          sync.Mutex
	notices     grid.Notices
	logged      []grid.LogEvent
	invalidated int
	observed    []string
}

var _ grid.Host = (*Host)(nil)

// New returns a host over a memory adapter seeded with initial.
func New(initial grid.Snapshot) *Host {
	return &Host{Adapter: grid.NewMemoryAdapter(initial)}
}

func (h *Host) Snapshot() grid.Snapshot { return h.Adapter.Snapshot() }

func (h *Host) SetSnapshot(next grid.Snapshot, reason grid.ChangeReason) {
	h.Adapter.SetSnapshot(next, reason)
}

func (h *Host) Invalidate() {
	h.mu.Lock()
	h.invalidated++
	h.mu.Unlock()
}

func (h *Host) Report(notice grid.Notice) grid.Notice {
	return h.notices.Add(notice)
}

func (h *Host) Dismiss(id string) bool { return h.notices.Dismiss(id) }

func (h *Host) Go(fn func(ctx context.Context)) { fn(context.Background()) }

func (h *Host) Logger() grid.Logger {
	return grid.LoggerFunc(func(event grid.LogEvent) {
		h.mu.Lock()
		h.logged = append(h.logged, event)
		h.mu.Unlock()
	})
}

func (h *Host) Metrics() grid.MetricsRecorder {
	return grid.MetricsRecorderFunc(func(_ context.Context, op string, _ bool, _ time.Duration) {
		h.mu.Lock()
		h.observed = append(h.observed, op)
		h.mu.Unlock()
	})
}

func (h *Host) Now() time.Time { return time.Now() }

// Notices returns the active notices.
func (h *Host) Notices() []grid.Notice { return h.notices.List() }

// Logged returns the logged events.
func (h *Host) Logged() []grid.LogEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]grid.LogEvent(nil), h.logged...)
}

// Observed returns the recorded metric operations.
func (h *Host) Observed() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.observed...)
}

// Invalidations returns how often Invalidate was called.
func (h *Host) Invalidations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.invalidated
}
