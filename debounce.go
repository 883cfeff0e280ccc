package grid

import (
	"strings"
	"sync"
	"time"
)

// Debouncer collapses rapid pushes into one trailing-edge commit. Flush
// commits the pending value immediately; after Cancel nothing is committed
// again.
type Debouncer[V any] struct {
	delay  time.Duration
	commit func(V)

	mu        sync.Mutex
	timer     *time.Timer
	pending   V
	hasValue  bool
	cancelled bool
	seq       uint64
}

// NewDebouncer returns a debouncer calling commit delay after the last Push.
func NewDebouncer[V any](delay time.Duration, commit func(V)) *Debouncer[V] {
	return &Debouncer[V]{delay: delay, commit: commit}
}

// Push records value and restarts the delay.
func (d *Debouncer[V]) Push(value V) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelled {
		return
	}
	d.pending = value
	d.hasValue = true
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Flush commits the pending value now, if any. It reports whether a value
// was committed.
func (d *Debouncer[V]) Flush() bool {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancelled || !d.hasValue {
		d.mu.Unlock()
		return false
	}
	value := d.take()
	d.mu.Unlock()

	d.run(value)
	return true
}

// Cancel drops the pending value and disables the debouncer.
func (d *Debouncer[V]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelled = true
	d.hasValue = false
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a value is waiting to be committed.
func (d *Debouncer[V]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasValue && !d.cancelled
}

func (d *Debouncer[V]) fire(seq uint64) {
	d.mu.Lock()
	if d.cancelled || !d.hasValue || seq != d.seq {
		d.mu.Unlock()
		return
	}
	value := d.take()
	d.timer = nil
	d.mu.Unlock()

	d.run(value)
}

func (d *Debouncer[V]) take() V {
	value := d.pending
	var zero V
	d.pending = zero
	d.hasValue = false
	d.seq++
	return value
}

func (d *Debouncer[V]) run(value V) {
	if d.commit != nil {
		d.commit(value)
	}
}

// SearchBinding debounces a text input into one filter of an adapter.
type SearchBinding struct {
	adapter   StateAdapter
	key       string
	debouncer *Debouncer[string]
}

// NewSearchBinding commits typed text into filters[key] with reason
// filters after delay of inactivity.
func NewSearchBinding(adapter StateAdapter, key string, delay time.Duration) *SearchBinding {
	b := &SearchBinding{adapter: adapter, key: key}
	b.debouncer = NewDebouncer(delay, b.apply)
	return b
}

// Input records a keystroke.
func (b *SearchBinding) Input(text string) {
	b.debouncer.Push(text)
}

// Commit flushes the pending text, as on Enter.
func (b *SearchBinding) Commit() bool {
	return b.debouncer.Flush()
}

// Close cancels any pending commit.
func (b *SearchBinding) Close() {
	b.debouncer.Cancel()
}

func (b *SearchBinding) apply(text string) {
	current := b.adapter.Snapshot()
	b.adapter.SetSnapshot(current.WithFilter(b.key, strings.TrimSpace(text)), ReasonFilters)
}
