package grid

import (
	"context"
	"time"
)

// Feature is an optional capability folded into the table. Disabled features
// are skipped by the engine and return an empty Runtime when asked anyway.
type Feature[T any] interface {
	Name() string
	Enabled() bool
	Runtime(ctx FeatureContext[T]) Runtime[T]
}

// Runtime is the patch bundle one feature contributes. Patches must be pure:
// applying them again to the same input yields the same output.
type Runtime[T any] struct {
	// PatchTableOptions receives the accumulated options and returns only
	// the fields the feature sets.
	PatchTableOptions func(TableOptions[T]) TableOptions[T]
	// PatchActions receives the already-patched actions and returns only
	// the actions the feature overrides.
	PatchActions func(Actions) Actions
	// PatchActivity maps the current activity to the next one.
	PatchActivity func(Activity) Activity
	// PatchMeta returns slot entries to merge into the table meta.
	PatchMeta func(Slots) Slots
	// OnReset runs before the adapter is reset to the initial snapshot.
	OnReset func()
}

// FeatureContext is the ambient state handed to every feature runtime.
type FeatureContext[T any] struct {
	Rows      []T
	Snapshot  Snapshot
	Total     *int
	PageCount int
	Status    Status
	RowID     func(T) string
	Columns   []Column
	Host      Host
}

// RowIDs returns the ids of the current page rows.
func (c FeatureContext[T]) RowIDs() []string {
	ids := make([]string, 0, len(c.Rows))
	if c.RowID == nil {
		return ids
	}
	for _, row := range c.Rows {
		ids = append(ids, c.RowID(row))
	}
	return ids
}

// Host is the engine surface available to features.
type Host interface {
	// Snapshot returns the adapter's current snapshot.
	Snapshot() Snapshot
	// SetSnapshot forwards a change to the state adapter.
	SetSnapshot(next Snapshot, reason ChangeReason)
	// Invalidate asks the engine to recompose the table.
	Invalidate()
	// Report records a notice; Source defaults to the feature name.
	Report(notice Notice) Notice
	// Dismiss removes a notice by id.
	Dismiss(id string) bool
	// Go runs fn on a goroutine tracked by Engine.Wait.
	Go(fn func(ctx context.Context))
	Logger() Logger
	Metrics() MetricsRecorder
	Now() time.Time
}

// Attacher is implemented by features that keep a Host. Attach runs once
// from New.
type Attacher interface {
	Attach(host Host)
}

// Initializer is implemented by features with startup work such as loading
// preferences. Init runs on a tracked goroutine from Start.
type Initializer interface {
	Init(ctx context.Context) error
}

// SnapshotObserver is told about every committed snapshot change.
type SnapshotObserver interface {
	SnapshotChanged(prev, next Snapshot, reason ChangeReason)
}

// DataObserver is told about every accepted data result.
type DataObserver[T any] interface {
	DataChanged(snapshot Snapshot, result DataResult[T])
}

// Disposer releases feature resources when the engine closes.
type Disposer interface {
	Dispose()
}

// FeatureFunc builds a Feature from plain functions; handy for tests and
// small app-specific patches.
type FeatureFunc[T any] struct {
	FeatureName string
	Disabled    bool
	Build       func(ctx FeatureContext[T]) Runtime[T]
}

// Name implements Feature.
func (f FeatureFunc[T]) Name() string { return f.FeatureName }

// Enabled implements Feature.
func (f FeatureFunc[T]) Enabled() bool { return !f.Disabled }

// Runtime implements Feature.
func (f FeatureFunc[T]) Runtime(ctx FeatureContext[T]) Runtime[T] {
	if f.Disabled || f.Build == nil {
		return Runtime[T]{}
	}
	return f.Build(ctx)
}
