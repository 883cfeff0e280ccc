// Package analytics emits activity events for grid interactions by
// decorating the composed actions. Register it after the features whose
// actions it should observe.
package analytics

import (
	"context"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/pkg/activity"
)

// Name is the feature name.
const Name = "analytics"

// Identity attributes events to a user.
type Identity struct {
	ActorID  string
	UserID   string
	TenantID string
}

// Options configures the feature.
type Options struct {
	Disabled bool
	// Table names the grid in every event.
	Table   string
	Hooks   activity.Hooks
	Channel string
	// Verbs limits the emitted verbs. Empty emits all of them.
	Verbs []string
	// Identity resolves the acting user per event.
	Identity func(ctx context.Context) Identity
}

// Feature is the analytics feature.
type Feature[T any] struct {
	opts    Options
	emitter *activity.Emitter
	host    grid.Host
}

var (
	_ grid.Feature[struct{}] = (*Feature[struct{}])(nil)
	_ grid.Attacher          = (*Feature[struct{}])(nil)
)

// New builds the analytics feature.
func New[T any](opts Options) *Feature[T] {
	return &Feature[T]{
		opts:    opts,
		emitter: activity.NewEmitter(opts.Hooks, activity.Config{
			Enabled: true,
			Channel: opts.Channel,
			Verbs:   opts.Verbs,
		}),
	}
}

// Name implements grid.Feature.
func (f *Feature[T]) Name() string { return Name }

// Enabled implements grid.Feature.
func (f *Feature[T]) Enabled() bool { return !f.opts.Disabled && f.emitter.Enabled() }

// Attach implements grid.Attacher.
func (f *Feature[T]) Attach(host grid.Host) { f.host = host }

// emit sends one event on a tracked goroutine. Hook failures are logged.
func (f *Feature[T]) emit(verb string, input activity.GridEventInput) {
	if !f.emitter.Emits(verb) {
		return
	}
	input.Table = f.opts.Table
	run := func(ctx context.Context) {
		if f.opts.Identity != nil {
			identity := f.opts.Identity(ctx)
			input.ActorID, input.UserID, input.TenantID = identity.ActorID, identity.UserID, identity.TenantID
		}
		if f.host != nil {
			input.OccurredAt = f.host.Now()
		}
		err := f.emitter.Emit(ctx, activity.BuildGridEvent(verb, input))
		if err != nil && f.host != nil {
			f.host.Logger().Log(grid.LogEvent{Component: Name, Operation: "emit", Key: verb, Err: err})
		}
	}
	if f.host == nil {
		run(context.Background())
		return
	}
	f.host.Go(run)
}

// Runtime implements grid.Feature.
func (f *Feature[T]) Runtime(ctx grid.FeatureContext[T]) grid.Runtime[T] {
	if !f.Enabled() {
		return grid.Runtime[T]{}
	}
	snapshot := ctx.Snapshot
	var total any
	if ctx.Total != nil {
		total = *ctx.Total
	}
	fingerprint := snapshot.Fingerprint()
	input := func(target string, old, next any) activity.GridEventInput {
		return activity.GridEventInput{Target: target, OldValue: old, NewValue: next, Fingerprint: fingerprint}
	}

	return grid.Runtime[T]{
		PatchActions: func(acc grid.Actions) grid.Actions {
			var out grid.Actions
			if next := acc.SetPage; next != nil {
				out.SetPage = func(page int) {
					next(page)
					f.emit(activity.VerbPageChanged, input("", snapshot.Page, page))
				}
			}
			if next := acc.SetPageSize; next != nil {
				out.SetPageSize = func(size int) {
					next(size)
					f.emit(activity.VerbPageSizeChanged, input("", snapshot.Size, size))
				}
			}
			if next := acc.SetSort; next != nil {
				out.SetSort = func(rules []grid.SortRule) {
					next(rules)
					f.emit(activity.VerbSortChanged, input("", grid.EncodeSort(snapshot.Sort), grid.EncodeSort(rules)))
				}
			}
			if next := acc.SetFilters; next != nil {
				out.SetFilters = func(filters grid.Filters) {
					next(filters)
					f.emit(activity.VerbFiltersChanged, input("", map[string]any(grid.CompactFilters(snapshot.Filters)), map[string]any(grid.CompactFilters(filters))))
				}
			}
			if next := acc.SetFilter; next != nil {
				out.SetFilter = func(key string, value any) {
					next(key, value)
					f.emit(activity.VerbFiltersChanged, input(key, snapshot.Filters[key], value))
				}
			}
			if next := acc.ResetAll; next != nil {
				out.ResetAll = func() {
					next()
					f.emit(activity.VerbReset, input("", nil, nil))
				}
			}
			if next := acc.Refetch; next != nil {
				out.Refetch = func() {
					next()
					f.emit(activity.VerbRefetchRequested, input("", nil, nil))
				}
			}
			if next := acc.DismissNotice; next != nil {
				out.DismissNotice = func(id string) {
					next(id)
					f.emit(activity.VerbNoticeDismissed, input(id, nil, nil))
				}
			}
			if next := acc.ToggleRow; next != nil {
				out.ToggleRow = func(id string) {
					next(id)
					f.emit(activity.VerbRowSelected, input(id, nil, nil))
				}
			}
			if next := acc.SetRowSelected; next != nil {
				out.SetRowSelected = func(id string, selected bool) {
					next(id, selected)
					f.emit(activity.VerbRowSelected, input(id, nil, selected))
				}
			}
			if next := acc.SelectAllCurrentPage; next != nil {
				out.SelectAllCurrentPage = func() {
					next()
					f.emit(activity.VerbPageSelected, input("", nil, snapshot.Page))
				}
			}
			if next := acc.SelectAllMatching; next != nil {
				out.SelectAllMatching = func(c context.Context) error {
					if err := next(c); err != nil {
						return err
					}
					f.emit(activity.VerbAllSelected, input("", nil, total))
					return nil
				}
			}
			if next := acc.ClearSelection; next != nil {
				out.ClearSelection = func() {
					next()
					f.emit(activity.VerbSelectionCleared, input("", nil, nil))
				}
			}
			if next := acc.SetColumnVisibility; next != nil {
				out.SetColumnVisibility = func(id string, visible bool) {
					next(id, visible)
					f.emit(activity.VerbColumnVisibility, input(id, nil, visible))
				}
			}
			if next := acc.SetColumnSize; next != nil {
				out.SetColumnSize = func(id string, size int) {
					next(id, size)
					f.emit(activity.VerbColumnResized, input(id, nil, size))
				}
			}
			if next := acc.SetDensity; next != nil {
				out.SetDensity = func(density grid.Density) {
					next(density)
					f.emit(activity.VerbDensityChanged, input("", nil, string(density)))
				}
			}
			if next := acc.ExpandRow; next != nil {
				out.ExpandRow = func(c context.Context, id string) error {
					if err := next(c, id); err != nil {
						return err
					}
					f.emit(activity.VerbRowExpanded, input(id, nil, true))
					return nil
				}
			}
			if next := acc.MoveRow; next != nil {
				out.MoveRow = func(c context.Context, move grid.RowMove) error {
					if err := next(c, move); err != nil {
						return err
					}
					f.emit(activity.VerbRowMoved, input(move.ActiveID, nil, move.OverID))
					return nil
				}
			}
			return out
		},
	}
}
