// Package selection provides the row selection feature. Cross-page
// selection is kept as an include set or, after "select all matching", as an
// exclusion set against the current filters, so every matching row can be
// selected without loading them.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	grid "github.com/goliatone/go-grid"
)

// Name is the feature name.
const Name = "selection"

// Notice codes reported by the feature.
const (
	CodeCapExceeded = "cap_exceeded"
	CodeFetchFailed = "fetch_failed"
	CodeTotalDrift  = "total_drift"
)

var (
	// ErrSelectionCapExceeded is returned when selecting all matching rows
	// would exceed MaxSelection.
	ErrSelectionCapExceeded = errors.New("selection: selection cap exceeded")
	// ErrNotCrossPage is returned by SelectAllMatching outside cross-page mode.
	ErrNotCrossPage = errors.New("selection: select all matching requires cross-page mode")
	// ErrNoFetcher is returned by the server strategy without FetchAllIDs.
	ErrNoFetcher = errors.New("selection: server strategy requires FetchAllIDs")
)

// Strategy selects how "select all matching" resolves.
type Strategy string

const (
	// StrategyClient flips to exclude mode without loading ids.
	StrategyClient Strategy = "client"
	// StrategyServer loads every matching id through FetchAllIDs.
	StrategyServer Strategy = "server"
)

// FetchAllIDs returns the id of every row matching filters.
type FetchAllIDs func(ctx context.Context, filters grid.Filters) ([]string, error)

// Hierarchy is implemented by the tree feature. When CascadeSelection
// reports true, selecting a row also selects its loaded descendants.
type Hierarchy interface {
	CascadeSelection() bool
	Descendants(id string) []string
}

// ChildLoader is implemented by hierarchies that load children lazily.
// Children loaded under a row inherit its selection when cascading.
type ChildLoader interface {
	OnChildrenLoaded(fn func(parent string, ids []string)) func()
}

// Options configures the feature.
type Options struct {
	// Mode defaults to page-scoped selection.
	Mode     grid.SelectionMode
	Strategy Strategy
	// MaxSelection caps "select all matching". Zero means no cap.
	MaxSelection int
	FetchAllIDs  FetchAllIDs
	Hierarchy    Hierarchy
	// KeepOnFilterChange keeps a cross-page selection when filters change.
	KeepOnFilterChange bool
	// SingleRow allows at most one selected row.
	SingleRow bool
}

type mode string

const (
	modeInclude mode = "include"
	modeExclude mode = "exclude"
)

// Feature is the selection feature.
type Feature[T any] struct {
	opts Options

	mu          sync.Mutex
	host        grid.Host
	mode        mode
	ids         map[string]struct{}
	fetching    bool
	total       *int
	driftNotice string
}

var (
	_ grid.Feature[struct{}]      = (*Feature[struct{}])(nil)
	_ grid.Attacher               = (*Feature[struct{}])(nil)
	_ grid.SnapshotObserver       = (*Feature[struct{}])(nil)
	_ grid.DataObserver[struct{}] = (*Feature[struct{}])(nil)
)

// New builds the selection feature.
func New[T any](opts Options) *Feature[T] {
	if opts.Mode == "" {
		opts.Mode = grid.SelectionPage
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyClient
	}
	f := &Feature[T]{opts: opts, mode: modeInclude, ids: map[string]struct{}{}}
	if loader, ok := opts.Hierarchy.(ChildLoader); ok {
		loader.OnChildrenLoaded(f.childrenLoaded)
	}
	return f
}

// childrenLoaded gives ids the selection state of parent.
func (f *Feature[T]) childrenLoaded(parent string, ids []string) {
	if f.opts.SingleRow || !f.opts.Hierarchy.CascadeSelection() {
		return
	}
	f.mu.Lock()
	selected := f.isSelected(parent)
	changed := false
	for _, id := range ids {
		if f.isSelected(id) == selected {
			continue
		}
		changed = true
		if (f.mode == modeInclude) == selected {
			f.ids[id] = struct{}{}
		} else {
			delete(f.ids, id)
		}
	}
	f.mu.Unlock()
	if changed {
		f.invalidate()
	}
}

// Name implements grid.Feature.
func (f *Feature[T]) Name() string { return Name }

// Enabled implements grid.Feature.
func (f *Feature[T]) Enabled() bool { return f.opts.Mode != grid.SelectionDisabled }

// Attach implements grid.Attacher.
func (f *Feature[T]) Attach(host grid.Host) {
	f.mu.Lock()
	f.host = host
	f.mu.Unlock()
}

// SelectAllCurrentPage unions pageIDs into the selection. In exclude mode
// the ids leave the exclusion set instead.
func (f *Feature[T]) SelectAllCurrentPage(pageIDs []string) {
	f.mu.Lock()
	for _, id := range f.expand(pageIDs) {
		if f.mode == modeExclude {
			delete(f.ids, id)
		} else {
			f.ids[id] = struct{}{}
		}
	}
	f.mu.Unlock()
	f.invalidate()
}

// SelectAllMatching selects every row matching the current filters. total
// is the row count last reported by the data source.
func (f *Feature[T]) SelectAllMatching(ctx context.Context, total *int) error {
	if f.opts.Mode != grid.SelectionCrossPage {
		return ErrNotCrossPage
	}
	if f.opts.Strategy == StrategyServer {
		return f.selectAllFromServer(ctx)
	}

	if f.opts.MaxSelection > 0 && (total == nil || *total > f.opts.MaxSelection) {
		return f.refuse(total)
	}
	f.mu.Lock()
	f.mode = modeExclude
	f.ids = map[string]struct{}{}
	f.total = copyInt(total)
	f.mu.Unlock()
	f.invalidate()
	return nil
}

func (f *Feature[T]) selectAllFromServer(ctx context.Context) error {
	if f.opts.FetchAllIDs == nil {
		return ErrNoFetcher
	}
	f.mu.Lock()
	if f.fetching {
		f.mu.Unlock()
		return nil
	}
	f.fetching = true
	host := f.host
	f.mu.Unlock()
	f.invalidate()

	var filters grid.Filters
	if host != nil {
		filters = host.Snapshot().Filters
	}
	captured := grid.FiltersFingerprint(filters)

	start := time.Now()
	ids, err := f.opts.FetchAllIDs(ctx, grid.CompactFilters(filters))
	if host != nil {
		host.Metrics().Observe(ctx, "selection.fetch_all_ids", err == nil, time.Since(start))
	}

	f.mu.Lock()
	f.fetching = false
	f.mu.Unlock()

	if host != nil && grid.FiltersFingerprint(host.Snapshot().Filters) != captured {
		host.Logger().Log(grid.LogEvent{Component: Name, Operation: "fetch_all_ids.discard", Err: grid.ErrStaleResult})
		f.invalidate()
		return fmt.Errorf("selection: fetch all ids: %w", grid.ErrStaleResult)
	}
	if err != nil {
		err = fmt.Errorf("selection: fetch all ids: %w", err)
		f.report(grid.NewNotice(Name, CodeFetchFailed, "matching rows could not be selected", err))
		return err
	}
	if f.opts.MaxSelection > 0 && len(ids) > f.opts.MaxSelection {
		count := len(ids)
		return f.refuse(&count)
	}

	f.mu.Lock()
	f.mode = modeInclude
	f.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		f.ids[id] = struct{}{}
	}
	f.mu.Unlock()
	f.invalidate()
	return nil
}

func (f *Feature[T]) refuse(total *int) error {
	err := fmt.Errorf("%w: %s matching rows, cap %d", ErrSelectionCapExceeded, describeTotal(total), f.opts.MaxSelection)
	notice := grid.NewNotice(Name, CodeCapExceeded,
		fmt.Sprintf("at most %d rows can be selected", f.opts.MaxSelection), err)
	notice.Fields = map[string]any{"max": f.opts.MaxSelection}
	if total != nil {
		notice.Fields["total"] = *total
	}
	f.report(notice)
	return err
}

// Toggle flips one row. Cascading hierarchies flip the loaded descendants
// along with it.
func (f *Feature[T]) Toggle(id string) {
	f.mu.Lock()
	selected := f.isSelected(id)
	f.mu.Unlock()
	f.SetSelected(id, !selected)
}

// SetSelected selects or deselects one row. In exclude mode deselecting adds
// the row to the exclusion set; the mode never flips.
func (f *Feature[T]) SetSelected(id string, selected bool) {
	if id == "" {
		return
	}
	f.mu.Lock()
	if f.opts.SingleRow && selected {
		f.mode = modeInclude
		f.ids = map[string]struct{}{id: {}}
		f.mu.Unlock()
		f.invalidate()
		return
	}
	for _, target := range f.expand([]string{id}) {
		inSet := (f.mode == modeInclude) == selected
		if inSet {
			f.ids[target] = struct{}{}
		} else {
			delete(f.ids, target)
		}
	}
	f.mu.Unlock()
	f.invalidate()
}

// Clear resets the selection to an empty id set.
func (f *Feature[T]) Clear() {
	f.mu.Lock()
	f.clearLocked()
	f.mu.Unlock()
	f.invalidate()
}

func (f *Feature[T]) clearLocked() {
	f.mode = modeInclude
	f.ids = map[string]struct{}{}
	f.total = nil
}

// Scope returns the selection scope.
func (f *Feature[T]) Scope() grid.SelectionScope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scopeLocked()
}

func (f *Feature[T]) scopeLocked() grid.SelectionScope {
	ids := sortedKeys(f.ids)
	if f.mode == modeExclude {
		return grid.SelectionScope{Type: grid.ScopeAll, ExcludedRowIDs: ids}
	}
	return grid.SelectionScope{Type: grid.ScopeIDs, RowIDs: ids}
}

// IsSelected reports whether id is selected.
func (f *Feature[T]) IsSelected(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isSelected(id)
}

func (f *Feature[T]) isSelected(id string) bool {
	_, inSet := f.ids[id]
	if f.mode == modeExclude {
		return !inSet
	}
	return inSet
}

// View derives the read model for the current page.
func (f *Feature[T]) View(pageIDs []string, total *int) grid.SelectionView {
	f.mu.Lock()
	defer f.mu.Unlock()

	view := grid.SelectionView{
		Mode:     f.opts.Mode,
		Scope:    f.scopeLocked(),
		Fetching: f.fetching,
	}
	if f.mode == modeExclude {
		selected := make([]string, 0, len(pageIDs))
		for _, id := range pageIDs {
			if _, excluded := f.ids[id]; !excluded {
				selected = append(selected, id)
			}
		}
		view.SelectedRowIDs = selected
		view.TotalSelected = grid.SelectionCount{All: true}
		if total != nil {
			view.TotalSelected.N = max(*total-len(f.ids), 0)
		}
		view.IsAllSelected = len(f.ids) == 0
		return view
	}
	view.SelectedRowIDs = sortedKeys(f.ids)
	view.TotalSelected = grid.SelectionCount{N: len(f.ids)}
	return view
}

// SnapshotChanged implements grid.SnapshotObserver. Page-scoped selection
// clears on any change; cross-page selection survives paging and clears
// when the filters change unless KeepOnFilterChange is set.
func (f *Feature[T]) SnapshotChanged(prev, next grid.Snapshot, reason grid.ChangeReason) {
	reset := false
	switch f.opts.Mode {
	case grid.SelectionPage:
		reset = prev.Fingerprint() != next.Fingerprint()
	case grid.SelectionCrossPage:
		reset = reason == grid.ReasonReset ||
			(!f.opts.KeepOnFilterChange && prev.FiltersFingerprint() != next.FiltersFingerprint())
	}
	if !reset {
		return
	}
	f.mu.Lock()
	f.clearLocked()
	f.mu.Unlock()
}

// DataChanged implements grid.DataObserver. A total that moves while every
// matching row is selected is reported once per change; the exclusion
// semantics stay as they are.
func (f *Feature[T]) DataChanged(_ grid.Snapshot, result grid.DataResult[T]) {
	f.mu.Lock()
	if f.mode != modeExclude || result.Total == nil {
		f.mu.Unlock()
		return
	}
	if f.total == nil {
		f.total = copyInt(result.Total)
		f.mu.Unlock()
		return
	}
	previous := *f.total
	current := *result.Total
	if previous == current {
		f.mu.Unlock()
		return
	}
	f.total = copyInt(result.Total)
	stale := f.driftNotice
	host := f.host
	f.mu.Unlock()

	if host == nil {
		return
	}
	if stale != "" {
		host.Dismiss(stale)
	}
	notice := grid.NewNotice(Name, CodeTotalDrift,
		fmt.Sprintf("matching rows changed from %d to %d while all were selected", previous, current), nil)
	notice.Fields = map[string]any{"previous": previous, "current": current}
	notice = host.Report(notice)
	f.mu.Lock()
	f.driftNotice = notice.ID
	f.mu.Unlock()
}

// Runtime implements grid.Feature.
func (f *Feature[T]) Runtime(ctx grid.FeatureContext[T]) grid.Runtime[T] {
	if !f.Enabled() {
		return grid.Runtime[T]{}
	}
	pageIDs := ctx.RowIDs()
	total := copyInt(ctx.Total)
	view := f.View(pageIDs, total)

	rowSelection := make(map[string]bool, len(pageIDs))
	for _, id := range pageIDs {
		if f.IsSelected(id) {
			rowSelection[id] = true
		}
	}

	return grid.Runtime[T]{
		PatchTableOptions: func(grid.TableOptions[T]) grid.TableOptions[T] {
			return grid.TableOptions[T]{
				EnableRowSelection:      grid.Bool(true),
				EnableMultiRowSelection: grid.Bool(!f.opts.SingleRow),
				State:                   grid.RowSelectionState.Patch(rowSelection),
			}
		},
		PatchActions: func(grid.Actions) grid.Actions {
			actions := grid.Actions{
				ToggleRow:            f.Toggle,
				SetRowSelected:       f.SetSelected,
				SelectAllCurrentPage: func() { f.SelectAllCurrentPage(pageIDs) },
				ClearSelection:       f.Clear,
			}
			if f.opts.Mode == grid.SelectionCrossPage {
				actions.SelectAllMatching = func(c context.Context) error {
					return f.SelectAllMatching(c, total)
				}
			}
			return actions
		},
		PatchActivity: func(a grid.Activity) grid.Activity {
			if view.Fetching {
				return a.WithBusy(Name)
			}
			return a
		},
		PatchMeta: func(grid.Slots) grid.Slots {
			return grid.SelectionKey.Patch(view)
		},
		OnReset: func() {
			f.mu.Lock()
			f.clearLocked()
			f.mu.Unlock()
		},
	}
}

// expand adds cascaded descendants. Callers hold f.mu.
func (f *Feature[T]) expand(ids []string) []string {
	hierarchy := f.opts.Hierarchy
	if hierarchy == nil || !hierarchy.CascadeSelection() {
		return ids
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		for _, target := range append([]string{id}, hierarchy.Descendants(id)...) {
			if !seen[target] {
				seen[target] = true
				out = append(out, target)
			}
		}
	}
	return out
}

func (f *Feature[T]) report(notice grid.Notice) {
	f.mu.Lock()
	host := f.host
	f.mu.Unlock()
	if host != nil {
		host.Report(notice)
	}
}

func (f *Feature[T]) invalidate() {
	f.mu.Lock()
	host := f.host
	f.mu.Unlock()
	if host != nil {
		host.Invalidate()
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func describeTotal(total *int) string {
	if total == nil {
		return "unknown"
	}
	return fmt.Sprint(*total)
}
