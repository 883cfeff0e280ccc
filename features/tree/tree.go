// Package tree provides hierarchical rows: expansion state, lazily loaded
// children and the hierarchy capabilities the selection and drag-sort
// features query.
package tree

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	grid "github.com/goliatone/go-grid"
)

// Name is the feature name.
const Name = "tree"

// CodeLoadFailed is the notice code for failed child loads.
const CodeLoadFailed = "load_failed"

// DefaultIndentSize is the indent per level in pixels.
const DefaultIndentSize = 16

// LoadChildren fetches the children of one row.
type LoadChildren[T any] func(ctx context.Context, id string) ([]T, error)

// Options configures the feature.
type Options[T any] struct {
	Disabled bool
	// RowID defaults to the engine's row id accessor.
	RowID func(T) string
	// GetSubRows reads children already present on the row.
	GetSubRows func(T) []T
	// LoadChildren fetches children on first expansion. Loaded children are
	// cached per row id. It is ignored when GetSubRows is set.
	LoadChildren LoadChildren[T]
	// ExpandAll starts with every row expanded.
	ExpandAll             bool
	DefaultExpandedRowIDs []string
	// DefaultExpandedDepth expands rows breadth first down to this depth
	// when the first page of data arrives.
	DefaultExpandedDepth int
	// Cascade makes selecting a parent select its descendants, including
	// children loaded later.
	Cascade      bool
	AllowNesting bool
	IndentSize   int
}

// Feature is the tree feature.
type Feature[T any] struct {
	opts Options[T]

	mu       sync.Mutex
	host     grid.Host
	rowID    func(T) string
	all      bool
	expanded map[string]bool
	loading  map[string]bool
	children map[string][]T
	parents  map[string]string
	kids     map[string][]string
	mounted  bool
	// generation invalidates child loads in flight across Reset.
	generation uint64
	watchers   map[uint64]func(parent string, ids []string)
	nextWatch  uint64
}

var (
	_ grid.Feature[struct{}]      = (*Feature[struct{}])(nil)
	_ grid.Attacher               = (*Feature[struct{}])(nil)
	_ grid.DataObserver[struct{}] = (*Feature[struct{}])(nil)
)

// New builds the tree feature.
func New[T any](opts Options[T]) *Feature[T] {
	if opts.IndentSize <= 0 {
		opts.IndentSize = DefaultIndentSize
	}
	f := &Feature[T]{
		opts:     opts,
		rowID:    opts.RowID,
		loading:  map[string]bool{},
		children: map[string][]T{},
		parents:  map[string]string{},
		kids:     map[string][]string{},
	}
	f.restoreLocked()
	return f
}

// Name implements grid.Feature.
func (f *Feature[T]) Name() string { return Name }

// Enabled implements grid.Feature.
func (f *Feature[T]) Enabled() bool { return !f.opts.Disabled }

// Attach implements grid.Attacher.
func (f *Feature[T]) Attach(host grid.Host) {
	f.mu.Lock()
	f.host = host
	f.mu.Unlock()
}

func (f *Feature[T]) restoreLocked() {
	f.all = f.opts.ExpandAll
	f.expanded = make(map[string]bool, len(f.opts.DefaultExpandedRowIDs))
	for _, id := range f.opts.DefaultExpandedRowIDs {
		f.expanded[id] = true
	}
}

// Expand expands id. With LoadChildren configured the first expansion loads
// the children; a second call while the load is in flight is a no-op. An
// empty result collapses the row again and a failure collapses it and
// reports a notice.
func (f *Feature[T]) Expand(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	f.mu.Lock()
	if f.loading[id] {
		f.mu.Unlock()
		return nil
	}
	_, cached := f.children[id]
	needsLoad := f.opts.LoadChildren != nil && f.opts.GetSubRows == nil && !cached
	f.setExpandedLocked(id, true)
	if needsLoad {
		f.loading[id] = true
	}
	generation := f.generation
	host := f.host
	f.mu.Unlock()
	f.invalidate()
	if !needsLoad {
		return nil
	}

	start := time.Now()
	rows, err := f.opts.LoadChildren(ctx, id)
	if host != nil {
		host.Metrics().Observe(ctx, "tree.load_children", err == nil, time.Since(start))
	}

	f.mu.Lock()
	if f.generation != generation {
		f.mu.Unlock()
		return nil
	}
	delete(f.loading, id)
	if err != nil {
		f.setExpandedLocked(id, false)
		f.mu.Unlock()
		err = fmt.Errorf("tree: load children of %q: %w", id, err)
		if host != nil {
			notice := grid.NewNotice(Name, CodeLoadFailed, "child rows could not be loaded", err)
			notice.Fields = map[string]any{"rowId": id}
			host.Report(notice)
		}
		f.invalidate()
		return err
	}
	f.children[id] = rows
	var loaded []string
	if f.rowID != nil {
		loaded = f.indexLocked(id, rows)
	}
	if len(rows) == 0 {
		f.setExpandedLocked(id, false)
	}
	watchers := make([]func(string, []string), 0, len(f.watchers))
	for _, watch := range f.watchers {
		watchers = append(watchers, watch)
	}
	f.mu.Unlock()
	if len(loaded) > 0 {
		for _, watch := range watchers {
			watch(id, loaded)
		}
	}
	f.invalidate()
	return nil
}

// OnChildrenLoaded registers fn to receive the ids of children loaded under
// parent by Expand. It returns the unsubscribe func.
func (f *Feature[T]) OnChildrenLoaded(fn func(parent string, ids []string)) func() {
	if fn == nil {
		return func() {}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchers == nil {
		f.watchers = map[uint64]func(string, []string){}
	}
	f.nextWatch++
	id := f.nextWatch
	f.watchers[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
	}
}

// Collapse collapses id.
func (f *Feature[T]) Collapse(id string) {
	f.mu.Lock()
	f.setExpandedLocked(id, false)
	f.mu.Unlock()
	f.invalidate()
}

// Toggle flips the expansion of id.
func (f *Feature[T]) Toggle(ctx context.Context, id string) error {
	if f.IsExpanded(id) {
		f.Collapse(id)
		return nil
	}
	return f.Expand(ctx, id)
}

// ExpandAll expands every row without loading children.
func (f *Feature[T]) ExpandAll() {
	f.mu.Lock()
	f.all = true
	f.expanded = map[string]bool{}
	f.mu.Unlock()
	f.invalidate()
}

// CollapseAll collapses every row.
func (f *Feature[T]) CollapseAll() {
	f.mu.Lock()
	f.all = false
	f.expanded = map[string]bool{}
	f.mu.Unlock()
	f.invalidate()
}

// Reset restores the configured initial expansion and drops loaded
// children. Loads still in flight are discarded when they settle.
func (f *Feature[T]) Reset() {
	f.mu.Lock()
	f.generation++
	f.restoreLocked()
	f.children = map[string][]T{}
	f.loading = map[string]bool{}
	f.mounted = false
	f.mu.Unlock()
}

// setExpandedLocked collapsing a row while everything is expanded turns the
// "all" state into the explicit set of known rows.
func (f *Feature[T]) setExpandedLocked(id string, expanded bool) {
	if f.all {
		if expanded {
			return
		}
		f.all = false
		f.expanded = map[string]bool{}
		for parent := range f.kids {
			f.expanded[parent] = true
		}
	}
	if expanded {
		f.expanded[id] = true
		return
	}
	delete(f.expanded, id)
}

// IsExpanded reports whether id is expanded.
func (f *Feature[T]) IsExpanded(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.all || f.expanded[id]
}

// Expanded returns the expansion state.
func (f *Feature[T]) Expanded() grid.ExpandedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expandedLocked()
}

func (f *Feature[T]) expandedLocked() grid.ExpandedState {
	if f.all {
		return grid.ExpandedState{All: true}
	}
	ids := make(map[string]bool, len(f.expanded))
	for id := range f.expanded {
		ids[id] = true
	}
	return grid.ExpandedState{IDs: ids}
}

// LoadingRowIDs returns the rows with a child load in flight, sorted.
func (f *Feature[T]) LoadingRowIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.loading)
}

// SubRows returns the children of row: the GetSubRows accessor when set,
// otherwise the children loaded for the row id.
func (f *Feature[T]) SubRows(row T) []T {
	if f.opts.GetSubRows != nil {
		return f.opts.GetSubRows(row)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rowID == nil {
		return nil
	}
	return f.children[f.rowID(row)]
}

// View returns the read model.
func (f *Feature[T]) View() grid.TreeView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return grid.TreeView{
		Expanded:      f.expandedLocked(),
		LoadingRowIDs: sortedKeys(f.loading),
		IndentSize:    f.opts.IndentSize,
		AllowNesting:  f.opts.AllowNesting,
		Cascade:       f.opts.Cascade,
	}
}

// CascadeSelection reports whether selection cascades to descendants.
func (f *Feature[T]) CascadeSelection() bool { return f.opts.Cascade }

// Descendants returns the known descendants of id, breadth first.
func (f *Feature[T]) Descendants(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	queue := append([]string(nil), f.kids[id]...)
	seen := map[string]bool{id: true}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, f.kids[next]...)
	}
	return out
}

// AllowNesting reports whether rows may be dropped inside other rows.
func (f *Feature[T]) AllowNesting() bool { return f.opts.AllowNesting }

// IndentSize returns the indent per level in pixels.
func (f *Feature[T]) IndentSize() int { return f.opts.IndentSize }

// ParentOf returns the parent of id. Top-level rows report false.
func (f *Feature[T]) ParentOf(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, ok := f.parents[id]
	return parent, ok
}

// IsDescendant reports whether id sits below ancestor.
func (f *Feature[T]) IsDescendant(ancestor, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for depth := 0; depth <= len(f.parents); depth++ {
		parent, ok := f.parents[id]
		if !ok {
			return false
		}
		if parent == ancestor {
			return true
		}
		id = parent
	}
	return false
}

// DataChanged implements grid.DataObserver. It indexes the hierarchy of the
// page and applies DefaultExpandedDepth on the first result.
func (f *Feature[T]) DataChanged(_ grid.Snapshot, result grid.DataResult[T]) {
	f.mu.Lock()
	if f.rowID == nil {
		f.mu.Unlock()
		return
	}
	for _, row := range result.Rows {
		delete(f.parents, f.rowID(row))
	}
	if f.opts.GetSubRows != nil {
		f.walkLocked(result.Rows)
	}
	if !f.mounted {
		f.mounted = true
		f.expandDepthLocked(result.Rows)
	}
	f.mu.Unlock()
	f.invalidate()
}

func (f *Feature[T]) walkLocked(rows []T) {
	for _, row := range rows {
		subRows := f.opts.GetSubRows(row)
		if len(subRows) == 0 {
			continue
		}
		f.indexLocked(f.rowID(row), subRows)
		f.walkLocked(subRows)
	}
}

func (f *Feature[T]) indexLocked(parent string, rows []T) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		id := f.rowID(row)
		f.parents[id] = parent
		ids = append(ids, id)
	}
	f.kids[parent] = ids
	return ids
}

func (f *Feature[T]) expandDepthLocked(rows []T) {
	level := rows
	for depth := 0; depth < f.opts.DefaultExpandedDepth && len(level) > 0; depth++ {
		var next []T
		for _, row := range level {
			subRows := f.subRowsLocked(row)
			if len(subRows) == 0 {
				continue
			}
			f.expanded[f.rowID(row)] = true
			next = append(next, subRows...)
		}
		level = next
	}
}

func (f *Feature[T]) subRowsLocked(row T) []T {
	if f.opts.GetSubRows != nil {
		return f.opts.GetSubRows(row)
	}
	return f.children[f.rowID(row)]
}

// Runtime implements grid.Feature.
func (f *Feature[T]) Runtime(ctx grid.FeatureContext[T]) grid.Runtime[T] {
	if !f.Enabled() {
		return grid.Runtime[T]{}
	}
	f.mu.Lock()
	if f.rowID == nil {
		f.rowID = ctx.RowID
	}
	f.mu.Unlock()
	view := f.View()

	return grid.Runtime[T]{
		PatchTableOptions: func(grid.TableOptions[T]) grid.TableOptions[T] {
			return grid.TableOptions[T]{
				EnableExpanding: grid.Bool(true),
				GetSubRows:      f.SubRows,
				State:           grid.ExpandedStateKey.Patch(view.Expanded),
			}
		},
		PatchActions: func(grid.Actions) grid.Actions {
			return grid.Actions{
				ExpandRow:         f.Expand,
				CollapseRow:       f.Collapse,
				ToggleRowExpanded: f.Toggle,
				ExpandAll:         f.ExpandAll,
				CollapseAll:       f.CollapseAll,
			}
		},
		PatchActivity: func(a grid.Activity) grid.Activity {
			if len(view.LoadingRowIDs) > 0 {
				return a.WithBusy(Name)
			}
			return a
		},
		PatchMeta: func(grid.Slots) grid.Slots {
			return grid.TreeKey.Patch(view)
		},
		OnReset: f.Reset,
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

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
