package columns

import (
	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/pkg/prefs"
)

// Visibility tracks which columns are shown. Columns marked AlwaysVisible
// cannot be hidden, even by a persisted value.
type Visibility[T any] struct {
	base[map[string]bool]
}

var (
	_ grid.Feature[struct{}] = (*Visibility[struct{}])(nil)
	_ grid.Attacher          = (*Visibility[struct{}])(nil)
	_ grid.Initializer       = (*Visibility[struct{}])(nil)
)

// NewVisibility builds the visibility feature for columns.
func NewVisibility[T any](columns []grid.Column, opts Options) *Visibility[T] {
	f := &Visibility[T]{}
	f.base = newBase(VisibilityName, columns, opts, prefs.Definition[map[string]bool]{
		Kind:    VisibilityName,
		Version: 1,
		Defaults: func(schema prefs.Schema) map[string]bool {
			out := make(map[string]bool, len(schema.ColumnIDs))
			for _, column := range columns {
				out[column.ID] = !column.DefaultHidden || column.AlwaysVisible
			}
			return out
		},
		Merge: func(defaults, stored map[string]bool, schema prefs.Schema) map[string]bool {
			return prefs.MergeColumns(schema.ColumnIDs, defaults, stored, func(id string, visible bool) bool {
				if column, ok := grid.FindColumn(columns, id); ok && column.AlwaysVisible {
					return true
				}
				return visible
			})
		},
	})
	return f
}

// Visibility returns a copy of the current visibility map.
func (f *Visibility[T]) Visibility() map[string]bool {
	return cloneMap(f.value.Get())
}

// IsVisible reports whether the column id is shown.
func (f *Visibility[T]) IsVisible(id string) bool {
	return f.value.Get()[id]
}

// SetVisible shows or hides one column. Unknown ids are ignored.
func (f *Visibility[T]) SetVisible(id string, visible bool) bool {
	if _, ok := f.column(id); !ok {
		return false
	}
	next := cloneMap(f.value.Get())
	next[id] = visible
	f.commit(next)
	return true
}

// Reset restores the default visibility.
func (f *Visibility[T]) Reset() {
	f.reset()
}

// Runtime implements grid.Feature.
func (f *Visibility[T]) Runtime(grid.FeatureContext[T]) grid.Runtime[T] {
	if !f.Enabled() {
		return grid.Runtime[T]{}
	}
	state := f.Visibility()
	return grid.Runtime[T]{
		PatchTableOptions: func(grid.TableOptions[T]) grid.TableOptions[T] {
			return grid.TableOptions[T]{
				EnableHiding: grid.Bool(true),
				State:        grid.ColumnVisibilityState.Patch(state),
			}
		},
		PatchActions: func(grid.Actions) grid.Actions {
			return grid.Actions{
				SetColumnVisibility:   func(id string, visible bool) { f.SetVisible(id, visible) },
				ResetColumnVisibility: f.Reset,
			}
		},
		PatchActivity: f.activity,
		OnReset:       f.Reset,
	}
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
