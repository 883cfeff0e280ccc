package columns

import (
	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/pkg/prefs"
)

// Order tracks the column display order. Stored orders are filtered to the
// known columns and new columns are appended in declaration order.
type Order[T any] struct {
	base[[]string]
}

var (
	_ grid.Feature[struct{}] = (*Order[struct{}])(nil)
	_ grid.Attacher          = (*Order[struct{}])(nil)
	_ grid.Initializer       = (*Order[struct{}])(nil)
)

// NewOrder builds the order feature for columns.
func NewOrder[T any](columns []grid.Column, opts Options) *Order[T] {
	f := &Order[T]{}
	f.base = newBase(OrderName, columns, opts, prefs.Definition[[]string]{
		Kind:    OrderName,
		Version: 1,
		Defaults: func(schema prefs.Schema) []string {
			return append([]string(nil), schema.ColumnIDs...)
		},
		Merge: func(_, stored []string, schema prefs.Schema) []string {
			return prefs.MergeOrder(schema.ColumnIDs, stored)
		},
	})
	return f
}

// Order returns a copy of the current order.
func (f *Order[T]) Order() []string {
	return append([]string(nil), f.value.Get()...)
}

// SetOrder reorders the columns and returns the merged order.
func (f *Order[T]) SetOrder(ids []string) []string {
	return append([]string(nil), f.commit(append([]string(nil), ids...))...)
}

// Reset restores the declaration order.
func (f *Order[T]) Reset() {
	f.reset()
}

// Runtime implements grid.Feature.
func (f *Order[T]) Runtime(grid.FeatureContext[T]) grid.Runtime[T] {
	if !f.Enabled() {
		return grid.Runtime[T]{}
	}
	state := f.Order()
	return grid.Runtime[T]{
		PatchTableOptions: func(grid.TableOptions[T]) grid.TableOptions[T] {
			return grid.TableOptions[T]{
				State: grid.ColumnOrderState.Patch(state),
			}
		},
		PatchActions: func(grid.Actions) grid.Actions {
			return grid.Actions{
				SetColumnOrder:   func(ids []string) { f.SetOrder(ids) },
				ResetColumnOrder: f.Reset,
			}
		},
		PatchActivity: f.activity,
		OnReset:       f.Reset,
	}
}
