package columns

import (
	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/pkg/prefs"
)

// Pinning tracks which side each column is pinned to.
type Pinning[T any] struct {
	base[map[string]grid.Pin]
}

var (
	_ grid.Feature[struct{}] = (*Pinning[struct{}])(nil)
	_ grid.Attacher          = (*Pinning[struct{}])(nil)
	_ grid.Initializer       = (*Pinning[struct{}])(nil)
)

// NewPinning builds the pinning feature for columns.
func NewPinning[T any](columns []grid.Column, opts Options) *Pinning[T] {
	f := &Pinning[T]{}
	f.base = newBase(PinningName, columns, opts, prefs.Definition[map[string]grid.Pin]{
		Kind:    PinningName,
		Version: 1,
		Defaults: func(prefs.Schema) map[string]grid.Pin {
			out := make(map[string]grid.Pin, len(columns))
			for _, column := range columns {
				pin := column.DefaultPin
				if !pin.Valid() {
					pin = grid.PinNone
				}
				out[column.ID] = pin
			}
			return out
		},
		Merge: func(defaults, stored map[string]grid.Pin, schema prefs.Schema) map[string]grid.Pin {
			return prefs.MergeColumns(schema.ColumnIDs, defaults, stored, func(_ string, pin grid.Pin) grid.Pin {
				if !pin.Valid() {
					return grid.PinNone
				}
				return pin
			})
		},
	})
	return f
}

// Pins returns a copy of the current pin map.
func (f *Pinning[T]) Pins() map[string]grid.Pin {
	return cloneMap(f.value.Get())
}

// Pinned returns the ids pinned to side in column declaration order.
func (f *Pinning[T]) Pinned(side grid.Pin) []string {
	pins := f.value.Get()
	var out []string
	for _, id := range f.schema.ColumnIDs {
		if pins[id] == side {
			out = append(out, id)
		}
	}
	return out
}

// SetPin pins or unpins one column. Unknown ids and sides are ignored.
func (f *Pinning[T]) SetPin(id string, pin grid.Pin) bool {
	if _, ok := f.column(id); !ok || !pin.Valid() {
		return false
	}
	next := cloneMap(f.value.Get())
	next[id] = pin
	f.commit(next)
	return true
}

// Reset restores the default pins.
func (f *Pinning[T]) Reset() {
	f.reset()
}

// Runtime implements grid.Feature.
func (f *Pinning[T]) Runtime(grid.FeatureContext[T]) grid.Runtime[T] {
	if !f.Enabled() {
		return grid.Runtime[T]{}
	}
	state := f.Pins()
	return grid.Runtime[T]{
		PatchTableOptions: func(grid.TableOptions[T]) grid.TableOptions[T] {
			return grid.TableOptions[T]{
				EnableColumnPinning: grid.Bool(true),
				State:               grid.ColumnPinningState.Patch(state),
			}
		},
		PatchActions: func(grid.Actions) grid.Actions {
			return grid.Actions{
				SetColumnPin:       func(id string, pin grid.Pin) { f.SetPin(id, pin) },
				ResetColumnPinning: f.Reset,
			}
		},
		PatchActivity: f.activity,
		OnReset:       f.Reset,
	}
}
