package columns

import (
	"github.com/tidwall/gjson"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/pkg/prefs"
)

// sizingVersion 2 stores a flat id->width object. Version 1 nested the
// widths under "widths".
const sizingVersion = 2

// Sizing tracks column widths clamped to each column's [MinSize, MaxSize].
type Sizing[T any] struct {
	base[map[string]int]
	defaultSize int
}

var (
	_ grid.Feature[struct{}] = (*Sizing[struct{}])(nil)
	_ grid.Attacher          = (*Sizing[struct{}])(nil)
	_ grid.Initializer       = (*Sizing[struct{}])(nil)
)

// NewSizing builds the sizing feature for columns.
func NewSizing[T any](columns []grid.Column, opts Options) *Sizing[T] {
	fallback := opts.DefaultSize
	if fallback <= 0 {
		fallback = DefaultSize
	}
	f := &Sizing[T]{defaultSize: fallback}
	clamp := func(id string, size int) int {
		column, ok := grid.FindColumn(columns, id)
		if !ok {
			return size
		}
		return prefs.Clamp(size, column.MinSize, column.MaxSize)
	}
	migrator := prefs.NewMigrator(prefs.Migration{
		From:        1,
		To:          2,
		Description: "flatten widths",
		Steps:       []prefs.Step{unwrapWidths, prefs.DropUnknownColumns()},
	})
	f.base = newBase(SizingName, columns, opts, prefs.Definition[map[string]int]{
		Kind:    SizingName,
		Version: sizingVersion,
		Defaults: func(prefs.Schema) map[string]int {
			out := make(map[string]int, len(columns))
			for _, column := range columns {
				size := column.Size
				if size <= 0 {
					size = fallback
				}
				out[column.ID] = clamp(column.ID, size)
			}
			return out
		},
		Merge: func(defaults, stored map[string]int, schema prefs.Schema) map[string]int {
			return prefs.MergeColumns(schema.ColumnIDs, defaults, stored, clamp)
		},
		Migrate: migrator.Func(),
	})
	return f
}

func unwrapWidths(raw []byte, _ prefs.Schema) ([]byte, error) {
	widths := gjson.GetBytes(raw, "widths")
	if !widths.Exists() || !widths.IsObject() {
		return raw, nil
	}
	return []byte(widths.Raw), nil
}

// Sizes returns a copy of the current widths.
func (f *Sizing[T]) Sizes() map[string]int {
	return cloneMap(f.value.Get())
}

// SetSize resizes one column, clamped to its bounds. It returns the applied
// width and false for unknown ids.
func (f *Sizing[T]) SetSize(id string, size int) (int, bool) {
	if _, ok := f.column(id); !ok {
		return 0, false
	}
	next := cloneMap(f.value.Get())
	next[id] = size
	merged := f.commit(next)
	return merged[id], true
}

// Reset restores the default widths.
func (f *Sizing[T]) Reset() {
	f.reset()
}

// Runtime implements grid.Feature.
func (f *Sizing[T]) Runtime(grid.FeatureContext[T]) grid.Runtime[T] {
	if !f.Enabled() {
		return grid.Runtime[T]{}
	}
	state := f.Sizes()
	return grid.Runtime[T]{
		PatchTableOptions: func(grid.TableOptions[T]) grid.TableOptions[T] {
			return grid.TableOptions[T]{
				EnableColumnResizing: grid.Bool(true),
				ColumnResizeMode:     "onChange",
				State:                grid.ColumnSizingState.Patch(state),
			}
		},
		PatchActions: func(grid.Actions) grid.Actions {
			return grid.Actions{
				SetColumnSize:     func(id string, size int) { f.SetSize(id, size) },
				ResetColumnSizing: f.Reset,
			}
		},
		PatchActivity: f.activity,
		OnReset:       f.Reset,
	}
}
