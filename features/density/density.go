// Package density provides the row density feature. The chosen preset is
// persisted through pkg/prefs and published on the grid.DensityKey slot,
// where virtualization picks up the row height.
package density

import (
	"context"
	"fmt"
	"sync"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/features/internal/persist"
	"github.com/goliatone/go-grid/pkg/prefs"
)

// Name is the feature name and preference kind.
const Name = "density"

// version 2 stores {"density": "..."}; version 1 stored the bare string.
const version = 2

// DefaultRowHeights maps every preset to a row height in pixels.
var DefaultRowHeights = map[grid.Density]int{
	grid.DensityCompact:     32,
	grid.DensityStandard:    40,
	grid.DensityComfortable: 52,
}

// Options configures the feature.
type Options struct {
	Disabled bool
	// Default is the preset used before anything is stored. Defaults to
	// standard.
	Default grid.Density
	// RowHeights overrides DefaultRowHeights per preset.
	RowHeights map[grid.Density]int
	Prefs      prefs.Scope
}

// Preference is the persisted value.
type Preference struct {
	Density grid.Density `json:"density"`
}

// Feature is the density feature.
type Feature[T any] struct {
	opts    Options
	heights map[grid.Density]int
	value   *persist.Value[Preference]

	mu   sync.Mutex
	host grid.Host
}

var (
	_ grid.Feature[struct{}] = (*Feature[struct{}])(nil)
	_ grid.Attacher          = (*Feature[struct{}])(nil)
	_ grid.Initializer       = (*Feature[struct{}])(nil)
)

// New builds the density feature.
func New[T any](opts Options) *Feature[T] {
	if !opts.Default.Valid() {
		opts.Default = grid.DensityStandard
	}
	heights := make(map[grid.Density]int, len(DefaultRowHeights))
	for preset, height := range DefaultRowHeights {
		heights[preset] = height
	}
	for preset, height := range opts.RowHeights {
		if preset.Valid() && height > 0 {
			heights[preset] = height
		}
	}
	fallback := opts.Default
	migrator := prefs.NewMigrator(prefs.Migration{
		From:        1,
		To:          2,
		Description: "wrap bare density",
		Steps:       []prefs.Step{prefs.WrapValue("density")},
	})
	f := &Feature[T]{opts: opts, heights: heights}
	f.value = persist.New(opts.Prefs, prefs.Definition[Preference]{
		Kind:    Name,
		Version: version,
		Defaults: func(prefs.Schema) Preference {
			return Preference{Density: fallback}
		},
		Merge: func(defaults, stored Preference, _ prefs.Schema) Preference {
			if !stored.Density.Valid() {
				return defaults
			}
			return stored
		},
		Migrate: migrator.Func(),
		Strict:  true,
		Validate: func(p Preference) error {
			if p.Density != "" && !p.Density.Valid() {
				return fmt.Errorf("density: unknown preset %q", p.Density)
			}
			return nil
		},
	}, prefs.Schema{})
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
	f.value.SetLogger(host.Logger())
}

// Init implements grid.Initializer.
func (f *Feature[T]) Init(ctx context.Context) error {
	return f.value.Load(ctx)
}

// Density returns the active preset.
func (f *Feature[T]) Density() grid.Density {
	return f.value.Get().Density
}

// RowHeight returns the row height of the active preset.
func (f *Feature[T]) RowHeight() int {
	return f.heights[f.Density()]
}

// View returns the read model.
func (f *Feature[T]) View() grid.DensityView {
	density := f.Density()
	return grid.DensityView{Density: density, RowHeight: f.heights[density]}
}

// Set switches the preset. Unknown presets are ignored.
func (f *Feature[T]) Set(density grid.Density) bool {
	if !density.Valid() {
		return false
	}
	f.value.Update(Preference{Density: density})
	f.persist(f.value.Save)
	return true
}

// Reset restores the default preset.
func (f *Feature[T]) Reset() {
	f.value.Restore()
	f.persist(f.value.Remove)
}

func (f *Feature[T]) persist(op func(context.Context) error) {
	f.mu.Lock()
	host := f.host
	f.mu.Unlock()
	if host == nil {
		_ = op(context.Background())
		return
	}
	host.Go(func(ctx context.Context) { _ = op(ctx) })
	host.Invalidate()
}

// Runtime implements grid.Feature.
func (f *Feature[T]) Runtime(grid.FeatureContext[T]) grid.Runtime[T] {
	if !f.Enabled() {
		return grid.Runtime[T]{}
	}
	view := f.View()
	ready := f.value.Ready()
	return grid.Runtime[T]{
		PatchTableOptions: func(grid.TableOptions[T]) grid.TableOptions[T] {
			return grid.TableOptions[T]{RowHeight: view.RowHeight}
		},
		PatchActions: func(grid.Actions) grid.Actions {
			return grid.Actions{
				SetDensity:   func(density grid.Density) { f.Set(density) },
				ResetDensity: f.Reset,
			}
		},
		PatchActivity: func(a grid.Activity) grid.Activity {
			if !ready {
				a.Ready = false
			}
			return a
		},
		PatchMeta: func(grid.Slots) grid.Slots {
			return grid.DensityKey.Patch(view)
		},
		OnReset: f.Reset,
	}
}
