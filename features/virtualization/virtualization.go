// Package virtualization computes the window of rows a viewport needs to
// render.
package virtualization

import (
	"sync"

	grid "github.com/goliatone/go-grid"
)

// Name is the feature name.
const Name = "virtualization"

const (
	DefaultRowHeight = 36
	DefaultOverscan  = 3
)

// Options configures the feature.
type Options[T any] struct {
	Disabled bool
	// RowHeight is used when no density preset publishes one.
	RowHeight int
	// Overscan is the number of extra rows rendered on each side. Negative
	// values disable overscan.
	Overscan int
	// Count overrides the number of rendered rows, e.g. to include expanded
	// children. Defaults to the page row count.
	Count func(ctx grid.FeatureContext[T]) int
}

// ComputeWindow returns the rows [Start, End) to render for a viewport of
// height pixels scrolled to scrollTop.
func ComputeWindow(count, rowHeight, scrollTop, height, overscan int) grid.VirtualWindow {
	if rowHeight <= 0 {
		rowHeight = DefaultRowHeight
	}
	overscan = max(overscan, 0)
	window := grid.VirtualWindow{RowHeight: rowHeight}
	if count <= 0 {
		return window
	}
	total := count * rowHeight
	window.TotalHeight = total
	height = max(height, 0)
	scrollTop = min(max(scrollTop, 0), max(total-height, 0))

	first := scrollTop / rowHeight
	last := (scrollTop + height + rowHeight - 1) / rowHeight
	window.Start = max(first-overscan, 0)
	window.End = min(last+overscan, count)
	window.OffsetTop = window.Start * rowHeight
	return window
}

// Feature is the virtualization feature.
type Feature[T any] struct {
	opts Options[T]

	mu        sync.Mutex
	host      grid.Host
	scrollTop int
	height    int
}

var (
	_ grid.Feature[struct{}] = (*Feature[struct{}])(nil)
	_ grid.Attacher          = (*Feature[struct{}])(nil)
)

// New builds the virtualization feature.
func New[T any](opts Options[T]) *Feature[T] {
	if opts.RowHeight <= 0 {
		opts.RowHeight = DefaultRowHeight
	}
	if opts.Overscan == 0 {
		opts.Overscan = DefaultOverscan
	}
	return &Feature[T]{opts: opts}
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

// SetViewport records the scroll position and viewport height.
func (f *Feature[T]) SetViewport(scrollTop, height int) {
	f.mu.Lock()
	if f.scrollTop == scrollTop && f.height == height {
		f.mu.Unlock()
		return
	}
	f.scrollTop, f.height = scrollTop, height
	host := f.host
	f.mu.Unlock()
	if host != nil {
		host.Invalidate()
	}
}

// Viewport returns the recorded scroll position and height.
func (f *Feature[T]) Viewport() (scrollTop, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrollTop, f.height
}

// Runtime implements grid.Feature. The row height comes from the density
// slot when a density feature runs earlier in the chain.
func (f *Feature[T]) Runtime(ctx grid.FeatureContext[T]) grid.Runtime[T] {
	if !f.Enabled() {
		return grid.Runtime[T]{}
	}
	count := len(ctx.Rows)
	if f.opts.Count != nil {
		count = f.opts.Count(ctx)
	}
	scrollTop, height := f.Viewport()

	return grid.Runtime[T]{
		PatchActions: func(grid.Actions) grid.Actions {
			return grid.Actions{SetViewport: f.SetViewport}
		},
		PatchMeta: func(meta grid.Slots) grid.Slots {
			rowHeight := f.opts.RowHeight
			if density, ok := grid.DensityKey.Get(meta); ok && density.RowHeight > 0 {
				rowHeight = density.RowHeight
			}
			return grid.VirtualKey.Patch(ComputeWindow(count, rowHeight, scrollTop, height, f.opts.Overscan))
		},
		OnReset: func() {
			f.mu.Lock()
			f.scrollTop = 0
			f.mu.Unlock()
		},
	}
}
