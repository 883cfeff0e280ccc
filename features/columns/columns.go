// Package columns provides the column preference features: visibility,
// sizing, pinning and order. Each one persists its state through pkg/prefs
// and keeps the table activity not ready until its initial read completed.
package columns

import (
	"context"
	"sync"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/features/internal/persist"
	"github.com/goliatone/go-grid/pkg/prefs"
)

// Feature names, also used as preference kinds.
const (
	VisibilityName = "columnVisibility"
	SizingName     = "columnSizing"
	PinningName    = "columnPinning"
	OrderName      = "columnOrder"
)

// DefaultSize is the column width used when a column declares none.
const DefaultSize = 150

// Options configures a column feature.
type Options struct {
	Disabled bool
	// Prefs locates persisted preferences. The zero value keeps state in
	// memory only.
	Prefs prefs.Scope
	// DefaultSize is the sizing fallback for columns without a Size.
	DefaultSize int
}

// base carries what the four features share.
type base[V any] struct {
	name     string
	disabled bool
	columns  []grid.Column
	schema   prefs.Schema
	value    *persist.Value[V]

	mu   sync.Mutex
	host grid.Host
}

func newBase[V any](name string, columns []grid.Column, opts Options, def prefs.Definition[V]) base[V] {
	cols := append([]grid.Column(nil), columns...)
	schema := prefs.Schema{ColumnIDs: grid.ColumnIDs(cols)}
	return base[V]{
		name:     name,
		disabled: opts.Disabled,
		columns:  cols,
		schema:   schema,
		value:    persist.New(opts.Prefs, def, schema),
	}
}

// Name implements grid.Feature.
func (b *base[V]) Name() string { return b.name }

// Enabled implements grid.Feature.
func (b *base[V]) Enabled() bool { return !b.disabled }

// Attach implements grid.Attacher.
func (b *base[V]) Attach(host grid.Host) {
	b.mu.Lock()
	b.host = host
	b.mu.Unlock()
	b.value.SetLogger(host.Logger())
}

// Init implements grid.Initializer by reading the persisted value.
func (b *base[V]) Init(ctx context.Context) error {
	return b.value.Load(ctx)
}

// Ready reports whether the persisted value has been read.
func (b *base[V]) Ready() bool {
	return b.value.Ready()
}

func (b *base[V]) activity(a grid.Activity) grid.Activity {
	if !b.value.Ready() {
		a.Ready = false
	}
	return a
}

// commit stores next in memory, persists it in the background and asks the
// host to recompose.
func (b *base[V]) commit(next V) V {
	merged := b.value.Update(next)
	b.persist(b.value.Save)
	return merged
}

func (b *base[V]) reset() {
	b.value.Restore()
	b.persist(b.value.Remove)
}

func (b *base[V]) persist(op func(context.Context) error) {
	b.mu.Lock()
	host := b.host
	b.mu.Unlock()
	if host == nil {
		_ = op(context.Background())
		return
	}
	host.Go(func(ctx context.Context) { _ = op(ctx) })
	host.Invalidate()
}

func (b *base[V]) column(id string) (grid.Column, bool) {
	return grid.FindColumn(b.columns, id)
}
