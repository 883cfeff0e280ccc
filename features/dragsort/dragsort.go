// Package dragsort computes drop positions for row drag gestures, guards
// reorders against structural violations and forwards accepted moves to the
// caller. It never owns row order.
package dragsort

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/predicate"
)

// Name is the feature name.
const Name = "dragSort"

// CodeReorderFailed is the notice code for failed OnReorder calls.
const CodeReorderFailed = "reorder_failed"

var (
	// ErrDropRefused is wrapped by every refused move.
	ErrDropRefused = errors.New("dragsort: drop refused")
	// ErrNotDragging is returned by Move without an active row.
	ErrNotDragging = errors.New("dragsort: no active row")
)

// Refusal names the guard that refused a move.
type Refusal string

const (
	RefuseDescendant  Refusal = "descendant"
	RefuseCrossParent Refusal = "cross_parent"
	RefusePredicate   Refusal = "predicate"
)

// RefusedError describes a refused move.
type RefusedError struct {
	Reason   Refusal
	ActiveID string
	OverID   string
	Err      error
}

func (e *RefusedError) Error() string {
	msg := fmt.Sprintf("dragsort: drop %q on %q refused (%s)", e.ActiveID, e.OverID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrDropRefused and the predicate failure, if any.
func (e *RefusedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDropRefused, e.Err}
	}
	return []error{ErrDropRefused}
}

// Thresholds split a row into drop zones by the pointer's relative offset.
type Thresholds struct {
	// Above and Below bound the "inside" zone when nesting is allowed.
	Above float64
	Below float64
	// Split divides above from below when nesting is not allowed.
	Split float64
}

// DefaultThresholds is a 25/75 split with nesting and 50/50 without.
var DefaultThresholds = Thresholds{Above: 0.25, Below: 0.75, Split: 0.5}

func (t Thresholds) orDefault() Thresholds {
	if t.Above <= 0 || t.Below <= t.Above || t.Below >= 1 {
		t.Above, t.Below = DefaultThresholds.Above, DefaultThresholds.Below
	}
	if t.Split <= 0 || t.Split >= 1 {
		t.Split = DefaultThresholds.Split
	}
	return t
}

// ComputePosition maps the pointer position within rect to a drop position.
func ComputePosition(pointerY float64, rect grid.Rect, allowNesting bool, thresholds Thresholds) grid.DropPosition {
	t := thresholds.orDefault()
	ratio := 0.5
	if rect.Height > 0 {
		ratio = (pointerY - rect.Top) / rect.Height
	}
	ratio = min(max(ratio, 0), 1)
	if allowNesting {
		switch {
		case ratio < t.Above:
			return grid.DropAbove
		case ratio > t.Below:
			return grid.DropBelow
		default:
			return grid.DropInside
		}
	}
	if ratio < t.Split {
		return grid.DropAbove
	}
	return grid.DropBelow
}

// Nesting is the hierarchy the guards consult. The tree feature implements
// it.
type Nesting interface {
	AllowNesting() bool
	IndentSize() int
	ParentOf(id string) (string, bool)
	IsDescendant(ancestor, id string) bool
}

// Reorder is an accepted move handed to OnReorder.
type Reorder struct {
	ActiveID string
	OverID   string
	Position grid.DropPosition
	// ParentID is the parent the row ends up under; empty for top level.
	ParentID string
}

// Options configures the feature.
type Options struct {
	Disabled   bool
	Thresholds Thresholds
	// Nesting supplies the hierarchy. Without it rows are a flat list.
	Nesting Nesting
	// CanDrop is consulted after the structural guards.
	CanDrop func(activeID, overID string, position grid.DropPosition) bool
	// CanDropExpr is a boolean expression over active, over and position,
	// used when CanDrop is nil.
	CanDropExpr string
	Evaluator   predicate.Evaluator
	OnReorder   func(ctx context.Context, reorder Reorder) error
}

// Feature is the drag-sort feature.
type Feature[T any] struct {
	opts    Options
	program predicate.Program

	mu       sync.Mutex
	host     grid.Host
	activeID string
	overID   string
	position grid.DropPosition
	// drag increments with every new drag; a settled Move only ends the
	// drag it belongs to.
	drag    uint64
	pending int
}

var (
	_ grid.Feature[struct{}] = (*Feature[struct{}])(nil)
	_ grid.Attacher          = (*Feature[struct{}])(nil)
)

// New builds the drag-sort feature. CanDropExpr is compiled once here.
func New[T any](opts Options) (*Feature[T], error) {
	opts.Thresholds = opts.Thresholds.orDefault()
	f := &Feature[T]{opts: opts}
	if expression := strings.TrimSpace(opts.CanDropExpr); expression != "" && opts.CanDrop == nil {
		if opts.Evaluator == nil {
			return nil, fmt.Errorf("dragsort: can drop expression: %w", predicate.ErrNoEvaluator)
		}
		program, err := opts.Evaluator.Compile(expression)
		if err != nil {
			return nil, fmt.Errorf("dragsort: compile can drop expression: %w", err)
		}
		f.program = program
	}
	return f, nil
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

func (f *Feature[T]) allowNesting() bool {
	return f.opts.Nesting != nil && f.opts.Nesting.AllowNesting()
}

// Start marks id as the dragged row.
func (f *Feature[T]) Start(id string) {
	f.mu.Lock()
	f.drag++
	f.activeID = id
	f.overID = ""
	f.position = ""
	f.mu.Unlock()
	f.invalidate()
}

// Over tracks the hovered row and returns the drop position.
func (f *Feature[T]) Over(move grid.RowMove) grid.DropPosition {
	position := ComputePosition(move.PointerY, move.Rect, f.allowNesting(), f.opts.Thresholds)
	f.mu.Lock()
	if move.ActiveID != "" && move.ActiveID != f.activeID {
		f.drag++
		f.activeID = move.ActiveID
	}
	f.overID = move.OverID
	f.position = position
	f.mu.Unlock()
	f.invalidate()
	return position
}

// End clears the drag state.
func (f *Feature[T]) End() {
	f.mu.Lock()
	f.drag++
	f.activeID, f.overID, f.position = "", "", ""
	f.mu.Unlock()
	f.invalidate()
}

// endDrag clears the drag state unless another drag started since drag.
func (f *Feature[T]) endDrag(drag uint64) {
	f.mu.Lock()
	if f.drag != drag {
		f.mu.Unlock()
		return
	}
	f.drag++
	f.activeID, f.overID, f.position = "", "", ""
	f.mu.Unlock()
	f.invalidate()
}

// Check runs the guards for dropping activeID at position relative to
// overID.
func (f *Feature[T]) Check(activeID, overID string, position grid.DropPosition) error {
	nesting := f.opts.Nesting
	refuse := func(reason Refusal, err error) error {
		return &RefusedError{Reason: reason, ActiveID: activeID, OverID: overID, Err: err}
	}
	if activeID == overID || (nesting != nil && nesting.IsDescendant(activeID, overID)) {
		return refuse(RefuseDescendant, nil)
	}
	if !f.allowNesting() {
		if position == grid.DropInside {
			return refuse(RefuseCrossParent, nil)
		}
		if nesting != nil && parentOf(nesting, activeID) != parentOf(nesting, overID) {
			return refuse(RefuseCrossParent, nil)
		}
	}
	switch {
	case f.opts.CanDrop != nil:
		if !f.opts.CanDrop(activeID, overID, position) {
			return refuse(RefusePredicate, nil)
		}
	case f.program != nil:
		ok, err := predicate.MatchProgram(f.program, predicate.Env{
			Vars:  map[string]any{"active": activeID, "over": overID, "position": string(position)},
			Label: "dragsort:canDrop",
		})
		if err != nil || !ok {
			return refuse(RefusePredicate, err)
		}
	}
	return nil
}

// Move validates and requests a reorder. A refused move returns a
// RefusedError. OnReorder failures are reported as a non-blocking notice
// and returned; nothing is rolled back. A drag started while OnReorder runs
// is left in place.
func (f *Feature[T]) Move(ctx context.Context, move grid.RowMove) error {
	f.mu.Lock()
	activeID := move.ActiveID
	if activeID == "" {
		activeID = f.activeID
	}
	drag := f.drag
	host := f.host
	f.mu.Unlock()
	if activeID == "" {
		return ErrNotDragging
	}
	defer f.endDrag(drag)

	position := ComputePosition(move.PointerY, move.Rect, f.allowNesting(), f.opts.Thresholds)
	if err := f.Check(activeID, move.OverID, position); err != nil {
		if host != nil {
			host.Logger().Log(grid.LogEvent{Component: Name, Operation: "move.refused", Key: activeID, Err: err})
		}
		return err
	}
	if f.opts.OnReorder == nil {
		return nil
	}

	reorder := Reorder{ActiveID: activeID, OverID: move.OverID, Position: position}
	if position == grid.DropInside {
		reorder.ParentID = move.OverID
	} else if f.opts.Nesting != nil {
		reorder.ParentID = parentOf(f.opts.Nesting, move.OverID)
	}

	f.setPending(1)
	start := time.Now()
	err := f.opts.OnReorder(ctx, reorder)
	if host != nil {
		host.Metrics().Observe(ctx, "dragsort.reorder", err == nil, time.Since(start))
	}
	f.setPending(-1)
	if err != nil {
		err = fmt.Errorf("dragsort: reorder %q: %w", activeID, err)
		if host != nil {
			notice := grid.NewNotice(Name, CodeReorderFailed, "the row could not be moved", err)
			notice.Fields = map[string]any{"activeId": activeID, "overId": move.OverID, "position": string(position)}
			host.Report(notice)
		}
		return err
	}
	return nil
}

func (f *Feature[T]) setPending(delta int) {
	f.mu.Lock()
	f.pending += delta
	f.mu.Unlock()
	f.invalidate()
}

// View returns the read model.
func (f *Feature[T]) View() grid.DragSortView {
	view := grid.DragSortView{Enabled: f.Enabled(), AllowNesting: f.allowNesting()}
	if f.opts.Nesting != nil {
		view.IndentSize = f.opts.Nesting.IndentSize()
	}
	f.mu.Lock()
	view.ActiveID = f.activeID
	view.OverID = f.overID
	view.Position = f.position
	view.Pending = f.pending > 0
	f.mu.Unlock()
	return view
}

// Runtime implements grid.Feature.
func (f *Feature[T]) Runtime(grid.FeatureContext[T]) grid.Runtime[T] {
	if !f.Enabled() {
		return grid.Runtime[T]{}
	}
	view := f.View()
	return grid.Runtime[T]{
		PatchTableOptions: func(grid.TableOptions[T]) grid.TableOptions[T] {
			return grid.TableOptions[T]{EnableRowDrag: grid.Bool(true)}
		},
		PatchActions: func(grid.Actions) grid.Actions {
			return grid.Actions{
				DragStart: f.Start,
				DragOver:  func(move grid.RowMove) { f.Over(move) },
				DragEnd:   f.End,
				MoveRow:   f.Move,
			}
		},
		PatchActivity: func(a grid.Activity) grid.Activity {
			if view.Pending {
				return a.WithBusy(Name)
			}
			return a
		},
		PatchMeta: func(grid.Slots) grid.Slots {
			return grid.DragSortKey.Patch(view)
		},
		OnReset: func() {
			f.mu.Lock()
			f.activeID, f.overID, f.position = "", "", ""
			f.mu.Unlock()
		},
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

func parentOf(nesting Nesting, id string) string {
	parent, _ := nesting.ParentOf(id)
	return parent
}
