package grid

import (
	"context"
	"sort"
)

// TableOptions is the rendering-agnostic table configuration features patch.
// A patch only needs to set the fields it owns: zero fields keep the
// accumulated value, and State and Meta merge one level deep.
type TableOptions[T any] struct {
	Data       []T
	Columns    []Column
	GetRowID   func(T) string
	GetSubRows func(T) []T

	ManualPagination bool
	ManualSorting    bool
	ManualFiltering  bool
	PageIndex        int
	PageSize         int
	PageCount        int
	Sorting          []SortRule

	EnableRowSelection      *bool
	EnableMultiRowSelection *bool
	EnableColumnResizing    *bool
	EnableColumnPinning     *bool
	EnableHiding            *bool
	EnableExpanding         *bool
	EnableRowDrag           *bool
	ColumnResizeMode        string
	RowHeight               int

	State Slots
	Meta  Slots
}

// Bool returns a pointer to v for the optional TableOptions flags.
func Bool(v bool) *bool {
	return &v
}

// Enabled dereferences an optional flag, treating nil as false.
func Enabled(flag *bool) bool {
	return flag != nil && *flag
}

// Actions is the action set exposed to the presentation layer. Feature
// specific actions stay nil unless the owning feature is enabled.
type Actions struct {
	SetPage       func(page int)
	SetPageSize   func(size int)
	SetSort       func(rules []SortRule)
	SetFilters    func(filters Filters)
	SetFilter     func(key string, value any)
	ResetAll      func()
	Refetch       func()
	DismissNotice func(id string)

	ToggleRow            func(id string)
	SetRowSelected       func(id string, selected bool)
	SelectAllCurrentPage func()
	SelectAllMatching    func(ctx context.Context) error
	ClearSelection       func()

	ExpandRow         func(ctx context.Context, id string) error
	CollapseRow       func(id string)
	ToggleRowExpanded func(ctx context.Context, id string) error
	ExpandAll         func()
	CollapseAll       func()

	SetColumnVisibility   func(id string, visible bool)
	ResetColumnVisibility func()
	SetColumnSize         func(id string, size int)
	ResetColumnSizing     func()
	SetColumnPin          func(id string, pin Pin)
	ResetColumnPinning    func()
	SetColumnOrder        func(ids []string)
	ResetColumnOrder      func()

	SetDensity   func(density Density)
	ResetDensity func()

	DragStart func(id string)
	DragOver  func(move RowMove)
	DragEnd   func()
	MoveRow   func(ctx context.Context, move RowMove) error

	SetViewport func(scrollTop, height int)
}

// Activity summarizes whether the grid is ready to render its final layout.
type Activity struct {
	// Ready is false until persisted preferences have been applied.
	Ready bool
	// Fetching is true while a query is in flight.
	Fetching bool
	// Busy lists features with async work in flight.
	Busy []string
}

// WithBusy returns a copy of a with name marked busy.
func (a Activity) WithBusy(name string) Activity {
	for _, existing := range a.Busy {
		if existing == name {
			return a
		}
	}
	busy := append(append([]string(nil), a.Busy...), name)
	sort.Strings(busy)
	a.Busy = busy
	return a
}

// Status is the data lifecycle of the engine.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Pagination is the derived paging read model.
type Pagination struct {
	Page      int  `json:"page"`
	Size      int  `json:"size"`
	PageCount int  `json:"pageCount"`
	Total     *int `json:"total,omitempty"`
	HasPrev   bool `json:"hasPrev"`
	HasNext   bool `json:"hasNext"`
}

// NewPagination derives the paging read model.
func NewPagination(snapshot Snapshot, pageCount int, total *int) Pagination {
	return Pagination{
		Page:      snapshot.Page,
		Size:      snapshot.Size,
		PageCount: pageCount,
		Total:     total,
		HasPrev:   snapshot.Page > 1,
		HasNext:   snapshot.Page < pageCount,
	}
}

// Table is the composed table instance handed to the presentation layer.
type Table[T any] struct {
	Options    TableOptions[T]
	Actions    Actions
	Activity   Activity
	Status     Status
	Snapshot   Snapshot
	Pagination Pagination
	Selection  SelectionView
	Tree       TreeView
	DragSort   DragSortView
	Virtual    VirtualWindow
	Density    DensityView
	Meta       Slots
	// Error is the blocking notice, if any.
	Error  *Notice
	Errors []Notice
	// ExtraMeta is passed through from the data source.
	ExtraMeta map[string]any
}

// Rows returns the current page rows.
func (t Table[T]) Rows() []T {
	return t.Options.Data
}
