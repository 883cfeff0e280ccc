package grid

// Read models published by features through typed slots. They live here so
// the composed Table can expose them without importing feature packages.

// SelectionMode is the configured selection behaviour.
type SelectionMode string

const (
	SelectionDisabled  SelectionMode = "disabled"
	SelectionPage      SelectionMode = "page"
	SelectionCrossPage SelectionMode = "cross-page"
)

// ScopeType tags a SelectionScope.
type ScopeType string

const (
	ScopeIDs ScopeType = "ids"
	ScopeAll ScopeType = "all"
)

// SelectionScope is either an explicit id set or "every matching row except
// ExcludedRowIDs".
type SelectionScope struct {
	Type           ScopeType `json:"type"`
	RowIDs         []string  `json:"rowIds,omitempty"`
	ExcludedRowIDs []string  `json:"excludedRowIds,omitempty"`
}

// EmptyScope is the cleared selection.
func EmptyScope() SelectionScope {
	return SelectionScope{Type: ScopeIDs, RowIDs: []string{}}
}

// SelectionCount is either a number or "all".
type SelectionCount struct {
	N   int  `json:"n"`
	All bool `json:"all"`
}

// SelectionView is the derived selection state.
type SelectionView struct {
	Mode  SelectionMode  `json:"mode"`
	Scope SelectionScope `json:"scope"`
	// SelectedRowIDs lists selected ids on the current page when Scope is
	// "all"; for "ids" scopes it is the full id set.
	SelectedRowIDs []string       `json:"selectedRowIds"`
	TotalSelected  SelectionCount `json:"totalSelected"`
	IsAllSelected  bool           `json:"isAllSelected"`
	Fetching       bool           `json:"fetching"`
}

// ExpandedState is "all rows expanded" or a finite id set.
type ExpandedState struct {
	All bool            `json:"all"`
	IDs map[string]bool `json:"ids,omitempty"`
}

// IsExpanded reports whether id is expanded.
func (s ExpandedState) IsExpanded(id string) bool {
	return s.All || s.IDs[id]
}

// TreeView is the tree feature's read model.
type TreeView struct {
	Expanded      ExpandedState `json:"expanded"`
	LoadingRowIDs []string      `json:"loadingRowIds"`
	IndentSize    int           `json:"indentSize"`
	AllowNesting  bool          `json:"allowNesting"`
	Cascade       bool          `json:"cascade"`
}

// DropPosition is where a dragged row lands relative to the target row.
type DropPosition string

const (
	DropAbove  DropPosition = "above"
	DropBelow  DropPosition = "below"
	DropInside DropPosition = "inside"
)

// Rect is the bounding box of a rendered row.
type Rect struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// RowMove is a drop gesture reported by the presentation layer.
type RowMove struct {
	ActiveID string  `json:"activeId"`
	OverID   string  `json:"overId"`
	PointerY float64 `json:"pointerY"`
	Rect     Rect    `json:"rect"`
}

// DragSortView is the drag-sort feature's read model.
type DragSortView struct {
	Enabled      bool         `json:"enabled"`
	ActiveID     string       `json:"activeId,omitempty"`
	OverID       string       `json:"overId,omitempty"`
	Position     DropPosition `json:"position,omitempty"`
	AllowNesting bool         `json:"allowNesting"`
	IndentSize   int          `json:"indentSize"`
	Pending      bool         `json:"pending"`
}

// VirtualWindow is the visible slice of rows for a viewport.
type VirtualWindow struct {
	Start       int `json:"start"`
	End         int `json:"end"`
	OffsetTop   int `json:"offsetTop"`
	TotalHeight int `json:"totalHeight"`
	RowHeight   int `json:"rowHeight"`
}

// Density is the row spacing preset.
type Density string

const (
	DensityCompact     Density = "compact"
	DensityStandard    Density = "standard"
	DensityComfortable Density = "comfortable"
)

// Valid reports whether d is a known preset.
func (d Density) Valid() bool {
	return d == DensityCompact || d == DensityStandard || d == DensityComfortable
}

// DensityView is the density feature's read model.
type DensityView struct {
	Density   Density `json:"density"`
	RowHeight int     `json:"rowHeight"`
}

// Slot keys owned by the bundled features.
var (
	SelectionKey = NewKey[SelectionView]("selection")
	TreeKey      = NewKey[TreeView]("tree")
	DragSortKey  = NewKey[DragSortView]("dragSort")
	VirtualKey   = NewKey[VirtualWindow]("virtualization")
	DensityKey   = NewKey[DensityView]("density")
)

// Table state keys used inside TableOptions.State.
var (
	ColumnVisibilityState = NewKey[map[string]bool]("columnVisibility")
	ColumnSizingState     = NewKey[map[string]int]("columnSizing")
	ColumnPinningState    = NewKey[map[string]Pin]("columnPinning")
	ColumnOrderState      = NewKey[[]string]("columnOrder")
	ExpandedStateKey      = NewKey[ExpandedState]("expanded")
	RowSelectionState     = NewKey[map[string]bool]("rowSelection")
)
