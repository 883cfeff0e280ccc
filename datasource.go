package grid

import "context"

// DataResult is the resolved page for one snapshot. Rows holds the current
// page only.
type DataResult[T any] struct {
	Rows      []T            `json:"rows"`
	PageCount int            `json:"pageCount"`
	Total     *int           `json:"total,omitempty"`
	ExtraMeta map[string]any `json:"extraMeta,omitempty"`
}

// TotalOr returns the total when known, otherwise fallback.
func (r DataResult[T]) TotalOr(fallback int) int {
	if r.Total == nil {
		return fallback
	}
	return *r.Total
}

// DataSource resolves a snapshot into a page of rows. The engine calls Query
// once per distinct snapshot; caching identical queries is up to the source.
type DataSource[T any] interface {
	Query(ctx context.Context, snapshot Snapshot) (DataResult[T], error)
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc[T any] func(ctx context.Context, snapshot Snapshot) (DataResult[T], error)

// Query implements DataSource.
func (f DataSourceFunc[T]) Query(ctx context.Context, snapshot Snapshot) (DataResult[T], error) {
	return f(ctx, snapshot)
}

// IntPtr returns a pointer to v, handy for DataResult.Total.
func IntPtr(v int) *int {
	return &v
}

// PageCount returns the number of pages needed for total rows of size.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
