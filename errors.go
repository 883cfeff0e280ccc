package grid

import "errors"

var (
	// ErrNoDataSource is returned by New when the config carries no data source.
	ErrNoDataSource = errors.New("grid: data source is required")
	// ErrNoRowID is returned by New when rows cannot be identified.
	ErrNoRowID = errors.New("grid: row id accessor is required")
	// ErrClosed is returned once the engine has been closed.
	ErrClosed = errors.New("grid: engine closed")
	// ErrStaleResult marks an async result discarded because its context moved on.
	ErrStaleResult = errors.New("grid: stale result discarded")
	// ErrInvalidQuery is returned when a query string cannot be decoded.
	ErrInvalidQuery = errors.New("grid: invalid query encoding")
)
