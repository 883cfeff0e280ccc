// Package grid is a headless data-grid engine. It keeps the active query
// (page, size, sort, filters) behind a StateAdapter, resolves rows through a
// pluggable DataSource and folds independently authored features (selection,
// column preferences, tree rows, drag sorting, ...) into a single Table value.
//
// Data flow:
//
//	event -> StateAdapter.SetSnapshot -> Engine listener -> DataSource.Query
//	      -> Compose(base, features) -> Table[T] -> subscribers
//
// Features never import each other. They contribute patches through Runtime
// and publish typed read models through Slots keyed by feature name.
package grid
