// Package datasource provides grid.DataSource implementations: Slice pages
// an in-memory slice with Go or expression filters, Remote wraps a fetch
// function with an LRU cache and in-flight de-duplication. The sqlsource
// subpackage queries a SQL table.
package datasource
