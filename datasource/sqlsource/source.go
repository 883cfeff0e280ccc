// Package sqlsource serves grid pages from a SQL table. Only whitelisted
// columns ever reach the generated SQL; filter values are always bound as
// arguments.
package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	grid "github.com/goliatone/go-grid"
)

var (
	// ErrNoDB is returned when the source has no database handle.
	ErrNoDB = errors.New("sqlsource: database handle is required")
	// ErrNoTable is returned when the table name is missing.
	ErrNoTable = errors.New("sqlsource: table is required")
	// ErrUnknownColumn is returned for sort fields outside the whitelist.
	ErrUnknownColumn = errors.New("sqlsource: unknown column")
)

// Placeholder renders the n-th (1-based) bind parameter.
type Placeholder func(n int) string

// Question renders "?" placeholders (SQLite, MySQL).
func Question(int) string { return "?" }

// Dollar renders "$n" placeholders (Postgres).
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// ScanFunc reads the current row into T. Columns arrive in Config.Columns
// order.
type ScanFunc[T any] func(rows *sql.Rows) (T, error)

// Config describes the table.
type Config[T any] struct {
	Table string
	// Columns are selected in order and form the whitelist for filters and
	// sorting.
	Columns []string
	// IDColumn backs MatchingIDs. Defaults to the first column.
	IDColumn string
	// SearchKey names the filter matched with LIKE over SearchColumns.
	SearchKey     string
	SearchColumns []string
	// DefaultSort applies when the snapshot has no sort rules, keeping
	// paging stable.
	DefaultSort []grid.SortRule
	Placeholder Placeholder
	Scan        ScanFunc[T]
}

// Option configures a Source.
type Option func(*options)

type options struct {
	logger  grid.Logger
	metrics grid.MetricsRecorder
}

// WithLogger reports ignored filters and query failures.
func WithLogger(logger grid.Logger) Option {
	return func(o *options) {
		o.logger = grid.LoggerOrNop(logger)
	}
}

// WithMetrics records "datasource.sql.query" observations.
func WithMetrics(recorder grid.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = grid.MetricsOrNop(recorder)
	}
}

// Source is a grid.DataSource over one table.
type Source[T any] struct {
	db      *sql.DB
	cfg     Config[T]
	allowed map[string]string
	opts    options
}

// New validates cfg and returns a Source reading from db.
func New[T any](db *sql.DB, cfg Config[T], opts ...Option) (*Source[T], error) {
	if db == nil {
		return nil, ErrNoDB
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, ErrNoTable
	}
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("sqlsource: %s: at least one column is required", cfg.Table)
	}
	if cfg.Scan == nil {
		return nil, fmt.Errorf("sqlsource: %s: scan func is required", cfg.Table)
	}
	if cfg.Placeholder == nil {
		cfg.Placeholder = Question
	}
	if cfg.IDColumn == "" {
		cfg.IDColumn = cfg.Columns[0]
	}
	allowed := make(map[string]string, len(cfg.Columns))
	for _, column := range cfg.Columns {
		allowed[strings.ToLower(column)] = column
	}
	for _, column := range append([]string{cfg.IDColumn}, cfg.SearchColumns...) {
		if _, ok := allowed[strings.ToLower(column)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
		}
	}
	o := options{logger: grid.NopLogger(), metrics: grid.NopMetrics()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Source[T]{db: db, cfg: cfg, allowed: allowed, opts: o}, nil
}

// Query counts the matching rows and reads one page.
func (s *Source[T]) Query(ctx context.Context, snapshot grid.Snapshot) (result grid.DataResult[T], err error) {
	start := time.Now()
	defer func() {
		s.opts.metrics.Observe(ctx, "datasource.sql.query", err == nil, time.Since(start))
		if err != nil {
			s.opts.logger.Log(grid.LogEvent{Component: "sqlsource", Operation: "query", Key: s.cfg.Table, Duration: time.Since(start), Err: err})
		}
	}()

	snapshot = snapshot.Normalize()
	b := &builder{placeholder: s.cfg.Placeholder}
	where := s.where(b, snapshot.Filters)

	var total int
	countSQL := "SELECT COUNT(*) FROM " + s.cfg.Table + where
	if err := s.db.QueryRowContext(ctx, countSQL, b.args...).Scan(&total); err != nil {
		return grid.DataResult[T]{}, fmt.Errorf("sqlsource: count %s: %w", s.cfg.Table, err)
	}

	orderBy, err := s.orderBy(snapshot.Sort)
	if err != nil {
		return grid.DataResult[T]{}, err
	}
	limit := b.bind(snapshot.Size)
	offset := b.bind((snapshot.Page - 1) * snapshot.Size)
	selectSQL := "SELECT " + strings.Join(s.cfg.Columns, ", ") + " FROM " + s.cfg.Table + where + orderBy +
		" LIMIT " + limit + " OFFSET " + offset

	rows, err := s.db.QueryContext(ctx, selectSQL, b.args...)
	if err != nil {
		return grid.DataResult[T]{}, fmt.Errorf("sqlsource: select %s: %w", s.cfg.Table, err)
	}
	defer rows.Close()

	page := make([]T, 0, snapshot.Size)
	for rows.Next() {
		row, err := s.cfg.Scan(rows)
		if err != nil {
			return grid.DataResult[T]{}, fmt.Errorf("sqlsource: scan %s: %w", s.cfg.Table, err)
		}
		page = append(page, row)
	}
	if err := rows.Err(); err != nil {
		return grid.DataResult[T]{}, fmt.Errorf("sqlsource: rows %s: %w", s.cfg.Table, err)
	}
	return grid.DataResult[T]{
		Rows:      page,
		PageCount: grid.PageCount(total, snapshot.Size),
		Total:     grid.IntPtr(total),
	}, nil
}

// MatchingIDs returns the IDColumn of every row matching filters, ordered by
// the id column.
func (s *Source[T]) MatchingIDs(ctx context.Context, filters grid.Filters) ([]string, error) {
	b := &builder{placeholder: s.cfg.Placeholder}
	where := s.where(b, grid.CompactFilters(filters))
	query := "SELECT " + s.cfg.IDColumn + " FROM " + s.cfg.Table + where + " ORDER BY " + s.cfg.IDColumn
	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("sqlsource: ids %s: %w", s.cfg.Table, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlsource: ids %s: %w", s.cfg.Table, err)
		}
		ids = append(ids, stringify(id))
	}
	return ids, rows.Err()
}

type builder struct {
	placeholder Placeholder
	args        []any
}

func (b *builder) bind(value any) string {
	b.args = append(b.args, value)
	return b.placeholder(len(b.args))
}

func (s *Source[T]) where(b *builder, filters grid.Filters) string {
	if len(filters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var clauses []string
	for _, key := range keys {
		value := filters[key]
		if key == s.cfg.SearchKey && len(s.cfg.SearchColumns) > 0 {
			pattern := "%" + strings.ToLower(strings.TrimSpace(stringify(value))) + "%"
			parts := make([]string, 0, len(s.cfg.SearchColumns))
			for _, column := range s.cfg.SearchColumns {
				parts = append(parts, "LOWER("+s.allowed[strings.ToLower(column)]+") LIKE "+b.bind(pattern))
			}
			clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
			continue
		}
		column, ok := s.allowed[strings.ToLower(key)]
		if !ok {
			s.opts.logger.Log(grid.LogEvent{Component: "sqlsource", Operation: "filter.ignored", Key: key})
			continue
		}
		if values, ok := listValues(value); ok {
			marks := make([]string, 0, len(values))
			for _, v := range values {
				marks = append(marks, b.bind(v))
			}
			clauses = append(clauses, column+" IN ("+strings.Join(marks, ", ")+")")
			continue
		}
		clauses = append(clauses, column+" = "+b.bind(value))
	}
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (s *Source[T]) orderBy(rules []grid.SortRule) (string, error) {
	if len(rules) == 0 {
		rules = s.cfg.DefaultSort
	}
	if len(rules) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(rules))
	for _, rule := range rules {
		column, ok := s.allowed[strings.ToLower(rule.Field)]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownColumn, rule.Field)
		}
		direction := "ASC"
		if rule.Order == grid.SortDesc {
			direction = "DESC"
		}
		parts = append(parts, column+" "+direction)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func listValues(value any) ([]any, bool) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(value)
}
