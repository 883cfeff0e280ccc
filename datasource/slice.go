package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/predicate"
)

// ErrNoEvaluator is returned when a filter expression is registered without
// an evaluator.
var ErrNoEvaluator = errors.New("datasource: filter expression requires an evaluator")

// FilterFunc reports whether row matches the filter value.
type FilterFunc[T any] func(row T, value any) bool

// SliceOption configures a Slice.
type SliceOption[T any] func(*Slice[T])

// WithAccessor replaces the reflection field accessor used for sorting and
// default filters.
func WithAccessor[T any](accessor Accessor[T]) SliceOption[T] {
	return func(s *Slice[T]) {
		if accessor != nil {
			s.field = accessor
		}
	}
}

// WithFilter matches filters[key] with fn instead of field equality.
func WithFilter[T any](key string, fn FilterFunc[T]) SliceOption[T] {
	return func(s *Slice[T]) {
		if fn != nil {
			s.filters[key] = fn
		}
	}
}

// WithFilterExpression matches filters[key] with an expression evaluated
// against the vars "row" and "value".
func WithFilterExpression[T any](key, expression string) SliceOption[T] {
	return func(s *Slice[T]) {
		s.expressions[key] = expression
	}
}

// WithEvaluator sets the evaluator for filter expressions.
func WithEvaluator[T any](evaluator predicate.Evaluator) SliceOption[T] {
	return func(s *Slice[T]) {
		s.evaluator = evaluator
	}
}

// WithRowVars exposes rows to expressions through vars instead of the raw
// value, which CEL needs since it cannot walk Go structs.
func WithRowVars[T any](vars func(T) map[string]any) SliceOption[T] {
	return func(s *Slice[T]) {
		s.rowVars = vars
	}
}

// WithSearch matches filters[key] as a case-insensitive substring of any of
// fields.
func WithSearch[T any](key string, fields ...string) SliceOption[T] {
	return func(s *Slice[T]) {
		s.search[key] = append([]string(nil), fields...)
	}
}

// WithSliceMetrics records "datasource.slice.query" observations.
func WithSliceMetrics[T any](recorder grid.MetricsRecorder) SliceOption[T] {
	return func(s *Slice[T]) {
		s.metrics = grid.MetricsOrNop(recorder)
	}
}

// Slice serves pages from an in-memory slice. Rows may be replaced at any
// time; queries see a consistent copy.
type Slice[T any] struct {
	mu   sync.RWMutex
	rows []T

	field       Accessor[T]
	filters     map[string]FilterFunc[T]
	expressions map[string]string
	search      map[string][]string
	evaluator   predicate.Evaluator
	rowVars     func(T) map[string]any
	metrics     grid.MetricsRecorder

	compileOnce sync.Once
	programs    map[string]predicate.Program
	compileErr  error
}

var _ grid.DataSource[struct{}] = (*Slice[struct{}])(nil)

// NewSlice serves rows.
func NewSlice[T any](rows []T, opts ...SliceOption[T]) *Slice[T] {
	s := &Slice[T]{
		rows:        append([]T(nil), rows...),
		field:       FieldAccessor[T](),
		filters:     map[string]FilterFunc[T]{},
		expressions: map[string]string{},
		search:      map[string][]string{},
		metrics:     grid.NopMetrics(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SetRows replaces the rows.
func (s *Slice[T]) SetRows(rows []T) {
	s.mu.Lock()
	s.rows = append([]T(nil), rows...)
	s.mu.Unlock()
}

// Rows returns a copy of every row.
func (s *Slice[T]) Rows() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), s.rows...)
}

// Query filters, sorts and pages the rows for snapshot.
func (s *Slice[T]) Query(ctx context.Context, snapshot grid.Snapshot) (result grid.DataResult[T], err error) {
	start := time.Now()
	defer func() {
		s.metrics.Observe(ctx, "datasource.slice.query", err == nil, time.Since(start))
	}()

	snapshot = snapshot.Normalize()
	matched, err := s.match(snapshot.Filters)
	if err != nil {
		return grid.DataResult[T]{}, err
	}
	s.sortRows(matched, snapshot.Sort)

	total := len(matched)
	from := (snapshot.Page - 1) * snapshot.Size
	if from > total {
		from = total
	}
	to := from + snapshot.Size
	if to > total {
		to = total
	}
	return grid.DataResult[T]{
		Rows:      append([]T(nil), matched[from:to]...),
		PageCount: grid.PageCount(total, snapshot.Size),
		Total:     grid.IntPtr(total),
	}, nil
}

// MatchingIDs returns the id of every row that matches filters, in row
// order. It fits the selection feature's FetchAllIDs.
func (s *Slice[T]) MatchingIDs(_ context.Context, filters grid.Filters, id func(T) string) ([]string, error) {
	matched, err := s.match(grid.CompactFilters(filters))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matched))
	for _, row := range matched {
		ids = append(ids, id(row))
	}
	return ids, nil
}

func (s *Slice[T]) match(filters grid.Filters) ([]T, error) {
	if err := s.compile(); err != nil {
		return nil, err
	}
	rows := s.Rows()
	if len(filters) == 0 {
		return rows, nil
	}
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := rows[:0]
	for _, row := range rows {
		ok := true
		for _, key := range keys {
			matched, err := s.matchOne(row, key, filters[key])
			if err != nil {
				return nil, err
			}
			if !matched {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Slice[T]) matchOne(row T, key string, value any) (bool, error) {
	if fn, ok := s.filters[key]; ok {
		return fn(row, value), nil
	}
	if program, ok := s.programs[key]; ok {
		var subject any = row
		if s.rowVars != nil {
			subject = s.rowVars(row)
		}
		return predicate.MatchProgram(program, predicate.Env{
			Vars:  map[string]any{"row": subject, "value": value},
			Label: "filter:" + key,
		})
	}
	if fields, ok := s.search[key]; ok {
		needle := strings.ToLower(strings.TrimSpace(fmt.Sprint(value)))
		for _, name := range fields {
			if field, ok := s.field(row, name); ok && strings.Contains(strings.ToLower(fmt.Sprint(field)), needle) {
				return true, nil
			}
		}
		return false, nil
	}
	field, ok := s.field(row, key)
	if !ok {
		return false, nil
	}
	return matchesValue(field, value), nil
}

func (s *Slice[T]) compile() error {
	s.compileOnce.Do(func() {
		s.programs = make(map[string]predicate.Program, len(s.expressions))
		if len(s.expressions) == 0 {
			return
		}
		if s.evaluator == nil {
			s.compileErr = ErrNoEvaluator
			return
		}
		for key, expression := range s.expressions {
			program, err := s.evaluator.Compile(expression)
			if err != nil {
				s.compileErr = fmt.Errorf("datasource: filter %q: %w", key, err)
				return
			}
			s.programs[key] = program
		}
	})
	return s.compileErr
}

func (s *Slice[T]) sortRows(rows []T, rules []grid.SortRule) {
	if len(rules) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, rule := range rules {
			a, _ := s.field(rows[i], rule.Field)
			b, _ := s.field(rows[j], rule.Field)
			cmp := compareValues(a, b)
			if cmp == 0 {
				continue
			}
			if rule.Order == grid.SortDesc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
