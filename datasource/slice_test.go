package datasource

import (
	"context"
	"errors"
	"strings"
	"testing"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/predicate"
)

type person struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Team   string `json:"team"`
	Active bool   `json:"active"`
}

func people() []person {
	return []person{
		{ID: "1", Name: "Alice", Age: 34, Team: "core", Active: true},
		{ID: "2", Name: "bob", Age: 27, Team: "ops", Active: false},
		{ID: "3", Name: "Carol", Age: 41, Team: "core", Active: true},
		{ID: "4", Name: "dave", Age: 27, Team: "web", Active: true},
		{ID: "5", Name: "Eve", Age: 52, Team: "ops", Active: false},
	}
}

func ids(rows []person) string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ID)
	}
	return strings.Join(out, ",")
}

func TestSliceQuery(t *testing.T) {
	source := NewSlice(people(),
		WithSearch[person]("q", "name", "team"),
		WithFilter[person]("minAge", func(row person, value any) bool {
			floor, _ := value.(int)
			return row.Age >= floor
		}),
	)

	cases := []struct {
		name      string
		snapshot  grid.Snapshot
		want      string
		total     int
		pageCount int
	}{
		{
			name:      "first page",
			snapshot:  grid.Snapshot{Page: 1, Size: 2},
			want:      "1,2",
			total:     5,
			pageCount: 3,
		},
		{
			name:      "last partial page",
			snapshot:  grid.Snapshot{Page: 3, Size: 2},
			want:      "5",
			total:     5,
			pageCount: 3,
		},
		{
			name:      "page past the end is empty",
			snapshot:  grid.Snapshot{Page: 9, Size: 2},
			want:      "",
			total:     5,
			pageCount: 3,
		},
		{
			name:      "field equality ignores case",
			snapshot:  grid.Snapshot{Page: 1, Size: 10, Filters: grid.Filters{"team": "CORE"}},
			want:      "1,3",
			total:     2,
			pageCount: 1,
		},
		{
			name:      "multi value filter",
			snapshot:  grid.Snapshot{Page: 1, Size: 10, Filters: grid.Filters{"team": []string{"web", "ops"}}},
			want:      "2,4,5",
			total:     3,
			pageCount: 1,
		},
		{
			name:      "false is a real filter value",
			snapshot:  grid.Snapshot{Page: 1, Size: 10, Filters: grid.Filters{"active": false}},
			want:      "2,5",
			total:     2,
			pageCount: 1,
		},
		{
			name:      "search over several fields",
			snapshot:  grid.Snapshot{Page: 1, Size: 10, Filters: grid.Filters{"q": "o"}},
			want:      "1,2,3,5",
			total:     4,
			pageCount: 1,
		},
		{
			name:      "go predicate",
			snapshot:  grid.Snapshot{Page: 1, Size: 10, Filters: grid.Filters{"minAge": 40}},
			want:      "3,5",
			total:     2,
			pageCount: 1,
		},
		{
			name:      "multi field sort",
			snapshot:  grid.Snapshot{Page: 1, Size: 10, Sort: []grid.SortRule{{Field: "age", Order: grid.SortAsc}, {Field: "name", Order: grid.SortDesc}}},
			want:      "4,2,1,3,5",
			total:     5,
			pageCount: 1,
		},
		{
			name:      "string sort ignores case",
			snapshot:  grid.Snapshot{Page: 1, Size: 10, Sort: []grid.SortRule{{Field: "name", Order: grid.SortDesc}}},
			want:      "5,4,3,2,1",
			total:     5,
			pageCount: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := source.Query(context.Background(), tc.snapshot)
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if got := ids(result.Rows); got != tc.want {
				t.Fatalf("expected rows %q, got %q", tc.want, got)
			}
			if result.TotalOr(-1) != tc.total || result.PageCount != tc.pageCount {
				t.Fatalf("expected total %d pages %d, got %d %d", tc.total, tc.pageCount, result.TotalOr(-1), result.PageCount)
			}
		})
	}
}

func TestSliceFilterExpression(t *testing.T) {
	source := NewSlice(people(),
		WithEvaluator[person](predicate.NewExprEvaluator()),
		WithFilterExpression[person]("older", "row.Age > value"),
	)
	result, err := source.Query(context.Background(), grid.Snapshot{Page: 1, Size: 10, Filters: grid.Filters{"older": 30}})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got := ids(result.Rows); got != "1,3,5" {
		t.Fatalf("expected 1,3,5, got %q", got)
	}
}

func TestSliceFilterExpressionWithRowVars(t *testing.T) {
	source := NewSlice(people(),
		WithEvaluator[person](predicate.NewCELEvaluator()),
		WithRowVars(func(p person) map[string]any {
			return map[string]any{"team": p.Team, "age": p.Age}
		}),
		WithFilterExpression[person]("team", "row.team == value"),
	)
	result, err := source.Query(context.Background(), grid.Snapshot{Page: 1, Size: 10, Filters: grid.Filters{"team": "ops"}})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got := ids(result.Rows); got != "2,5" {
		t.Fatalf("expected 2,5, got %q", got)
	}
}

func TestSliceExpressionWithoutEvaluator(t *testing.T) {
	source := NewSlice(people(), WithFilterExpression[person]("x", "true"))
	_, err := source.Query(context.Background(), grid.NewSnapshot(10))
	if !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
}

func TestSliceMatchingIDsAndSetRows(t *testing.T) {
	source := NewSlice(people())
	got, err := source.MatchingIDs(context.Background(), grid.Filters{"team": "core", "ignored": ""}, func(p person) string { return p.ID })
	if err != nil {
		t.Fatalf("matching ids: %v", err)
	}
	if strings.Join(got, ",") != "1,3" {
		t.Fatalf("expected 1,3, got %v", got)
	}

	source.SetRows(people()[:1])
	result, _ := source.Query(context.Background(), grid.NewSnapshot(10))
	if result.TotalOr(0) != 1 {
		t.Fatalf("expected one row after SetRows, got %d", result.TotalOr(0))
	}
}

func TestFieldAccessorMaps(t *testing.T) {
	rows := []map[string]any{{"id": "a", "n": 2}, {"id": "b", "n": 1}}
	source := NewSlice(rows)
	result, err := source.Query(context.Background(), grid.Snapshot{Page: 1, Size: 5, Sort: []grid.SortRule{{Field: "n", Order: grid.SortAsc}}})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if result.Rows[0]["id"] != "b" {
		t.Fatalf("expected map rows sorted by n, got %v", result.Rows)
	}
}
