package metrics

import (
	"context"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := NewExpvarRecorder("")
	ctx := context.Background()
	rec.Observe(ctx, "grid.query", true, 2*time.Millisecond)
	rec.Observe(ctx, "grid.query", false, 3*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)

	snap := rec.Snapshot()
	if snap.DurationsMS["grid.query"] != 5 {
		t.Fatalf("expected 5ms total, got %v", snap.DurationsMS["grid.query"])
	}
	if snap.Results["grid.query"]["success"] != 1 || snap.Results["grid.query"]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("empty operations must be ignored, got %+v", snap.Results)
	}
	v := expvar.Get(rec.Name())
	if v == nil || !strings.Contains(v.String(), "grid.query") {
		t.Fatalf("expected expvar export for %s", rec.Name())
	}
}

func TestPrometheusRecorderCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(registry, WithNamespace("orders"), WithConstLabels(map[string]string{"table": "orders"}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "grid.query", true, 10*time.Millisecond)
	rec.Observe(ctx, "grid.query", true, 20*time.Millisecond)
	rec.Observe(ctx, "tree.load_children", false, time.Millisecond)

	if got := testutil.ToFloat64(rec.results.WithLabelValues("grid.query", "success")); got != 2 {
		t.Fatalf("expected 2 successful queries, got %v", got)
	}
	if got := testutil.ToFloat64(rec.results.WithLabelValues("tree.load_children", "error")); got != 1 {
		t.Fatalf("expected 1 failed load, got %v", got)
	}
	if got := testutil.CollectAndCount(rec.durations); got != 2 {
		t.Fatalf("expected 2 histogram series, got %d", got)
	}

	expected := `
# HELP orders_operations_total Grid operations by outcome.
# TYPE orders_operations_total counter
orders_operations_total{operation="grid.query",status="success",table="orders"} 2
orders_operations_total{operation="tree.load_children",status="error",table="orders"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "orders_operations_total"); err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}

	if _, err := NewPrometheusRecorder(registry, WithNamespace("orders")); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
