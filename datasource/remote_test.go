package datasource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	grid "github.com/goliatone/go-grid"
)

func countingFetch(calls *atomic.Int32) FetchFunc[string] {
	return func(_ context.Context, snapshot grid.Snapshot) (grid.DataResult[string], error) {
		calls.Add(1)
		return grid.DataResult[string]{Rows: []string{snapshot.Fingerprint()}, PageCount: 1}, nil
	}
}

func TestRemoteCachesByFingerprint(t *testing.T) {
	var calls atomic.Int32
	var observed []string
	remote, err := NewRemote(countingFetch(&calls), WithRemoteMetrics(grid.MetricsRecorderFunc(
		func(_ context.Context, op string, _ bool, _ time.Duration) { observed = append(observed, op) },
	)))
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}

	ctx := context.Background()
	first := grid.NewSnapshot(10).WithFilter("q", "a")
	if _, err := remote.Query(ctx, first); err != nil {
		t.Fatalf("query: %v", err)
	}
	// same query, different map identity and an empty filter that compacts away
	again := grid.Snapshot{Page: 1, Size: 10, Filters: grid.Filters{"q": "a", "x": ""}}
	if _, err := remote.Query(ctx, again); err != nil {
		t.Fatalf("query: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one fetch, got %d", calls.Load())
	}
	if len(observed) != 2 || observed[0] != "datasource.remote.fetch" || observed[1] != "datasource.remote.cache_hit" {
		t.Fatalf("unexpected metrics %v", observed)
	}

	remote.Invalidate(first)
	if _, err := remote.Query(ctx, first); err != nil {
		t.Fatalf("query: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected refetch after invalidate, got %d", calls.Load())
	}
	remote.Purge()
	if remote.Len() != 0 {
		t.Fatalf("expected empty cache after purge")
	}
}

func TestRemoteTTL(t *testing.T) {
	var calls atomic.Int32
	now := time.Unix(0, 0)
	remote, _ := NewRemote(countingFetch(&calls),
		WithTTL(time.Minute),
		WithRemoteClock(func() time.Time { return now }),
	)
	ctx := context.Background()
	snapshot := grid.NewSnapshot(5)
	remote.Query(ctx, snapshot)
	now = now.Add(30 * time.Second)
	remote.Query(ctx, snapshot)
	now = now.Add(2 * time.Minute)
	remote.Query(ctx, snapshot)
	if calls.Load() != 2 {
		t.Fatalf("expected expiry to force a second fetch, got %d", calls.Load())
	}
}

func TestRemoteSharesInFlightFetch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	entered := make(chan struct{}, 8)
	remote, _ := NewRemote(func(ctx context.Context, snapshot grid.Snapshot) (grid.DataResult[string], error) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
		return grid.DataResult[string]{Rows: []string{"x"}}, nil
	}, WithCacheSize(0))

	var wg sync.WaitGroup
	ctx := context.Background()
	snapshot := grid.NewSnapshot(10)
	wg.Add(1)
	go func() {
		defer wg.Done()
		remote.Query(ctx, snapshot)
	}()
	<-entered
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			remote.Query(ctx, snapshot)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if calls.Load() != 1 {
		t.Fatalf("expected in-flight queries to share one fetch, got %d", calls.Load())
	}
}

func TestRemoteDoesNotCacheErrors(t *testing.T) {
	var calls atomic.Int32
	fail := errors.New("boom")
	var logged int
	remote, _ := NewRemote(func(context.Context, grid.Snapshot) (grid.DataResult[int], error) {
		if calls.Add(1) == 1 {
			return grid.DataResult[int]{}, fail
		}
		return grid.DataResult[int]{Rows: []int{1}}, nil
	}, WithRemoteLogger(grid.LoggerFunc(func(grid.LogEvent) { logged++ })))

	ctx := context.Background()
	if _, err := remote.Query(ctx, grid.NewSnapshot(1)); !errors.Is(err, fail) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	result, err := remote.Query(ctx, grid.NewSnapshot(1))
	if err != nil || len(result.Rows) != 1 {
		t.Fatalf("expected retry to succeed, got %v %v", result, err)
	}
	if logged != 1 {
		t.Fatalf("expected failure logged once, got %d", logged)
	}
}
