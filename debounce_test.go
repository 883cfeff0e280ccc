package grid

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncerCommitsLastValue(t *testing.T) {
	committed := make(chan string, 4)
	d := NewDebouncer(20*time.Millisecond, func(v string) { committed <- v })

	d.Push("a")
	d.Push("ab")
	d.Push("abc")

	select {
	case got := <-committed:
		if got != "abc" {
			t.Fatalf("expected trailing value abc, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("debouncer never fired")
	}
	select {
	case extra := <-committed:
		t.Fatalf("expected a single commit, got extra %q", extra)
	case <-time.After(60 * time.Millisecond):
	}
	if d.Pending() {
		t.Fatalf("nothing should be pending after commit")
	}
}

func TestDebouncerFlushAndCancel(t *testing.T) {
	var mu sync.Mutex
	var commits []int
	d := NewDebouncer(time.Hour, func(v int) {
		mu.Lock()
		commits = append(commits, v)
		mu.Unlock()
	})

	if d.Flush() {
		t.Fatalf("flush without a pending value must report false")
	}
	d.Push(1)
	if !d.Pending() || !d.Flush() {
		t.Fatalf("flush must commit the pending value")
	}
	d.Push(2)
	d.Cancel()
	d.Push(3)
	if d.Flush() || d.Pending() {
		t.Fatalf("nothing may commit after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(commits) != 1 || commits[0] != 1 {
		t.Fatalf("unexpected commits %v", commits)
	}
}

func TestSearchBindingCommitsTrimmedFilter(t *testing.T) {
	adapter := NewMemoryAdapter(Snapshot{Page: 4, Size: 10})
	binding := NewSearchBinding(adapter, "q", time.Hour)
	defer binding.Close()

	binding.Input("  jo")
	binding.Input("  john  ")
	if adapter.Snapshot().Filters["q"] != nil {
		t.Fatalf("nothing should commit before Enter or the delay")
	}
	if !binding.Commit() {
		t.Fatalf("commit should flush the pending text")
	}
	got := adapter.Snapshot()
	if got.Filters["q"] != "john" || got.Page != 1 {
		t.Fatalf("unexpected snapshot %+v", got)
	}

	binding.Input("   ")
	binding.Commit()
	if _, ok := adapter.Snapshot().Filters["q"]; ok {
		t.Fatalf("blank search must clear the filter")
	}
}
