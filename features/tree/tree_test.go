package tree

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/features/internal/hosttest"
)

type node struct {
	ID       string
	Children []node
}

func nodeID(n node) string { return n.ID }

func subRows(n node) []node { return n.Children }

func fixture() []node {
	return []node{
		{ID: "a", Children: []node{
			{ID: "a1", Children: []node{{ID: "a1x"}}},
			{ID: "a2"},
		}},
		{ID: "b"},
	}
}

func TestExpandWithEmptyChildrenCollapses(t *testing.T) {
	host := hosttest.New(grid.NewSnapshot(10))
	f := New(Options[node]{
		RowID: nodeID,
		LoadChildren: func(context.Context, string) ([]node, error) {
			return []node{}, nil
		},
	})
	f.Attach(host)

	if err := f.Expand(context.Background(), "leaf"); err != nil {
		t.Fatalf("expand: %v", err)
	}
	if f.IsExpanded("leaf") {
		t.Fatalf("expected row collapsed after empty load")
	}
	view := f.View()
	if len(view.LoadingRowIDs) != 0 {
		t.Fatalf("expected no loading rows, got %v", view.LoadingRowIDs)
	}
	if got := host.Observed(); !reflect.DeepEqual(got, []string{"tree.load_children"}) {
		t.Fatalf("expected load metric, got %v", got)
	}
}

func TestExpandLoadsOnceAndCaches(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex
	f := New(Options[node]{
		RowID: nodeID,
		LoadChildren: func(_ context.Context, id string) ([]node, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			close(started)
			<-release
			return []node{{ID: id + "-1"}, {ID: id + "-2"}}, nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- f.Expand(context.Background(), "p") }()
	<-started

	if got := f.LoadingRowIDs(); !reflect.DeepEqual(got, []string{"p"}) {
		t.Fatalf("expected p loading, got %v", got)
	}
	if err := f.Expand(context.Background(), "p"); err != nil {
		t.Fatalf("duplicate expand: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("expand: %v", err)
	}

	f.Collapse("p")
	if err := f.Toggle(context.Background(), "p"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected a single load, got %d", calls)
	}
	if got := f.SubRows(node{ID: "p"}); len(got) != 2 {
		t.Fatalf("expected cached children, got %v", got)
	}
	if parent, ok := f.ParentOf("p-2"); !ok || parent != "p" {
		t.Fatalf("expected p-2 under p, got %q %v", parent, ok)
	}
}

func TestSubRowsAccessorSkipsLoading(t *testing.T) {
	loads := 0
	f := New(Options[node]{
		RowID:      nodeID,
		GetSubRows: subRows,
		LoadChildren: func(context.Context, string) ([]node, error) {
			loads++
			return []node{{ID: "extra"}}, nil
		},
	})
	f.DataChanged(grid.NewSnapshot(10), grid.DataResult[node]{Rows: fixture()})

	if err := f.Expand(context.Background(), "a"); err != nil {
		t.Fatalf("expand: %v", err)
	}
	if loads != 0 || !f.IsExpanded("a") {
		t.Fatalf("expected no load with GetSubRows, got loads=%d expanded=%v", loads, f.IsExpanded("a"))
	}
	if got := f.SubRows(fixture()[0]); len(got) != 2 {
		t.Fatalf("expected accessor children, got %v", got)
	}
}

func TestResetDiscardsLoadInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := New(Options[node]{
		RowID: nodeID,
		LoadChildren: func(_ context.Context, id string) ([]node, error) {
			close(started)
			<-release
			return []node{{ID: id + "-1"}}, nil
		},
	})
	var loaded []string
	f.OnChildrenLoaded(func(parent string, ids []string) { loaded = append(loaded, ids...) })

	done := make(chan error, 1)
	go func() { done <- f.Expand(context.Background(), "p") }()
	<-started
	f.Reset()
	if got := f.LoadingRowIDs(); len(got) != 0 {
		t.Fatalf("expected reset to clear loading rows, got %v", got)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("expand: %v", err)
	}

	if got := f.SubRows(node{ID: "p"}); len(got) != 0 {
		t.Fatalf("expected stale children dropped, got %v", got)
	}
	if _, ok := f.ParentOf("p-1"); ok || len(loaded) != 0 {
		t.Fatalf("stale load must not index children, loaded=%v", loaded)
	}
}

func TestExpandFailureCollapsesAndReports(t *testing.T) {
	host := hosttest.New(grid.NewSnapshot(10))
	boom := errors.New("boom")
	f := New(Options[node]{
		RowID:        nodeID,
		LoadChildren: func(context.Context, string) ([]node, error) { return nil, boom },
	})
	f.Attach(host)

	err := f.Expand(context.Background(), "p")
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if f.IsExpanded("p") {
		t.Fatalf("expected row collapsed after failure")
	}
	notices := host.Notices()
	if len(notices) != 1 || notices[0].Code != CodeLoadFailed || notices[0].Blocking() {
		t.Fatalf("expected non-blocking load notice, got %+v", notices)
	}
}

func TestDefaultExpandedDepthMergesPinnedIDs(t *testing.T) {
	f := New(Options[node]{
		RowID:                 nodeID,
		GetSubRows:            subRows,
		DefaultExpandedDepth:  1,
		DefaultExpandedRowIDs: []string{"a1"},
	})
	f.DataChanged(grid.NewSnapshot(10), grid.DataResult[node]{Rows: fixture()})

	got := f.Expanded()
	want := map[string]bool{"a": true, "a1": true}
	if got.All || !reflect.DeepEqual(got.IDs, want) {
		t.Fatalf("expected %v, got %+v", want, got)
	}

	f.Collapse("a")
	f.DataChanged(grid.NewSnapshot(10), grid.DataResult[node]{Rows: fixture()})
	if f.IsExpanded("a") {
		t.Fatalf("depth expansion must only apply to the first result")
	}
}

func TestHierarchyCapabilities(t *testing.T) {
	f := New(Options[node]{RowID: nodeID, GetSubRows: subRows, Cascade: true, AllowNesting: true})
	f.DataChanged(grid.NewSnapshot(10), grid.DataResult[node]{Rows: fixture()})

	if got := f.Descendants("a"); !reflect.DeepEqual(got, []string{"a1", "a2", "a1x"}) {
		t.Fatalf("unexpected descendants %v", got)
	}
	if !f.IsDescendant("a", "a1x") || f.IsDescendant("a1", "a2") || f.IsDescendant("b", "a") {
		t.Fatalf("unexpected descendant checks")
	}
	if _, ok := f.ParentOf("a"); ok {
		t.Fatalf("top-level row must have no parent")
	}
	if !f.CascadeSelection() || !f.AllowNesting() || f.IndentSize() != DefaultIndentSize {
		t.Fatalf("unexpected capabilities")
	}
}

func TestCollapseUnderExpandAll(t *testing.T) {
	f := New(Options[node]{RowID: nodeID, GetSubRows: subRows})
	f.DataChanged(grid.NewSnapshot(10), grid.DataResult[node]{Rows: fixture()})
	f.ExpandAll()
	if !f.Expanded().All {
		t.Fatalf("expected all expanded")
	}
	f.Collapse("a1")
	got := f.Expanded()
	if got.All || !got.IDs["a"] || got.IDs["a1"] {
		t.Fatalf("expected explicit set without a1, got %+v", got)
	}
	f.CollapseAll()
	if f.IsExpanded("a") {
		t.Fatalf("expected everything collapsed")
	}
}

func TestRuntimeUsesEngineRowID(t *testing.T) {
	f := New(Options[node]{
		LoadChildren: func(_ context.Context, id string) ([]node, error) {
			return []node{{ID: id + "/c"}}, nil
		},
	})
	runtime := f.Runtime(grid.FeatureContext[node]{RowID: nodeID})
	actions := runtime.PatchActions(grid.Actions{})
	if err := actions.ExpandRow(context.Background(), "r"); err != nil {
		t.Fatalf("expand: %v", err)
	}

	runtime = f.Runtime(grid.FeatureContext[node]{RowID: nodeID})
	options := runtime.PatchTableOptions(grid.TableOptions[node]{})
	if !grid.Enabled(options.EnableExpanding) {
		t.Fatalf("expected expanding enabled")
	}
	if got := options.GetSubRows(node{ID: "r"}); len(got) != 1 || got[0].ID != "r/c" {
		t.Fatalf("unexpected sub rows %v", got)
	}
	if state := grid.ExpandedStateKey.Must(options.State); !state.IsExpanded("r") {
		t.Fatalf("expected r expanded in table state, got %+v", state)
	}
	view, ok := grid.TreeKey.Get(runtime.PatchMeta(grid.Slots{}))
	if !ok || view.IndentSize != DefaultIndentSize {
		t.Fatalf("unexpected tree slot %+v", view)
	}

	runtime.OnReset()
	if f.IsExpanded("r") || len(f.SubRows(node{ID: "r"})) != 0 {
		t.Fatalf("reset must restore defaults and drop loaded children")
	}
}
