package columns

import (
	"context"
	"reflect"
	"testing"
	"time"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/pkg/prefs"
)

type row struct{ ID string }

var testColumns = []grid.Column{
	{ID: "a", Size: 100, MinSize: 50, MaxSize: 200},
	{ID: "b", DefaultHidden: true},
	{ID: "name", AlwaysVisible: true, DefaultPin: grid.PinLeft},
}

func seed(t *testing.T, backend *prefs.MemoryBackend, kind string, version int, value any) {
	t.Helper()
	payload, err := prefs.EncodeEnvelope(version, time.Unix(0, 0), value)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	key, _ := prefs.Key{Table: "users", Kind: kind}.Identifier()
	if err := backend.Save(context.Background(), key, payload); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func scope(backend prefs.Backend) Options {
	return Options{Prefs: prefs.Scope{Backend: backend, Table: "users"}}
}

func TestSizingClampsStoredWidth(t *testing.T) {
	backend := prefs.NewMemoryBackend()
	seed(t, backend, SizingName, sizingVersion, map[string]int{"a": 10, "gone": 300})

	f := NewSizing[row](testColumns, scope(backend))
	want := map[string]int{"a": 50, "b": DefaultSize, "name": DefaultSize}
	if got := f.Sizes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !f.Ready() {
		t.Fatalf("sync backend must be ready at construction")
	}

	if applied, ok := f.SetSize("a", 999); !ok || applied != 200 {
		t.Fatalf("expected clamp to 200, got %d %v", applied, ok)
	}
	if _, ok := f.SetSize("unknown", 10); ok {
		t.Fatalf("unknown column must be ignored")
	}

	reloaded := NewSizing[row](testColumns, scope(backend))
	if reloaded.Sizes()["a"] != 200 {
		t.Fatalf("expected persisted width, got %v", reloaded.Sizes())
	}
}

func TestSizingMigratesNestedWidths(t *testing.T) {
	backend := prefs.NewMemoryBackend()
	seed(t, backend, SizingName, 1, map[string]any{"widths": map[string]int{"a": 120, "old": 80}})

	f := NewSizing[row](testColumns, scope(backend))
	if got := f.Sizes()["a"]; got != 120 {
		t.Fatalf("expected migrated width 120, got %v", f.Sizes())
	}
	if _, ok := f.Sizes()["old"]; ok {
		t.Fatalf("unknown column must be dropped")
	}
}

func TestVisibilityKeepsAlwaysVisible(t *testing.T) {
	backend := prefs.NewMemoryBackend()
	seed(t, backend, VisibilityName, 1, map[string]bool{"name": false, "b": true})

	f := NewVisibility[row](testColumns, scope(backend))
	want := map[string]bool{"a": true, "b": true, "name": true}
	if got := f.Visibility(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	f.SetVisible("name", false)
	if !f.IsVisible("name") {
		t.Fatalf("always visible column was hidden")
	}

	f.Reset()
	if f.IsVisible("b") {
		t.Fatalf("expected default hidden after reset")
	}
	if len(backend.Keys()) != 0 {
		t.Fatalf("expected stored envelope removed, got %v", backend.Keys())
	}
}

func TestPinningAndOrder(t *testing.T) {
	backend := prefs.NewMemoryBackend()
	seed(t, backend, OrderName, 1, []string{"name", "gone", "a"})

	order := NewOrder[row](testColumns, scope(backend))
	if got := order.Order(); !reflect.DeepEqual(got, []string{"name", "a", "b"}) {
		t.Fatalf("unexpected merged order %v", got)
	}
	if got := order.SetOrder([]string{"b"}); !reflect.DeepEqual(got, []string{"b", "a", "name"}) {
		t.Fatalf("unexpected order after set %v", got)
	}

	pinning := NewPinning[row](testColumns, scope(backend))
	if got := pinning.Pinned(grid.PinLeft); !reflect.DeepEqual(got, []string{"name"}) {
		t.Fatalf("expected default pin, got %v", got)
	}
	if pinning.SetPin("a", grid.Pin("top")) {
		t.Fatalf("invalid side must be refused")
	}
	pinning.SetPin("a", grid.PinRight)
	if got := pinning.Pinned(grid.PinRight); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected a pinned right, got %v", got)
	}
}

func TestNotReadyUntilInitialRead(t *testing.T) {
	backend := prefs.NewMemoryBackend()
	seed(t, backend, SizingName, sizingVersion, map[string]int{"a": 180})

	f := NewSizing[row](testColumns, scope(prefs.SaveOnly(backend)))
	runtime := f.Runtime(grid.FeatureContext[row]{})
	if runtime.PatchActivity(grid.Activity{Ready: true}).Ready {
		t.Fatalf("activity must not be ready before the initial read")
	}
	if f.Sizes()["a"] != 100 {
		t.Fatalf("expected defaults before the read, got %v", f.Sizes())
	}

	if err := f.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	runtime = f.Runtime(grid.FeatureContext[row]{})
	if !runtime.PatchActivity(grid.Activity{Ready: true}).Ready {
		t.Fatalf("activity must be ready after the initial read")
	}
	if f.Sizes()["a"] != 180 {
		t.Fatalf("expected stored width, got %v", f.Sizes())
	}
}

func TestRuntimePatchesState(t *testing.T) {
	f := NewSizing[row](testColumns, Options{})
	runtime := f.Runtime(grid.FeatureContext[row]{})
	options := runtime.PatchTableOptions(grid.TableOptions[row]{})
	if !grid.Enabled(options.EnableColumnResizing) {
		t.Fatalf("expected resizing enabled")
	}
	if got := grid.ColumnSizingState.Must(options.State)["a"]; got != 100 {
		t.Fatalf("expected sizing state, got %v", options.State)
	}

	disabled := NewSizing[row](testColumns, Options{Disabled: true})
	if disabled.Enabled() || disabled.Runtime(grid.FeatureContext[row]{}).PatchTableOptions != nil {
		t.Fatalf("disabled feature must return an empty runtime")
	}
}
