package fs

import (
	"context"
	"reflect"
	"testing"
)

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok, err := backend.Load(ctx, "grid/users/density"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := backend.Save(ctx, "grid/users/density", []byte(`"compact"`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := backend.Save(ctx, "grid/users/user/u1/columnOrder", []byte(`[]`)); err != nil {
		t.Fatalf("save nested: %v", err)
	}
	payload, ok, err := backend.LoadSync("grid/users/density")
	if err != nil || !ok || string(payload) != `"compact"` {
		t.Fatalf("unexpected load %s ok=%v err=%v", payload, ok, err)
	}
	keys, err := backend.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	expect := []string{"grid/users/density", "grid/users/user/u1/columnOrder"}
	if !reflect.DeepEqual(keys, expect) {
		t.Fatalf("expected keys %v, got %v", expect, keys)
	}
	if err := backend.Delete(ctx, "grid/users/density"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := backend.Delete(ctx, "grid/users/density"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestBackendRejectsUnsafeKeys(t *testing.T) {
	backend, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "   ", "../escape", "/abs/key", "grid/../../x"} {
		if err := backend.Save(context.Background(), key, []byte(`{}`)); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}
