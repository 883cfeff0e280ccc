package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "prefs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = backend.Close() }()

	if _, ok, err := backend.Load(ctx, "grid/users/density"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := backend.Save(ctx, "grid/users/density", []byte(`{"schemaVersion":1,"value":"compact"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := backend.Save(ctx, "grid/users/density", []byte(`{"schemaVersion":1,"value":"comfortable"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	payload, ok, err := backend.LoadSync("grid/users/density")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if string(payload) != `{"schemaVersion":1,"value":"comfortable"}` {
		t.Fatalf("unexpected payload %s", payload)
	}

	if err := backend.Save(ctx, "grid/orders/columnSizing", []byte(`{}`)); err != nil {
		t.Fatalf("save second key: %v", err)
	}
	keys, err := backend.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "grid/orders/columnSizing" {
		t.Fatalf("unexpected keys %v", keys)
	}

	if err := backend.Delete(ctx, "grid/users/density"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := backend.Delete(ctx, "grid/users/density"); err != nil {
		t.Fatalf("delete of missing key should succeed: %v", err)
	}
	if _, ok, _ := backend.Load(ctx, "grid/users/density"); ok {
		t.Fatalf("expected key to be gone")
	}
}

func TestBackendSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")
	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Save(ctx, "k", []byte(`{"value":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = first.Close()

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = second.Close() }()
	payload, ok, err := second.Load(ctx, "k")
	if err != nil || !ok || string(payload) != `{"value":1}` {
		t.Fatalf("unexpected reload result %s ok=%v err=%v", payload, ok, err)
	}
}

func TestOpenErrorIsWrapped(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return nil, errors.New("boom")
	})
	defer restore()
	if _, err := Open(context.Background(), ":memory:"); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestNewRequiresDB(t *testing.T) {
	if _, err := New(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}
