package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestBackendRoundTripOnStub(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	ctx := context.Background()
	backend, err := Open(ctx, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(conn.execs) == 0 || !strings.Contains(conn.execs[0], "CREATE TABLE IF NOT EXISTS grid_prefs") {
		t.Fatalf("expected table ddl, got %v", conn.execs)
	}

	if _, ok, err := backend.Load(ctx, "grid/users/columnOrder"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := backend.Save(ctx, "grid/users/columnOrder", []byte(`{"schemaVersion":1,"value":["a"]}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	payload, ok, err := backend.Load(ctx, "grid/users/columnOrder")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if string(payload) != `{"schemaVersion":1,"value":["a"]}` {
		t.Fatalf("unexpected payload %s", payload)
	}
	if err := backend.Delete(ctx, "grid/users/columnOrder"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := backend.Load(ctx, "grid/users/columnOrder"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestBackendFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		db, conn := newStubDB()
		conn.failPing = true
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
		defer restore()
		if _, err := Open(ctx, "postgres://example"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
			t.Fatalf("expected ping error, got %v", err)
		}
	})

	t.Run("ddl", func(t *testing.T) {
		db, conn := newStubDB()
		conn.failExec = true
		if _, err := New(ctx, db); err == nil {
			t.Fatalf("expected ddl error")
		}
	})

	t.Run("query and exec", func(t *testing.T) {
		db, conn := newStubDB()
		backend, err := New(ctx, db)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		conn.failQuery = true
		conn.failExec = true
		if _, _, err := backend.Load(ctx, "k"); err == nil {
			t.Fatalf("expected load error")
		}
		if err := backend.Save(ctx, "k", []byte(`{}`)); err == nil {
			t.Fatalf("expected save error")
		}
		if err := backend.Delete(ctx, "k"); err == nil {
			t.Fatalf("expected delete error")
		}
	})
}
