package prefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-grid/pkg/prefs/fs"
	"github.com/goliatone/go-grid/pkg/prefs/sqlite"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	t.Run("default memory", func(t *testing.T) {
		t.Setenv("GRID_PREFS_DRIVER", "")
		backend, err := Open(ctx)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, ok := backend.(*MemoryBackend); !ok {
			t.Fatalf("expected memory backend, got %T", backend)
		}
	})

	t.Run("fs", func(t *testing.T) {
		t.Setenv("GRID_PREFS_DRIVER", "fs")
		t.Setenv("GRID_PREFS_FS_ROOT", t.TempDir())
		backend, err := Open(ctx)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, ok := backend.(*fs.Backend); !ok {
			t.Fatalf("expected fs backend, got %T", backend)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		t.Setenv("GRID_PREFS_DRIVER", "SQLite")
		t.Setenv("GRID_PREFS_SQLITE_PATH", filepath.Join(t.TempDir(), "prefs.db"))
		backend, err := Open(ctx)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		sb, ok := backend.(*sqlite.Backend)
		if !ok {
			t.Fatalf("expected sqlite backend, got %T", backend)
		}
		_ = sb.Close()
	})

	t.Run("unknown", func(t *testing.T) {
		t.Setenv("GRID_PREFS_DRIVER", "redis")
		if _, err := Open(ctx); err == nil {
			t.Fatalf("expected unknown driver error")
		}
	})
}

func TestStoreOverSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	backend, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = backend.Close() }()

	store, err := NewStore(backend, Definition[map[string]int]{
		Kind:    "columnSizing",
		Version: 1,
		Defaults: func(schema Schema) map[string]int {
			out := map[string]int{}
			for _, id := range schema.ColumnIDs {
				out[id] = 100
			}
			return out
		},
		Merge: func(defaults, stored map[string]int, schema Schema) map[string]int {
			return MergeColumns(schema.ColumnIDs, defaults, stored, func(_ string, v int) int { return Clamp(v, 50, 400) })
		},
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	schema := Schema{ColumnIDs: []string{"name", "email"}}
	if _, err := store.Set(ctx, "grid/users/columnSizing", map[string]int{"name": 900, "gone": 10}, schema); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get(ctx, "grid/users/columnSizing", schema)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 || got["name"] != 400 || got["email"] != 100 {
		t.Fatalf("unexpected merged value %v", got)
	}
	if !store.CanGetSync() {
		t.Fatalf("sqlite backend should support sync reads")
	}
}
