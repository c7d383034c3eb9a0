package core

import (
	"context"
	"path/filepath"
	"testing"

	"neurostore/internal/infra/persistence/memory"
	"neurostore/internal/infra/persistence/sqlite"
)

func TestOpenStoreMemory(t *testing.T) {
	t.Setenv("NEUROSTORE_STORAGE_DRIVER", "memory")
	store, err := OpenStore(context.Background())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	t.Setenv("NEUROSTORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("NEUROSTORE_SQLITE_PATH", path)

	store, err := OpenStore(context.Background())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()
	sq, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	if sq.Path() != path {
		t.Fatalf("expected path %q, got %q", path, sq.Path())
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	t.Setenv("NEUROSTORE_STORAGE_DRIVER", "etcd")
	if _, err := OpenStore(context.Background()); err == nil {
		t.Fatal("expected unknown driver error")
	}
}
