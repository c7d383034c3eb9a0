package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}

	if _, err := store.Put(ctx, "runs/r1/a.bin", strings.NewReader("aaa"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "runs/r1/a.bin", strings.NewReader("bbb"), PutOptions{}); err == nil {
		t.Fatal("expected duplicate put to fail")
	}
	if _, err := store.Put(ctx, "runs/r2/b.bin", strings.NewReader("bb"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, rc, err := store.Get(ctx, "runs/r1/a.bin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "aaa" {
		t.Fatalf("body = %q", body)
	}

	infos, err := store.List(ctx, "runs/r1/")
	if err != nil || len(infos) != 1 || infos[0].Key != "runs/r1/a.bin" {
		t.Fatalf("list: %v %+v", err, infos)
	}

	if _, err := store.PresignURL(ctx, "runs/r1/a.bin", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("presign should be unsupported, got %v", err)
	}
}
