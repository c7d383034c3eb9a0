package memory

import (
	"context"
	"testing"

	"neurostore/pkg/domain"
)

func record(id string, readOnly bool, extra map[string]any) domain.Record {
	rec := domain.Record{
		"identifier":    id,
		"resource_type": "subject",
		"read_only":     readOnly,
		"created_at":    "2026-01-02T03:04:05Z",
		"attributes":    map[string]any{"values": []any{}},
	}
	for k, v := range extra {
		rec[k] = v
	}
	return rec
}

func TestInsertRejectsDuplicateIdentifier(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.Insert(ctx, "subjects", "s1", record("s1", false, nil)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := s.Insert(ctx, "subjects", "s1", record("s1", false, map[string]any{"marker": "second"}))
	if !domain.IsKind(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate_identifier, got %v", err)
	}
	// the losing insert must not have modified the stored record
	got, err := s.Get(ctx, "subjects", "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := got["marker"]; ok {
		t.Fatal("losing insert modified the stored record")
	}
}

func TestPutUpsertsAndEnforcesReadOnly(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.Put(ctx, "subjects", "s1", record("s1", false, nil)); err != nil {
		t.Fatalf("put create: %v", err)
	}
	if err := s.Put(ctx, "subjects", "s1", record("s1", true, nil)); err != nil {
		t.Fatalf("put replace: %v", err)
	}
	err := s.Put(ctx, "subjects", "s1", record("s1", false, nil))
	if !domain.IsKind(err, domain.ErrReadOnlyViolation) {
		t.Fatalf("expected read_only_violation, got %v", err)
	}
	err = s.Delete(ctx, "subjects", "s1")
	if !domain.IsKind(err, domain.ErrReadOnlyViolation) {
		t.Fatalf("expected read_only_violation on delete, got %v", err)
	}
}

func TestGetAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if _, err := s.Get(ctx, "subjects", "nope"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
	if err := s.Delete(ctx, "subjects", "nope"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestGetReturnsDetachedCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rec := record("s1", false, map[string]any{"nested": map[string]any{"k": "v"}})
	if err := s.Insert(ctx, "subjects", "s1", rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, _ := s.Get(ctx, "subjects", "s1")
	got["nested"].(map[string]any)["k"] = "mutated"
	again, _ := s.Get(ctx, "subjects", "s1")
	if again["nested"].(map[string]any)["k"] != "v" {
		t.Fatal("stored record was mutated through a returned copy")
	}
}

func TestListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, id := range []string{"c", "a", "b"} {
		if err := s.Insert(ctx, "subjects", id, record(id, false, nil)); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	all, err := s.List(ctx, "subjects", nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || domain.RecordID(all[0]) != "a" || domain.RecordID(all[2]) != "c" {
		t.Fatalf("unexpected order: %v", all)
	}
	some, err := s.List(ctx, "subjects", func(r domain.Record) bool { return domain.RecordID(r) != "b" })
	if err != nil || len(some) != 2 {
		t.Fatalf("filtered list: %v %d", err, len(some))
	}
}

func TestClearCollectionAndReset(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Insert(ctx, "subjects", "s1", record("s1", true, nil))
	_ = s.Insert(ctx, "models", "m1", record("m1", false, nil))

	if err := s.ClearCollection(ctx, "subjects"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := s.List(ctx, "subjects", nil); len(got) != 0 {
		t.Fatalf("subjects not cleared: %v", got)
	}
	if got, _ := s.List(ctx, "models", nil); len(got) != 1 {
		t.Fatalf("models should be untouched: %v", got)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got, _ := s.List(ctx, "models", nil); len(got) != 0 {
		t.Fatalf("models not reset: %v", got)
	}
}
