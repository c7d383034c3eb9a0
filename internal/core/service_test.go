package core

import (
	"context"
	"testing"

	"neurostore/internal/blob"
	"neurostore/internal/infra/persistence/memory"
	"neurostore/pkg/domain"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewService(memory.NewStore(), blob.NewMemory(), t.TempDir(), opts...)
}

func mustAttrs(t *testing.T, pairs []domain.Attribute) *domain.AttributeSet {
	t.Helper()
	attrs, err := domain.NewAttributeSet(nil, pairs)
	if err != nil {
		t.Fatalf("build attributes: %v", err)
	}
	return attrs
}

func TestCreateSubjectGeneratesIdentifier(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	subject, err := svc.CreateSubject(ctx, "", mustAttrs(t, []domain.Attribute{{Name: "species", Value: "human"}}), false)
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	if subject.ID == "" {
		t.Fatal("expected a generated identifier")
	}
	if subject.Type != domain.TypeSubject {
		t.Fatalf("expected subject type, got %s", subject.Type)
	}

	got, err := svc.GetObject(ctx, domain.TypeSubject, subject.ID)
	if err != nil {
		t.Fatalf("get subject: %v", err)
	}
	if v, ok := got.Attributes.Get("species"); !ok || v != "human" {
		t.Fatalf("expected species=human, got %v (present=%v)", v, ok)
	}
}

func TestCreateSubjectDuplicateIdentifier(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateSubject(ctx, "subj-1", nil, false); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	_, err := svc.CreateSubject(ctx, "subj-1", nil, false)
	if !domain.IsKind(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate identifier error, got %v", err)
	}
}

func TestCreateImageGroupValidatesMembers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	img, err := svc.CreateImage(ctx, nil, false)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}

	_, err = svc.CreateImageGroup(ctx, "", []domain.GroupImage{
		{ImageID: "missing", Folder: "anat", Name: "t1.nii"},
	}, nil, false)
	if !domain.IsKind(err, domain.ErrReferenceNotFound) {
		t.Fatalf("expected reference error for missing image, got %v", err)
	}

	_, err = svc.CreateImageGroup(ctx, "", []domain.GroupImage{
		{ImageID: img.ID, Folder: "anat", Name: "t1.nii"},
		{ImageID: img.ID, Folder: "anat", Name: "t1.nii"},
	}, nil, false)
	if !domain.IsKind(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate member error, got %v", err)
	}

	group, err := svc.CreateImageGroup(ctx, "grp-1", []domain.GroupImage{
		{ImageID: img.ID, Folder: "anat", Name: "t1.nii"},
		{ImageID: img.ID, Folder: "func", Name: "bold.nii"},
	}, nil, false)
	if err != nil {
		t.Fatalf("create image group: %v", err)
	}
	got, err := svc.GetImageGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("get image group: %v", err)
	}
	if len(got.Members) != 2 || got.Members[0].Folder != "anat" || got.Members[1].Name != "bold.nii" {
		t.Fatalf("unexpected members: %+v", got.Members)
	}
}

func TestUpdateAttributes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	subject, err := svc.CreateSubject(ctx, "subj-1", nil, false)
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	rec, err := svc.UpdateAttributes(ctx, domain.TypeSubject, subject.ID, []domain.Attribute{
		{Name: "age", Value: 42},
	})
	if err != nil {
		t.Fatalf("update attributes: %v", err)
	}
	attrs, err := domain.AttributeSetFromRecord(rec["attributes"])
	if err != nil {
		t.Fatalf("decode attributes: %v", err)
	}
	if v, ok := attrs.Get("age"); !ok || v != 42 {
		t.Fatalf("expected age=42, got %v (present=%v)", v, ok)
	}
	if _, ok := attrs.Get(attrUpdatedAt); !ok {
		t.Fatal("expected an update timestamp attribute")
	}
}

func TestUpdateAttributesReadOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	subject, err := svc.CreateSubject(ctx, "", nil, true)
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	_, err = svc.UpdateAttributes(ctx, domain.TypeSubject, subject.ID, []domain.Attribute{
		{Name: "age", Value: 42},
	})
	if !domain.IsKind(err, domain.ErrReadOnlyViolation) {
		t.Fatalf("expected read-only violation, got %v", err)
	}
}

func TestDeleteObject(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	subject, err := svc.CreateSubject(ctx, "", nil, false)
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	if err := svc.DeleteObject(ctx, domain.TypeSubject, subject.ID); err != nil {
		t.Fatalf("delete subject: %v", err)
	}
	_, err = svc.GetObject(ctx, domain.TypeSubject, subject.ID)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestListObjectsOrderedAndFiltered(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if _, err := svc.CreateSubject(ctx, id, nil, false); err != nil {
			t.Fatalf("create subject %s: %v", id, err)
		}
	}
	all, err := svc.ListObjects(ctx, domain.TypeSubject, nil)
	if err != nil {
		t.Fatalf("list subjects: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a" || all[1].ID != "b" || all[2].ID != "c" {
		t.Fatalf("expected identifier order, got %+v", all)
	}

	filtered, err := svc.ListObjects(ctx, domain.TypeSubject, func(rec domain.Record) bool {
		return domain.RecordID(rec) != "b"
	})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(filtered))
	}
}

func TestClearCollectionAndReset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateSubject(ctx, "s1", nil, false); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	if _, err := svc.CreateModel(ctx, nil, false); err != nil {
		t.Fatalf("create model: %v", err)
	}

	if err := svc.ClearCollection(ctx, domain.TypeSubject); err != nil {
		t.Fatalf("clear subjects: %v", err)
	}
	subjects, err := svc.ListObjects(ctx, domain.TypeSubject, nil)
	if err != nil {
		t.Fatalf("list subjects: %v", err)
	}
	if len(subjects) != 0 {
		t.Fatalf("expected empty subject collection, got %d", len(subjects))
	}
	models, err := svc.ListObjects(ctx, domain.TypeModel, nil)
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected models untouched, got %d", len(models))
	}

	if err := svc.ResetStore(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	models, err = svc.ListObjects(ctx, domain.TypeModel, nil)
	if err != nil {
		t.Fatalf("list models after reset: %v", err)
	}
	if len(models) != 0 {
		t.Fatalf("expected empty store after reset, got %d models", len(models))
	}

	if err := svc.ClearCollection(ctx, domain.ResourceType("bogus")); err == nil {
		t.Fatal("expected error for unknown resource type")
	}
}
