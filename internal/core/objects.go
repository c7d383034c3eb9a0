package core

import (
	"context"
	"fmt"
	"time"

	"neurostore/pkg/domain"
)

// attrUpdatedAt is stamped on every mutation so listings can sort by recency.
const attrUpdatedAt = "updated_at"

func (s *Service) newHandle(typ domain.ResourceType, id string, attrs *domain.AttributeSet, readOnly bool) domain.ObjectHandle {
	if id == "" {
		id = s.newID()
	}
	if attrs == nil {
		attrs, _ = domain.NewAttributeSet(nil, nil)
	}
	return domain.ObjectHandle{
		ID:         id,
		Type:       typ,
		ReadOnly:   readOnly,
		CreatedAt:  s.now(),
		Attributes: attrs,
	}
}

// createObject inserts a plain handle-only resource.
func (s *Service) createObject(ctx context.Context, op string, typ domain.ResourceType, id string, attrs *domain.AttributeSet, readOnly bool) (domain.ObjectHandle, error) {
	var handle domain.ObjectHandle
	err := s.instrument(ctx, op, func(ctx context.Context) error {
		handle = s.newHandle(typ, id, attrs, readOnly)
		return s.store.Insert(ctx, typ.Collection(), handle.ID, handle.ToRecord())
	})
	if err != nil {
		return domain.ObjectHandle{}, err
	}
	return handle, nil
}

// CreateSubject registers a subject. An empty id asks for a generated one;
// caller-supplied identifiers collide with ErrDuplicateIdentifier.
func (s *Service) CreateSubject(ctx context.Context, id string, attrs *domain.AttributeSet, readOnly bool) (domain.ObjectHandle, error) {
	return s.createObject(ctx, "subject.create", domain.TypeSubject, id, attrs, readOnly)
}

// CreateImage registers a single image resource.
func (s *Service) CreateImage(ctx context.Context, attrs *domain.AttributeSet, readOnly bool) (domain.ObjectHandle, error) {
	return s.createObject(ctx, "image.create", domain.TypeImage, "", attrs, readOnly)
}

// CreateModel registers a predictive model.
func (s *Service) CreateModel(ctx context.Context, attrs *domain.AttributeSet, readOnly bool) (domain.ObjectHandle, error) {
	return s.createObject(ctx, "model.create", domain.TypeModel, "", attrs, readOnly)
}

// CreatePredictionResult registers a prediction result resource.
func (s *Service) CreatePredictionResult(ctx context.Context, attrs *domain.AttributeSet, readOnly bool) (domain.ObjectHandle, error) {
	return s.createObject(ctx, "prediction_result.create", domain.TypePredictionResult, "", attrs, readOnly)
}

// CreatePredictionImageSet registers a prediction image set resource.
func (s *Service) CreatePredictionImageSet(ctx context.Context, attrs *domain.AttributeSet, readOnly bool) (domain.ObjectHandle, error) {
	return s.createObject(ctx, "prediction_image_set.create", domain.TypePredictionImageSet, "", attrs, readOnly)
}

// CreateImageGroup registers a group of image references. Every member image
// must resolve, and folder/name pairs must be unique within the group.
func (s *Service) CreateImageGroup(ctx context.Context, id string, members []domain.GroupImage, attrs *domain.AttributeSet, readOnly bool) (domain.ImageGroup, error) {
	var group domain.ImageGroup
	err := s.instrument(ctx, "image_group.create", func(ctx context.Context) error {
		seen := make(map[string]struct{}, len(members))
		for _, m := range members {
			key := m.Folder + "/" + m.Name
			if _, dup := seen[key]; dup {
				return domain.NewError(domain.ErrDuplicateIdentifier, "image %s listed twice in group", key)
			}
			seen[key] = struct{}{}
			if _, err := s.store.Get(ctx, domain.TypeImage.Collection(), m.ImageID); err != nil {
				if domain.IsKind(err, domain.ErrNotFound) {
					return domain.NewError(domain.ErrReferenceNotFound, "image %s does not exist", m.ImageID)
				}
				return err
			}
		}
		group = domain.ImageGroup{
			ObjectHandle: s.newHandle(domain.TypeImageGroup, id, attrs, readOnly),
			Members:      append([]domain.GroupImage(nil), members...),
		}
		return s.store.Insert(ctx, domain.TypeImageGroup.Collection(), group.ID, group.ToRecord())
	})
	if err != nil {
		return domain.ImageGroup{}, err
	}
	return group, nil
}

// GetObject returns the handle stored under id.
func (s *Service) GetObject(ctx context.Context, typ domain.ResourceType, id string) (domain.ObjectHandle, error) {
	var handle domain.ObjectHandle
	err := s.instrument(ctx, "object.get", func(ctx context.Context) error {
		rec, err := s.store.Get(ctx, typ.Collection(), id)
		if err != nil {
			return err
		}
		handle, err = domain.ObjectFromRecord(rec)
		return err
	})
	if err != nil {
		return domain.ObjectHandle{}, err
	}
	return handle, nil
}

// GetImageGroup returns the image group stored under id.
func (s *Service) GetImageGroup(ctx context.Context, id string) (domain.ImageGroup, error) {
	var group domain.ImageGroup
	err := s.instrument(ctx, "image_group.get", func(ctx context.Context) error {
		rec, err := s.store.Get(ctx, domain.TypeImageGroup.Collection(), id)
		if err != nil {
			return err
		}
		group, err = domain.ImageGroupFromRecord(rec)
		return err
	})
	if err != nil {
		return domain.ImageGroup{}, err
	}
	return group, nil
}

// ListObjects returns handles in the collection, ordered by identifier.
func (s *Service) ListObjects(ctx context.Context, typ domain.ResourceType, filter func(domain.Record) bool) ([]domain.ObjectHandle, error) {
	var handles []domain.ObjectHandle
	err := s.instrument(ctx, "object.list", func(ctx context.Context) error {
		recs, err := s.store.List(ctx, typ.Collection(), filter)
		if err != nil {
			return err
		}
		handles = make([]domain.ObjectHandle, 0, len(recs))
		for _, rec := range recs {
			h, err := domain.ObjectFromRecord(rec)
			if err != nil {
				return err
			}
			handles = append(handles, h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handles, nil
}

// UpdateAttributes applies attribute changes to a stored resource and stamps
// the update time. Read-only resources reject the mutation. Fields beyond
// the shared handle (file indexes, run state) pass through untouched.
func (s *Service) UpdateAttributes(ctx context.Context, typ domain.ResourceType, id string, changes []domain.Attribute) (domain.Record, error) {
	var updated domain.Record
	err := s.instrument(ctx, "object.update_attributes", func(ctx context.Context) error {
		rec, err := s.store.Get(ctx, typ.Collection(), id)
		if err != nil {
			return err
		}
		if domain.RecordReadOnly(rec) {
			return domain.NewError(domain.ErrReadOnlyViolation, "%s %s is read-only", typ, id)
		}
		attrs, err := domain.AttributeSetFromRecord(rec["attributes"])
		if err != nil {
			return err
		}
		for _, c := range changes {
			if err := attrs.Set(c.Name, c.Value); err != nil {
				return err
			}
		}
		if err := attrs.Set(attrUpdatedAt, s.now().Format(time.RFC3339Nano)); err != nil {
			return err
		}
		rec["attributes"] = attrs.ToRecord()
		if err := s.store.Put(ctx, typ.Collection(), id, rec); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteObject removes a resource and whatever it owns on disk or in blob
// storage: functional data releases its canonical directory, model runs
// release their attachment payloads.
func (s *Service) DeleteObject(ctx context.Context, typ domain.ResourceType, id string) error {
	switch typ {
	case domain.TypeFunctionalData:
		return s.deleteFunctionalData(ctx, id)
	case domain.TypeModelRun:
		return s.deleteModelRun(ctx, id)
	}
	return s.instrument(ctx, "object.delete", func(ctx context.Context) error {
		return s.store.Delete(ctx, typ.Collection(), id)
	})
}

// ClearCollection removes every resource of one type. Destructive; exposed
// for initialization and test contexts via the admin tool.
func (s *Service) ClearCollection(ctx context.Context, typ domain.ResourceType) error {
	if !typ.Valid() {
		return fmt.Errorf("unknown resource type %q", typ)
	}
	return s.instrument(ctx, "store.clear_collection", func(ctx context.Context) error {
		return s.store.ClearCollection(ctx, typ.Collection())
	})
}

// ResetStore removes every resource of every type. Destructive.
func (s *Service) ResetStore(ctx context.Context) error {
	return s.instrument(ctx, "store.reset", func(ctx context.Context) error {
		return s.store.Reset(ctx)
	})
}
