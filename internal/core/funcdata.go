package core

import (
	"context"
	"os"
	"path/filepath"

	"neurostore/pkg/domain"
)

// funcDataDir is the subdirectory of the service data root holding canonical
// functional data directories, one per resource identifier.
const funcDataDir = "funcdata"

// CreateFunctionalData ingests an upload into a fresh canonical directory and
// registers the resulting file index. upload is the path of the uploaded
// file; classification goes by its declared suffix. If the record cannot be
// persisted the canonical directory is removed again, so no orphan data is
// left behind.
func (s *Service) CreateFunctionalData(ctx context.Context, upload string, attrs *domain.AttributeSet, readOnly bool) (domain.FunctionalData, error) {
	var data domain.FunctionalData
	err := s.instrument(ctx, "funcdata.create", func(ctx context.Context) error {
		handle := s.newHandle(domain.TypeFunctionalData, "", attrs, readOnly)
		destDir := filepath.Join(s.dataDir, funcDataDir, handle.ID)
		entries, err := s.ingestor.Ingest(ctx, upload, destDir)
		if err != nil {
			return err
		}
		data = domain.FunctionalData{
			ObjectHandle: handle,
			Directory:    destDir,
			Files:        entries,
		}
		if err := s.store.Insert(ctx, domain.TypeFunctionalData.Collection(), data.ID, data.ToRecord()); err != nil {
			_ = os.RemoveAll(destDir)
			return err
		}
		return nil
	})
	if err != nil {
		return domain.FunctionalData{}, err
	}
	return data, nil
}

// GetFunctionalData returns the functional data resource stored under id.
func (s *Service) GetFunctionalData(ctx context.Context, id string) (domain.FunctionalData, error) {
	var data domain.FunctionalData
	err := s.instrument(ctx, "funcdata.get", func(ctx context.Context) error {
		rec, err := s.store.Get(ctx, domain.TypeFunctionalData.Collection(), id)
		if err != nil {
			return err
		}
		data, err = domain.FunctionalDataFromRecord(rec)
		return err
	})
	if err != nil {
		return domain.FunctionalData{}, err
	}
	return data, nil
}

// deleteFunctionalData removes the record first, then the canonical
// directory. Read-only resources are rejected by the store before any data
// is touched.
func (s *Service) deleteFunctionalData(ctx context.Context, id string) error {
	return s.instrument(ctx, "funcdata.delete", func(ctx context.Context) error {
		rec, err := s.store.Get(ctx, domain.TypeFunctionalData.Collection(), id)
		if err != nil {
			return err
		}
		data, err := domain.FunctionalDataFromRecord(rec)
		if err != nil {
			return err
		}
		if err := s.store.Delete(ctx, domain.TypeFunctionalData.Collection(), id); err != nil {
			return err
		}
		if data.Directory != "" {
			if err := os.RemoveAll(data.Directory); err != nil {
				return domain.WrapError(domain.ErrIngestFailed, err, "remove canonical directory for %s", id)
			}
		}
		return nil
	})
}
