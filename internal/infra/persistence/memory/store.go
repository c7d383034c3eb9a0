// Package memory implements the record store in process memory. It backs
// tests and ephemeral deployments and provides the reference semantics the
// durable backends mirror.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"neurostore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Store = (*Store)(nil)

// Store keeps records in nested maps guarded by a single mutex. Records are
// cloned on every read and write so callers never share map references with
// the stored state.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]domain.Record
}

// NewStore returns an empty in-memory record store.
func NewStore() *Store {
	return &Store{collections: make(map[string]map[string]domain.Record)}
}

// cloneRecord deep-copies a record through its JSON form, the same
// normalization the durable backends apply. Nested maps and slices come back
// detached from the input.
func cloneRecord(rec domain.Record) (domain.Record, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var out domain.Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert atomically creates a record, failing on identifier collision.
func (s *Store) Insert(_ context.Context, collection, id string, rec domain.Record) error {
	cp, err := cloneRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.collections[collection]
	if bucket == nil {
		bucket = make(map[string]domain.Record)
		s.collections[collection] = bucket
	}
	if _, exists := bucket[id]; exists {
		return domain.NewError(domain.ErrDuplicateIdentifier, "%s %s already exists", collection, id)
	}
	bucket[id] = cp
	return nil
}

// Put creates or replaces a record, refusing to touch read-only records.
func (s *Store) Put(_ context.Context, collection, id string, rec domain.Record) error {
	cp, err := cloneRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.collections[collection]
	if bucket == nil {
		bucket = make(map[string]domain.Record)
		s.collections[collection] = bucket
	}
	if existing, ok := bucket[id]; ok && domain.RecordReadOnly(existing) {
		return domain.NewError(domain.ErrReadOnlyViolation, "%s %s is read-only", collection, id)
	}
	bucket[id] = cp
	return nil
}

// Get returns a copy of the record under id.
func (s *Store) Get(_ context.Context, collection, id string) (domain.Record, error) {
	s.mu.RLock()
	rec, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "%s %s not found", collection, id)
	}
	return cloneRecord(rec)
}

// Delete removes the record under id, refusing read-only targets.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.collections[collection][id]
	if !ok {
		return domain.NewError(domain.ErrNotFound, "%s %s not found", collection, id)
	}
	if domain.RecordReadOnly(rec) {
		return domain.NewError(domain.ErrReadOnlyViolation, "%s %s is read-only", collection, id)
	}
	delete(s.collections[collection], id)
	return nil
}

// List returns matching records ordered by identifier.
func (s *Store) List(_ context.Context, collection string, filter func(domain.Record) bool) ([]domain.Record, error) {
	s.mu.RLock()
	bucket := s.collections[collection]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.Record, 0, len(ids))
	var cloneErr error
	for _, id := range ids {
		rec := bucket[id]
		if filter != nil && !filter(rec) {
			continue
		}
		cp, err := cloneRecord(rec)
		if err != nil {
			cloneErr = err
			break
		}
		out = append(out, cp)
	}
	s.mu.RUnlock()
	if cloneErr != nil {
		return nil, cloneErr
	}
	return out, nil
}

// ClearCollection drops every record in the collection.
func (s *Store) ClearCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	delete(s.collections, collection)
	s.mu.Unlock()
	return nil
}

// Reset drops all collections.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	s.collections = make(map[string]map[string]domain.Record)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }
