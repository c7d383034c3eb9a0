package domain

import "context"

// Record is the flat, JSON-serializable persistence form of a resource.
// Backends store records opaquely; they only inspect the identifier and the
// read-only flag.
type Record map[string]any

// RecordID extracts the identifier from a record, or "".
func RecordID(rec Record) string {
	id, _ := rec["identifier"].(string)
	return id
}

// RecordReadOnly extracts the read-only flag from a record.
func RecordReadOnly(rec Record) bool {
	v, _ := rec["read_only"].(bool)
	return v
}

// Store is the collection-scoped persistence contract. Implementations keep
// records opaque, enforce identifier uniqueness on Insert, and refuse updates
// and deletes against read-only records.
type Store interface {
	// Insert atomically creates a record under id. An existing id fails with
	// ErrDuplicateIdentifier without modifying the stored record.
	Insert(ctx context.Context, collection, id string, rec Record) error
	// Put creates or replaces the record under id. A read-only stored record
	// fails with ErrReadOnlyViolation.
	Put(ctx context.Context, collection, id string, rec Record) error
	// Get returns the record under id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Record, error)
	// Delete removes the record under id. Absent ids fail with ErrNotFound,
	// read-only records with ErrReadOnlyViolation.
	Delete(ctx context.Context, collection, id string) error
	// List returns records in the collection, ordered by identifier. A nil
	// filter matches everything.
	List(ctx context.Context, collection string, filter func(Record) bool) ([]Record, error)
	// ClearCollection removes every record in the collection. Destructive;
	// intended for initialization and test contexts.
	ClearCollection(ctx context.Context, collection string) error
	// Reset removes every record in every collection. Destructive.
	Reset(ctx context.Context) error
	Close() error
}
