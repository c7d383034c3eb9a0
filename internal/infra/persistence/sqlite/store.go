// Package sqlite implements the record store on an embedded SQLite database,
// the default durable backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"neurostore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Store = (*Store)(nil)

// Store persists records as JSON payloads keyed by (collection, identifier).
// The read-only flag is denormalized into its own column so mutation guards
// run inside the same transaction as the write.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) a SQLite-backed record store at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "neurostore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		payload BLOB NOT NULL,
		read_only INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func encode(rec domain.Record) ([]byte, error) {
	return json.Marshal(rec)
}

func decode(payload []byte) (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Insert atomically creates a record. The conflict clause makes the
// duplicate check and the write a single statement.
func (s *Store) Insert(ctx context.Context, collection, id string, rec domain.Record) error {
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records(collection,id,payload,read_only) VALUES(?,?,?,?)
		 ON CONFLICT(collection,id) DO NOTHING`,
		collection, id, payload, boolToInt(domain.RecordReadOnly(rec)))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NewError(domain.ErrDuplicateIdentifier, "%s %s already exists", collection, id)
	}
	return nil
}

// Put creates or replaces a record, refusing read-only targets. The guard
// and the upsert run in one transaction.
func (s *Store) Put(ctx context.Context, collection, id string, rec domain.Record) (retErr error) {
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	var readOnly int
	err = tx.QueryRowContext(ctx, `SELECT read_only FROM records WHERE collection=? AND id=?`, collection, id).Scan(&readOnly)
	switch {
	case err == nil:
		if readOnly != 0 {
			retErr = domain.NewError(domain.ErrReadOnlyViolation, "%s %s is read-only", collection, id)
			return retErr
		}
	case errors.Is(err, sql.ErrNoRows):
		// create path
	default:
		retErr = fmt.Errorf("select record: %w", err)
		return retErr
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records(collection,id,payload,read_only) VALUES(?,?,?,?)
		 ON CONFLICT(collection,id) DO UPDATE SET payload=excluded.payload, read_only=excluded.read_only`,
		collection, id, payload, boolToInt(domain.RecordReadOnly(rec))); err != nil {
		retErr = fmt.Errorf("upsert record: %w", err)
		return retErr
	}
	if err := tx.Commit(); err != nil {
		retErr = fmt.Errorf("commit: %w", err)
		return retErr
	}
	return nil
}

// Get returns the record under id.
func (s *Store) Get(ctx context.Context, collection, id string) (domain.Record, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM records WHERE collection=? AND id=?`, collection, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewError(domain.ErrNotFound, "%s %s not found", collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select record: %w", err)
	}
	return decode(payload)
}

// Delete removes the record under id, refusing read-only targets.
func (s *Store) Delete(ctx context.Context, collection, id string) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	var readOnly int
	err = tx.QueryRowContext(ctx, `SELECT read_only FROM records WHERE collection=? AND id=?`, collection, id).Scan(&readOnly)
	if errors.Is(err, sql.ErrNoRows) {
		retErr = domain.NewError(domain.ErrNotFound, "%s %s not found", collection, id)
		return retErr
	}
	if err != nil {
		retErr = fmt.Errorf("select record: %w", err)
		return retErr
	}
	if readOnly != 0 {
		retErr = domain.NewError(domain.ErrReadOnlyViolation, "%s %s is read-only", collection, id)
		return retErr
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection=? AND id=?`, collection, id); err != nil {
		retErr = fmt.Errorf("delete record: %w", err)
		return retErr
	}
	if err := tx.Commit(); err != nil {
		retErr = fmt.Errorf("commit: %w", err)
		return retErr
	}
	return nil
}

// List returns matching records ordered by identifier.
func (s *Store) List(ctx context.Context, collection string, filter func(domain.Record) bool) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM records WHERE collection=? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]domain.Record, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec, err := decode(payload)
		if err != nil {
			return nil, err
		}
		if filter == nil || filter(rec) {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// ClearCollection drops every record in the collection.
func (s *Store) ClearCollection(ctx context.Context, collection string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection=?`, collection); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	return nil
}

// Reset drops all records.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
