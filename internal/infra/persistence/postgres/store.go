// Package postgres implements the record store on PostgreSQL for shared
// deployments. Semantics mirror the sqlite backend with server-side types.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"neurostore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/neurostore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists records as JSONB payloads keyed by (collection, identifier).
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN) and ensures the records table exists.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		payload JSONB NOT NULL,
		read_only BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		return nil, fmt.Errorf("ensure records table: %w", err)
	}
	return &Store{db: db}, nil
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

// Insert atomically creates a record via a conflict-free insert.
func (s *Store) Insert(ctx context.Context, collection, id string, rec domain.Record) error {
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records(collection,id,payload,read_only) VALUES($1,$2,$3,$4)
		 ON CONFLICT (collection,id) DO NOTHING`,
		collection, id, payload, domain.RecordReadOnly(rec))
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

// Put creates or replaces a record, refusing read-only targets.
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
	var readOnly bool
	err = tx.QueryRowContext(ctx, `SELECT read_only FROM records WHERE collection=$1 AND id=$2 FOR UPDATE`, collection, id).Scan(&readOnly)
	switch {
	case err == nil:
		if readOnly {
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
		`INSERT INTO records(collection,id,payload,read_only) VALUES($1,$2,$3,$4)
		 ON CONFLICT (collection,id) DO UPDATE SET payload=EXCLUDED.payload, read_only=EXCLUDED.read_only`,
		collection, id, payload, domain.RecordReadOnly(rec)); err != nil {
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
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM records WHERE collection=$1 AND id=$2`, collection, id).Scan(&payload)
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
	var readOnly bool
	err = tx.QueryRowContext(ctx, `SELECT read_only FROM records WHERE collection=$1 AND id=$2 FOR UPDATE`, collection, id).Scan(&readOnly)
	if errors.Is(err, sql.ErrNoRows) {
		retErr = domain.NewError(domain.ErrNotFound, "%s %s not found", collection, id)
		return retErr
	}
	if err != nil {
		retErr = fmt.Errorf("select record: %w", err)
		return retErr
	}
	if readOnly {
		retErr = domain.NewError(domain.ErrReadOnlyViolation, "%s %s is read-only", collection, id)
		return retErr
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection=$1 AND id=$2`, collection, id); err != nil {
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
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM records WHERE collection=$1 ORDER BY id`, collection)
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
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection=$1`, collection); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	return nil
}

// Reset drops all records.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE records`); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
