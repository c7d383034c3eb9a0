// Package mongo implements the record store on MongoDB. Each resource
// collection maps to a Mongo collection; the record payload is kept as an
// opaque JSON blob so values round-trip exactly like the other backends.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"neurostore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Store = (*Store)(nil)

const defaultDatabase = "neurostore"

// Store persists records in a MongoDB database, one document per record.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

type recordDoc struct {
	ID       string `bson:"_id"`
	ReadOnly bool   `bson:"read_only"`
	Payload  []byte `bson:"payload"`
}

// NewStore connects to the given URI and selects database (defaults to
// "neurostore" when empty). The connection is verified with a ping.
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri required")
	}
	if database == "" {
		database = defaultDatabase
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) collection(name string) *mongo.Collection { return s.db.Collection(name) }

func toDoc(id string, rec domain.Record) (recordDoc, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return recordDoc{}, err
	}
	return recordDoc{ID: id, ReadOnly: domain.RecordReadOnly(rec), Payload: payload}, nil
}

func fromDoc(doc recordDoc) (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal(doc.Payload, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", doc.ID, err)
	}
	return rec, nil
}

// Insert atomically creates a record. The unique _id index turns a
// concurrent duplicate into a driver-level duplicate key error.
func (s *Store) Insert(ctx context.Context, collection, id string, rec domain.Record) error {
	doc, err := toDoc(id, rec)
	if err != nil {
		return err
	}
	if _, err := s.collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.NewError(domain.ErrDuplicateIdentifier, "%s %s already exists", collection, id)
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Put creates or replaces a record. The filter matches only writable
// documents, so replacing a read-only record degenerates into an upsert
// insert that collides on _id; that collision is the read-only signal.
func (s *Store) Put(ctx context.Context, collection, id string, rec domain.Record) error {
	doc, err := toDoc(id, rec)
	if err != nil {
		return err
	}
	filter := bson.D{{Key: "_id", Value: id}, {Key: "read_only", Value: false}}
	_, err = s.collection(collection).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.NewError(domain.ErrReadOnlyViolation, "%s %s is read-only", collection, id)
		}
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Get returns the record under id.
func (s *Store) Get(ctx context.Context, collection, id string) (domain.Record, error) {
	var doc recordDoc
	err := s.collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NewError(domain.ErrNotFound, "%s %s not found", collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return fromDoc(doc)
}

// Delete removes the record under id, refusing read-only targets.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "read_only", Value: false}}
	res, err := s.collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if res.DeletedCount > 0 {
		return nil
	}
	// distinguish absent from read-only
	err = s.collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.NewError(domain.ErrNotFound, "%s %s not found", collection, id)
	}
	if err != nil {
		return fmt.Errorf("find record: %w", err)
	}
	return domain.NewError(domain.ErrReadOnlyViolation, "%s %s is read-only", collection, id)
}

// List returns matching records ordered by identifier.
func (s *Store) List(ctx context.Context, collection string, filter func(domain.Record) bool) ([]domain.Record, error) {
	cursor, err := s.collection(collection).Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	out := make([]domain.Record, 0)
	for cursor.Next(ctx) {
		var doc recordDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		rec, err := fromDoc(doc)
		if err != nil {
			return nil, err
		}
		if filter == nil || filter(rec) {
			out = append(out, rec)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// ClearCollection removes every document in the collection.
func (s *Store) ClearCollection(ctx context.Context, collection string) error {
	if _, err := s.collection(collection).DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	return nil
}

// Reset drops the whole database.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.db.Drop(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}
