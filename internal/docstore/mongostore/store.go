// Package mongostore implements docstore.Store on MongoDB and provides a
// change-stream Watcher that turns committed writes into trigger events.
//
// Documents are stored with a string _id. Batches and change streams need a
// replica set (or Atlas); a standalone server only supports the single
// document operations.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store implements docstore.Store for MongoDB
type Store struct {
	db    *mongo.Database
	newID func() string
}

// New creates a Store over db. Close disconnects the underlying client.
func New(db *mongo.Database) *Store {
	return &Store{db: db, newID: uuid.NewString}
}

// Database exposes the underlying database, e.g. for a Watcher.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// Get retrieves a document by id from MongoDB
func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
		}
		return nil, err
	}
	return &docstore.Document{ID: id, Fields: toFields(raw)}, nil
}

// Create inserts a new document and fails if the id is already taken
func (s *Store) Create(ctx context.Context, collection, id string, fields docstore.Fields) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, withID(id, fields))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrAlreadyExists)
	}
	return err
}

// Add inserts a new document under a generated id
func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := s.newID()
	if err := s.Create(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Set replaces a document, inserting it if needed
func (s *Store) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, withID(id, fields), opts)
	return err
}

// Update applies $set and $inc to an existing document
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return update(ctx, s.db.Collection(collection), id, fields)
}

// Delete removes a document. A missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteExisting removes a document and reports ErrNotFound when no document
// was deleted.
func (s *Store) DeleteExisting(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

// Query runs an equality query with optional sort and limit
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	findOptions := options.Find().SetSort(sortDoc(q))
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(q.Collection).Find(ctx, filterDoc(q.Filters), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []bson.M
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	docs := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, docstore.Document{ID: idString(row["_id"]), Fields: toFields(row)})
	}
	return docs, nil
}

// Batch stages writes that commit in one multi-document transaction
func (s *Store) Batch() docstore.Batch {
	return &batch{db: s.db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

type batch struct {
	docstore.Staged
	db *mongo.Database
}

func (b *batch) Commit(ctx context.Context) error {
	if b.Len() == 0 {
		return nil
	}

	session, err := b.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, w := range b.Writes {
			coll := b.db.Collection(w.Collection)
			switch w.Op {
			case docstore.WriteUpdate:
				if err := update(sc, coll, w.ID, w.Fields); err != nil {
					return nil, err
				}
			case docstore.WriteDelete:
				if _, err := coll.DeleteOne(sc, bson.M{"_id": w.ID}); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	return err
}

func update(ctx context.Context, coll *mongo.Collection, id string, fields docstore.Fields) error {
	if len(fields) == 0 {
		n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s/%s: %w", coll.Name(), id, docstore.ErrNotFound)
		}
		return nil
	}

	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, updateDoc(fields))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", coll.Name(), id, docstore.ErrNotFound)
	}
	return nil
}

// updateDoc translates fields into $set and $inc operators.
func updateDoc(fields docstore.Fields) bson.M {
	set, inc := docstore.SplitIncrements(fields)
	doc := bson.M{}
	if len(set) > 0 {
		doc["$set"] = bson.M(set)
	}
	if len(inc) > 0 {
		incDoc := bson.M{}
		for k, v := range inc {
			incDoc[k] = v
		}
		doc["$inc"] = incDoc
	}
	return doc
}

func filterDoc(filters []docstore.Filter) bson.D {
	doc := bson.D{}
	for _, f := range filters {
		doc = append(doc, bson.E{Key: f.Field, Value: f.Value})
	}
	return doc
}

// sortDoc orders by the requested field and breaks ties by _id.
func sortDoc(q docstore.Query) bson.D {
	if q.OrderBy == "" {
		return bson.D{{Key: "_id", Value: 1}}
	}
	dir := 1
	if q.Desc {
		dir = -1
	}
	return bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: 1}}
}

func withID(id string, fields docstore.Fields) bson.M {
	doc := bson.M{"_id": id}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}
	return doc
}

func toFields(raw bson.M) docstore.Fields {
	if raw == nil {
		return nil
	}
	f := make(docstore.Fields, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		if n, ok := v.(int32); ok {
			v = int64(n)
		}
		f[k] = v
	}
	return f
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case interface{ Hex() string }:
		return id.Hex()
	}
	return fmt.Sprint(v)
}
