// Package firestorestore implements docstore.Store on Cloud Firestore.
package firestorestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store implements docstore.Store for Firestore
type Store struct {
	client *firestore.Client
}

// New creates a Store. Close closes client.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Get retrieves a document by id from Firestore
func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, translate(collection, id, err)
	}
	return &docstore.Document{ID: id, Fields: snap.Data()}, nil
}

// Create writes a new document and fails if the id is already taken
func (s *Store) Create(ctx context.Context, collection, id string, fields docstore.Fields) error {
	_, err := s.client.Collection(collection).Doc(id).Create(ctx, map[string]any(fields))
	return translate(collection, id, err)
}

// Add creates a document under an id generated by Firestore
func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	ref := s.client.Collection(collection).NewDoc()
	if _, err := ref.Create(ctx, map[string]any(fields)); err != nil {
		return "", translate(collection, ref.ID, err)
	}
	return ref.ID, nil
}

// Set replaces a document, creating it if needed
func (s *Store) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, map[string]any(fields))
	return translate(collection, id, err)
}

// Update merges fields into an existing document
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	ref := s.client.Collection(collection).Doc(id)
	if len(fields) == 0 {
		_, err := ref.Get(ctx)
		return translate(collection, id, err)
	}
	_, err := ref.Update(ctx, updates(fields))
	return translate(collection, id, err)
}

// Delete removes a document. A missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return translate(collection, id, err)
}

// DeleteExisting removes a document under an Exists precondition, so a
// missing document fails with ErrNotFound.
func (s *Store) DeleteExisting(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists)
	return translate(collection, id, err)
}

// Query runs an equality query with optional order and limit
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, "==", f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	query = query.OrderBy(firestore.DocumentID, firestore.Asc)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	docs := make([]docstore.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, docstore.Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return docs, nil
}

// Batch stages writes that commit in one transaction
func (s *Store) Batch() docstore.Batch {
	return &batch{client: s.client}
}

// Ping lists at most one collection to prove the client can reach Firestore.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collections(ctx).Next()
	if errors.Is(err, iterator.Done) {
		return nil
	}
	return err
}

func (s *Store) Close(context.Context) error {
	return s.client.Close()
}

type batch struct {
	docstore.Staged
	client *firestore.Client
}

// Commit applies every staged write in one transaction. Firestore limits a
// transaction to 500 writes.
func (b *batch) Commit(ctx context.Context) error {
	if b.Len() == 0 {
		return nil
	}
	err := b.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, w := range b.Writes {
			ref := b.client.Collection(w.Collection).Doc(w.ID)
			switch w.Op {
			case docstore.WriteUpdate:
				if err := tx.Update(ref, updates(w.Fields)); err != nil {
					return err
				}
			case docstore.WriteDelete:
				if err := tx.Delete(ref); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("batch commit: %w", docstore.ErrNotFound)
	}
	return err
}

// updates converts fields to Firestore field updates. Increment becomes
// firestore.Increment so the server applies the delta.
func updates(fields docstore.Fields) []firestore.Update {
	out := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		if inc, ok := v.(docstore.Increment); ok {
			v = firestore.Increment(inc.Delta)
		}
		out = append(out, firestore.Update{Path: k, Value: v})
	}
	return out
}

// translate maps gRPC status codes onto docstore errors.
func translate(collection, id string, err error) error {
	switch status.Code(err) {
	case codes.OK:
		return nil
	case codes.NotFound:
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrAlreadyExists)
	}
	return err
}
