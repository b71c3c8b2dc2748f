// Package docstore is the document-store adapter the feed is written against.
//
// A Store holds schemaless documents grouped in collections and addressed by
// (collection, id). It offers single-document reads and writes, equality
// queries, atomic increments and all-or-nothing batches. Backends live in the
// mongostore, firestorestore and pgstore subpackages; MemoryStore is the
// in-process reference implementation.
//
// Change triggers are not part of Store. Wrap a store with Observe to publish a
// change event for every successful write.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// Fields is the content of a document. Values are scalars (string, bool,
// numbers) or Increment when passed to Update.
type Fields map[string]any

// String returns the string stored under key, or "" when absent or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Document is a stored document and its id
type Document struct {
	ID     string
	Fields Fields
}

// DataTo decodes the document fields into v, which must be a pointer to a
// struct with json tags matching the stored field names.
func (d *Document) DataTo(v any) error {
	raw, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Encode converts a tagged struct into Fields.
func Encode(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return f, nil
}

// Increment, used as a field value in Update, adds Delta to the stored number
// atomically. A missing field counts as zero.
type Increment struct {
	Delta int64
}

// Inc is shorthand for Increment{Delta: n}.
func Inc(n int64) Increment {
	return Increment{Delta: n}
}

// Filter matches documents whose Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Where builds an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Query selects documents of one collection. Filters are ANDed. An empty
// OrderBy returns documents in id order; Limit <= 0 means no limit.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Store is the document-store client consumed by repositories and triggers.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Create writes a new document and returns ErrAlreadyExists if id is taken.
	Create(ctx context.Context, collection, id string, fields Fields) error
	// Add creates a document under a generated id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// Set replaces the document, creating it if needed.
	Set(ctx context.Context, collection, id string, fields Fields) error
	// Update merges fields into an existing document and returns ErrNotFound
	// when it does not exist.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// DeleteExisting removes the document and returns ErrNotFound when it does
	// not exist. Of concurrent calls on one document exactly one succeeds.
	DeleteExisting(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Document, error)
	Batch() Batch
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Batch stages writes and applies all of them or none on Commit.
// An update of a missing document fails the whole commit.
type Batch interface {
	Update(collection, id string, fields Fields)
	Delete(collection, id string)
	Len() int
	Commit(ctx context.Context) error
}

// WriteOp is the kind of a staged batch write
type WriteOp int

const (
	WriteUpdate WriteOp = iota + 1
	WriteDelete
)

// Write is one staged batch operation
type Write struct {
	Op         WriteOp
	Collection string
	ID         string
	Fields     Fields
}

// Staged records batch writes. Backends embed it and implement Commit.
type Staged struct {
	Writes []Write
}

func (s *Staged) Update(collection, id string, fields Fields) {
	s.Writes = append(s.Writes, Write{Op: WriteUpdate, Collection: collection, ID: id, Fields: fields})
}

func (s *Staged) Delete(collection, id string) {
	s.Writes = append(s.Writes, Write{Op: WriteDelete, Collection: collection, ID: id})
}

func (s *Staged) Len() int {
	return len(s.Writes)
}

// SplitIncrements separates plain field assignments from increments.
func SplitIncrements(fields Fields) (set Fields, inc map[string]int64) {
	set = Fields{}
	for k, v := range fields {
		if i, ok := v.(Increment); ok {
			if inc == nil {
				inc = map[string]int64{}
			}
			inc[k] += i.Delta
			continue
		}
		set[k] = v
	}
	return set, inc
}
