package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process memory. Every operation holds the
// store lock, so single-document updates and batch commits are atomic.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Fields
	newID       func() string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Fields),
		newID:       uuid.NewString,
	}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return &Document{ID: id, Fields: copyFields(f)}, nil
}

func (s *MemoryStore) Create(_ context.Context, collection, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	s.put(collection, id, fields)
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := s.newID()
	if err := s.Create(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Set(_ context.Context, collection, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(collection, id, fields)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	merge(current, fields)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) DeleteExisting(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []Document
	for id, f := range s.collections[q.Collection] {
		if matches(f, q.Filters) {
			docs = append(docs, Document{ID: id, Fields: copyFields(f)})
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			if c := compareValues(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy]); c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].ID < docs[j].ID
	})

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (s *MemoryStore) Batch() Batch {
	return &memoryBatch{store: s}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// Len reports how many documents a collection holds.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *MemoryStore) put(collection, id string, fields Fields) {
	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string]Fields)
		s.collections[collection] = c
	}
	doc := Fields{}
	merge(doc, fields)
	c[id] = doc
}

type memoryBatch struct {
	Staged
	store *MemoryStore
}

func (b *memoryBatch) Commit(context.Context) error {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything first so a failing write leaves the store untouched.
	for _, w := range b.Writes {
		if w.Op != WriteUpdate {
			continue
		}
		if _, ok := s.collections[w.Collection][w.ID]; !ok {
			return fmt.Errorf("batch update %s/%s: %w", w.Collection, w.ID, ErrNotFound)
		}
	}

	for _, w := range b.Writes {
		switch w.Op {
		case WriteUpdate:
			if current, ok := s.collections[w.Collection][w.ID]; ok {
				merge(current, w.Fields)
			}
		case WriteDelete:
			delete(s.collections[w.Collection], w.ID)
		}
	}
	return nil
}

func merge(dst, src Fields) {
	for k, v := range src {
		if inc, ok := v.(Increment); ok {
			n, _ := toInt64(dst[k])
			dst[k] = n + inc.Delta
			continue
		}
		dst[k] = v
	}
}

func matches(f Fields, filters []Filter) bool {
	for _, flt := range filters {
		v, ok := f[flt.Field]
		if !ok || compareValues(v, flt.Value) != 0 {
			return false
		}
	}
	return true
}

// compareValues orders numbers numerically and everything else by its
// string form.
func compareValues(a, b any) int {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	f, ok := toFloat(v)
	return int64(f), ok
}

func copyFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
