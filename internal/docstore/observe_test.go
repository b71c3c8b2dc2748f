package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/anonto42/ideafeed/backend/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Kind
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestObserve_CreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := Observe(NewMemoryStore(), rec)

	require.NoError(t, s.Create(ctx, "users", "alice", Fields{"handle": "alice", "imageUrl": "a.png"}))
	require.NoError(t, s.Update(ctx, "users", "alice", Fields{"imageUrl": "b.png"}))

	require.Len(t, rec.events, 2)
	created, updated := rec.events[0], rec.events[1]

	assert.Equal(t, events.KindCreate, created.Kind)
	assert.Nil(t, created.Before)
	assert.Equal(t, "a.png", created.After["imageUrl"])

	assert.Equal(t, events.KindUpdate, updated.Kind)
	assert.Equal(t, "alice", updated.ID)
	assert.Equal(t, "a.png", updated.Before["imageUrl"])
	assert.Equal(t, "b.png", updated.After["imageUrl"])
}

func TestObserve_AddPublishesGeneratedID(t *testing.T) {
	rec := &recorder{}
	s := Observe(NewMemoryStore(), rec)

	id, err := s.Add(context.Background(), "comments", Fields{"ideaId": "i1"})
	require.NoError(t, err)
	require.Len(t, rec.events, 1)
	assert.Equal(t, id, rec.events[0].ID)
	assert.Equal(t, "comments", rec.events[0].Collection)
}

func TestObserve_FailedWritesPublishNothing(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := Observe(NewMemoryStore(), rec)
	require.NoError(t, s.Create(ctx, "likes", "i1_bob", Fields{}))

	assert.ErrorIs(t, s.Create(ctx, "likes", "i1_bob", Fields{}), ErrAlreadyExists)
	assert.ErrorIs(t, s.Update(ctx, "ideas", "missing", Fields{"likeCount": Inc(1)}), ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "likes", "missing"))
	assert.ErrorIs(t, s.DeleteExisting(ctx, "likes", "missing"), ErrNotFound)

	assert.Equal(t, []events.Kind{events.KindCreate}, rec.kinds())
}

func TestObserve_SetReportsCreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := Observe(NewMemoryStore(), rec)

	require.NoError(t, s.Set(ctx, "users", "bob", Fields{"imageUrl": "a.png"}))
	require.NoError(t, s.Set(ctx, "users", "bob", Fields{"imageUrl": "b.png"}))

	assert.Equal(t, []events.Kind{events.KindCreate, events.KindUpdate}, rec.kinds())
}

func TestObserve_DeleteCarriesBefore(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := Observe(NewMemoryStore(), rec)
	require.NoError(t, s.Create(ctx, "likes", "i1_bob", Fields{"ideaId": "i1", "userHandle": "bob"}))

	require.NoError(t, s.Delete(ctx, "likes", "i1_bob"))

	require.Len(t, rec.events, 2)
	deleted := rec.events[1]
	assert.Equal(t, events.KindDelete, deleted.Kind)
	assert.Equal(t, "bob", deleted.Before["userHandle"])
	assert.Nil(t, deleted.After)
}

func TestObserve_BatchPublishesAfterCommit(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	inner := NewMemoryStore()
	s := Observe(inner, rec)
	require.NoError(t, inner.Set(ctx, "comments", "c1", Fields{"ideaId": "i1"}))
	require.NoError(t, inner.Set(ctx, "ideas", "i2", Fields{"userImage": "a.png"}))

	b := s.Batch()
	b.Delete("comments", "c1")
	b.Delete("comments", "never-existed")
	b.Update("ideas", "i2", Fields{"userImage": "b.png"})
	require.NoError(t, b.Commit(ctx))

	assert.Equal(t, []events.Kind{events.KindDelete, events.KindUpdate}, rec.kinds())
	assert.Equal(t, "b.png", rec.events[1].After["userImage"])
}

func TestObserve_FailedBatchPublishesNothing(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	inner := NewMemoryStore()
	s := Observe(inner, rec)
	require.NoError(t, inner.Set(ctx, "comments", "c1", Fields{"ideaId": "i1"}))

	b := s.Batch()
	b.Delete("comments", "c1")
	b.Update("ideas", "missing", Fields{"userImage": "b.png"})

	assert.True(t, errors.Is(b.Commit(ctx), ErrNotFound))
	assert.Empty(t, rec.events)
	assert.Equal(t, 1, inner.Len("comments"))
}
