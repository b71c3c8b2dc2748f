package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateIsCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, "likes", "i1_bob", Fields{"ideaId": "i1", "userHandle": "bob"}))
	err := s.Create(ctx, "likes", "i1_bob", Fields{"ideaId": "i1", "userHandle": "bob"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 1, s.Len("likes"))
}

func TestMemoryStore_GetMissing(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "ideas", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "ideas", "i1", Fields{"body": "hi"}))

	doc, err := s.Get(ctx, "ideas", "i1")
	require.NoError(t, err)
	doc.Fields["body"] = "changed"

	doc, err = s.Get(ctx, "ideas", "i1")
	require.NoError(t, err)
	assert.Equal(t, "hi", doc.Fields["body"])
}

func TestMemoryStore_UpdateIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, "ideas", "i1", Fields{"likeCount": 0}))

	require.NoError(t, s.Update(ctx, "ideas", "i1", Fields{"likeCount": Inc(1)}))
	require.NoError(t, s.Update(ctx, "ideas", "i1", Fields{"likeCount": Inc(1), "commentCount": Inc(1)}))
	require.NoError(t, s.Update(ctx, "ideas", "i1", Fields{"likeCount": Inc(-1)}))

	doc, err := s.Get(ctx, "ideas", "i1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Fields["likeCount"])
	assert.Equal(t, int64(1), doc.Fields["commentCount"])
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	err := NewMemoryStore().Update(context.Background(), "ideas", "nope", Fields{"likeCount": Inc(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteMissingIsNoop(t *testing.T) {
	assert.NoError(t, NewMemoryStore().Delete(context.Background(), "likes", "nope"))
}

func TestMemoryStore_DeleteExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, "likes", "i1_bob", Fields{}))

	require.NoError(t, s.DeleteExisting(ctx, "likes", "i1_bob"))
	assert.ErrorIs(t, s.DeleteExisting(ctx, "likes", "i1_bob"), ErrNotFound)
	assert.Zero(t, s.Len("likes"))
}

func TestMemoryStore_Add(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Add(ctx, "comments", Fields{"body": "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	doc, err := s.Get(ctx, "comments", id)
	require.NoError(t, err)
	assert.Equal(t, "hi", doc.Fields.String("body"))
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "comments", "c1", Fields{"ideaId": "i1", "createdAt": "2024-01-01T00:00:00.000Z"}))
	require.NoError(t, s.Set(ctx, "comments", "c2", Fields{"ideaId": "i1", "createdAt": "2024-01-03T00:00:00.000Z"}))
	require.NoError(t, s.Set(ctx, "comments", "c3", Fields{"ideaId": "i2", "createdAt": "2024-01-02T00:00:00.000Z"}))

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"filter", Query{Collection: "comments", Filters: []Filter{Where("ideaId", "i1")}}, []string{"c1", "c2"}},
		{"order desc", Query{Collection: "comments", OrderBy: "createdAt", Desc: true}, []string{"c2", "c3", "c1"}},
		{"limit", Query{Collection: "comments", OrderBy: "createdAt", Limit: 1}, []string{"c1"}},
		{"no match", Query{Collection: "comments", Filters: []Filter{Where("ideaId", "i9")}}, nil},
		{"empty collection", Query{Collection: "likes"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Query(ctx, tt.q)
			require.NoError(t, err)
			var ids []string
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMemoryStore_QueryNumericFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "ideas", "i1", Fields{"likeCount": int64(2)}))

	docs, err := s.Query(ctx, Query{Collection: "ideas", Filters: []Filter{Where("likeCount", 2)}})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestMemoryBatch_Commit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "comments", "c1", Fields{"ideaId": "i1"}))
	require.NoError(t, s.Set(ctx, "ideas", "i1", Fields{"userImage": "a.png"}))

	b := s.Batch()
	b.Delete("comments", "c1")
	b.Delete("comments", "missing")
	b.Update("ideas", "i1", Fields{"userImage": "b.png"})
	assert.Equal(t, 3, b.Len())
	require.NoError(t, b.Commit(ctx))

	assert.Equal(t, 0, s.Len("comments"))
	doc, err := s.Get(ctx, "ideas", "i1")
	require.NoError(t, err)
	assert.Equal(t, "b.png", doc.Fields["userImage"])
}

func TestMemoryBatch_CommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "comments", "c1", Fields{"ideaId": "i1"}))

	b := s.Batch()
	b.Delete("comments", "c1")
	b.Update("ideas", "gone", Fields{"userImage": "b.png"})

	err := b.Commit(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, s.Len("comments"))
}

func TestDocument_DataTo(t *testing.T) {
	doc := Document{ID: "i1", Fields: Fields{"body": "hi", "likeCount": int64(3)}}

	var out struct {
		Body      string `json:"body"`
		LikeCount int    `json:"likeCount"`
	}
	require.NoError(t, doc.DataTo(&out))
	assert.Equal(t, "hi", out.Body)
	assert.Equal(t, 3, out.LikeCount)
}

func TestSplitIncrements(t *testing.T) {
	set, inc := SplitIncrements(Fields{"a": 1, "b": Inc(2)})
	assert.Equal(t, Fields{"a": 1}, set)
	assert.Equal(t, map[string]int64{"b": 2}, inc)
}
