package pgstore

import (
	"testing"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateExpr(t *testing.T) {
	t.Run("plain fields merge", func(t *testing.T) {
		expr, args, err := updateExpr(docstore.Fields{"userImage": "b.png"})
		require.NoError(t, err)
		assert.Equal(t, "(data || ?::jsonb)", expr)
		assert.Equal(t, []any{`{"userImage":"b.png"}`}, args)
	})

	t.Run("increments nest in key order", func(t *testing.T) {
		expr, args, err := updateExpr(docstore.Fields{
			"likeCount":    docstore.Inc(1),
			"commentCount": docstore.Inc(-1),
		})
		require.NoError(t, err)
		assert.Equal(t,
			"jsonb_set(jsonb_set(data, ?::text[], to_jsonb(COALESCE((data->>(?::text))::bigint, 0) + ?)), ?::text[], to_jsonb(COALESCE((data->>(?::text))::bigint, 0) + ?))",
			expr,
		)
		assert.Equal(t, []any{"{commentCount}", "commentCount", int64(-1), "{likeCount}", "likeCount", int64(1)}, args)
	})

	t.Run("no fields keeps data", func(t *testing.T) {
		expr, args, err := updateExpr(docstore.Fields{})
		require.NoError(t, err)
		assert.Equal(t, "data", expr)
		assert.Empty(t, args)
	})
}

func TestContainment(t *testing.T) {
	got, err := containment([]docstore.Filter{docstore.Where("ideaId", "i1"), docstore.Where("read", false)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ideaId":"i1","read":false}`, got)
}

func TestOrderBy(t *testing.T) {
	ob := orderBy(docstore.Query{OrderBy: "createdAt", Desc: true})
	require.NotNil(t, ob.Expression)
}

func TestDocumentDecode(t *testing.T) {
	row, err := newDocument("ideas", "i1", docstore.Fields{"body": "hi", "likeCount": 2})
	require.NoError(t, err)

	doc, err := row.decode()
	require.NoError(t, err)
	assert.Equal(t, "i1", doc.ID)
	assert.Equal(t, "hi", doc.Fields["body"])
	assert.EqualValues(t, 2, doc.Fields["likeCount"])
}
