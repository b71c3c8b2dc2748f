package repositories

import (
	"context"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/models"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentsByIdeaID(ctx context.Context, ideaID string) ([]models.Comment, error)
}

// StoreCommentRepository implements CommentRepository on a document store
type StoreCommentRepository struct {
	store docstore.Store
}

// NewCommentRepository creates a new StoreCommentRepository
func NewCommentRepository(store docstore.Store) *StoreCommentRepository {
	return &StoreCommentRepository{store: store}
}

// CreateComment stores a new comment under a generated id and sets comment.ID
func (r *StoreCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	fields, err := docstore.Encode(comment)
	if err != nil {
		return err
	}
	id, err := r.store.Add(ctx, models.CollectionComments, fields)
	if err != nil {
		return err
	}
	comment.ID = id
	return nil
}

// GetCommentsByIdeaID retrieves the comments on an idea, newest first
func (r *StoreCommentRepository) GetCommentsByIdeaID(ctx context.Context, ideaID string) ([]models.Comment, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: models.CollectionComments,
		Filters:    []docstore.Filter{docstore.Where("ideaId", ideaID)},
		OrderBy:    "createdAt",
		Desc:       true,
	})
	if err != nil {
		return nil, err
	}

	comments := make([]models.Comment, 0, len(docs))
	for _, doc := range docs {
		var c models.Comment
		if err := doc.DataTo(&c); err != nil {
			return nil, err
		}
		c.ID = doc.ID
		comments = append(comments, c)
	}
	return comments, nil
}
