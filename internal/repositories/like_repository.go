package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/pkg/apperror"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	CreateLike(ctx context.Context, like *models.Like) error
	DeleteLike(ctx context.Context, id string) error
	GetLike(ctx context.Context, ideaID, userHandle string) (*models.Like, error)
	GetLikesByIdeaID(ctx context.Context, ideaID string) ([]models.Like, error)
}

// StoreLikeRepository implements LikeRepository on a document store
type StoreLikeRepository struct {
	store docstore.Store
}

// NewLikeRepository creates a new StoreLikeRepository
func NewLikeRepository(store docstore.Store) *StoreLikeRepository {
	return &StoreLikeRepository{store: store}
}

// CreateLike stores a like under its deterministic id. A like that already
// exists, including one written concurrently, fails with ErrAlreadyLiked.
func (r *StoreLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	like.ID = models.LikeID(like.IdeaID, like.UserHandle)
	fields, err := docstore.Encode(like)
	if err != nil {
		return err
	}
	err = r.store.Create(ctx, models.CollectionLikes, like.ID, fields)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return apperror.ErrAlreadyLiked
	}
	return err
}

// DeleteLike deletes a like by ID. It returns ErrNotLiked when the like is
// already gone, including when a concurrent unlike removed it first.
func (r *StoreLikeRepository) DeleteLike(ctx context.Context, id string) error {
	err := r.store.DeleteExisting(ctx, models.CollectionLikes, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperror.ErrNotLiked
	}
	return err
}

// GetLike finds the like userHandle put on ideaID. Returns ErrNotLiked if none.
func (r *StoreLikeRepository) GetLike(ctx context.Context, ideaID, userHandle string) (*models.Like, error) {
	likes, err := r.query(ctx, docstore.Query{
		Collection: models.CollectionLikes,
		Filters: []docstore.Filter{
			docstore.Where("ideaId", ideaID),
			docstore.Where("userHandle", userHandle),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(likes) == 0 {
		return nil, apperror.ErrNotLiked
	}
	return &likes[0], nil
}

// GetLikesByIdeaID retrieves all likes on an idea
func (r *StoreLikeRepository) GetLikesByIdeaID(ctx context.Context, ideaID string) ([]models.Like, error) {
	return r.query(ctx, docstore.Query{
		Collection: models.CollectionLikes,
		Filters:    []docstore.Filter{docstore.Where("ideaId", ideaID)},
	})
}

func (r *StoreLikeRepository) query(ctx context.Context, q docstore.Query) ([]models.Like, error) {
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	likes := make([]models.Like, 0, len(docs))
	for _, doc := range docs {
		var l models.Like
		if err := doc.DataTo(&l); err != nil {
			return nil, err
		}
		l.ID = doc.ID
		likes = append(likes, l)
	}
	return likes, nil
}
