package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/pkg/apperror"
)

// IdeaRepository defines the interface for idea data operations
type IdeaRepository interface {
	CreateIdea(ctx context.Context, idea *models.Idea) error
	GetIdeaByID(ctx context.Context, id string) (*models.Idea, error)
	GetAllIdeas(ctx context.Context) ([]models.Idea, error)
	GetIdeasByUserHandle(ctx context.Context, handle string) ([]models.Idea, error)
	DeleteIdea(ctx context.Context, id string) error
	IncrementLikeCount(ctx context.Context, ideaID string, delta int64) error
	IncrementCommentCount(ctx context.Context, ideaID string, delta int64) error
	UpdateUserImage(ctx context.Context, handle, imageURL string) (int, error)
}

// StoreIdeaRepository implements IdeaRepository on a document store
type StoreIdeaRepository struct {
	store docstore.Store
}

// NewIdeaRepository creates a new StoreIdeaRepository
func NewIdeaRepository(store docstore.Store) *StoreIdeaRepository {
	return &StoreIdeaRepository{store: store}
}

// CreateIdea stores a new idea under a generated id and sets idea.ID
func (r *StoreIdeaRepository) CreateIdea(ctx context.Context, idea *models.Idea) error {
	fields, err := docstore.Encode(idea)
	if err != nil {
		return err
	}
	id, err := r.store.Add(ctx, models.CollectionIdeas, fields)
	if err != nil {
		return err
	}
	idea.ID = id
	return nil
}

// GetIdeaByID retrieves an idea by ID
func (r *StoreIdeaRepository) GetIdeaByID(ctx context.Context, id string) (*models.Idea, error) {
	doc, err := r.store.Get(ctx, models.CollectionIdeas, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return decodeIdea(*doc)
}

// GetAllIdeas retrieves every idea, newest first
func (r *StoreIdeaRepository) GetAllIdeas(ctx context.Context) ([]models.Idea, error) {
	return r.query(ctx, docstore.Query{
		Collection: models.CollectionIdeas,
		OrderBy:    "createdAt",
		Desc:       true,
	})
}

// GetIdeasByUserHandle retrieves the ideas authored by handle
func (r *StoreIdeaRepository) GetIdeasByUserHandle(ctx context.Context, handle string) ([]models.Idea, error) {
	return r.query(ctx, docstore.Query{
		Collection: models.CollectionIdeas,
		Filters:    []docstore.Filter{docstore.Where("userHandle", handle)},
	})
}

// DeleteIdea deletes an idea by ID. Its comments, likes and notifications
// are removed by the cascade trigger.
func (r *StoreIdeaRepository) DeleteIdea(ctx context.Context, id string) error {
	return r.store.Delete(ctx, models.CollectionIdeas, id)
}

// IncrementLikeCount adds delta to the like count of an idea
func (r *StoreIdeaRepository) IncrementLikeCount(ctx context.Context, ideaID string, delta int64) error {
	return r.increment(ctx, ideaID, "likeCount", delta)
}

// IncrementCommentCount adds delta to the comment count of an idea
func (r *StoreIdeaRepository) IncrementCommentCount(ctx context.Context, ideaID string, delta int64) error {
	return r.increment(ctx, ideaID, "commentCount", delta)
}

// UpdateUserImage rewrites userImage on every idea authored by handle in one
// batch and reports how many ideas were rewritten.
func (r *StoreIdeaRepository) UpdateUserImage(ctx context.Context, handle, imageURL string) (int, error) {
	ideas, err := r.GetIdeasByUserHandle(ctx, handle)
	if err != nil {
		return 0, err
	}
	if len(ideas) == 0 {
		return 0, nil
	}

	batch := r.store.Batch()
	for _, idea := range ideas {
		batch.Update(models.CollectionIdeas, idea.ID, docstore.Fields{"userImage": imageURL})
	}
	if err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("update user image on %d ideas: %w", len(ideas), err)
	}
	return len(ideas), nil
}

func (r *StoreIdeaRepository) increment(ctx context.Context, ideaID, field string, delta int64) error {
	err := r.store.Update(ctx, models.CollectionIdeas, ideaID, docstore.Fields{field: docstore.Inc(delta)})
	if errors.Is(err, docstore.ErrNotFound) {
		return apperror.ErrNotFound
	}
	return err
}

func (r *StoreIdeaRepository) query(ctx context.Context, q docstore.Query) ([]models.Idea, error) {
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	ideas := make([]models.Idea, 0, len(docs))
	for _, doc := range docs {
		idea, err := decodeIdea(doc)
		if err != nil {
			return nil, err
		}
		ideas = append(ideas, *idea)
	}
	return ideas, nil
}

func decodeIdea(doc docstore.Document) (*models.Idea, error) {
	var idea models.Idea
	if err := doc.DataTo(&idea); err != nil {
		return nil, err
	}
	idea.ID = doc.ID
	return &idea, nil
}
