package handlers

import (
	"context"
	"errors"

	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/internal/repositories"
	"github.com/anonto42/ideafeed/backend/pkg/apperror"
)

// LikeHandler serves like and unlike, keeping at most one like per user and
// idea
type LikeHandler struct {
	likeRepository repositories.LikeRepository
	ideaRepository repositories.IdeaRepository // To update like counts on ideas
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likeRepo repositories.LikeRepository, ideaRepo repositories.IdeaRepository) *LikeHandler {
	return &LikeHandler{
		likeRepository: likeRepo,
		ideaRepository: ideaRepo,
	}
}

// LikeIdea records caller's like on an idea and returns the idea with the
// like counted
func (h *LikeHandler) LikeIdea(ctx context.Context, caller models.Identity, ideaID string) (*models.Idea, error) {
	if err := requireCaller(caller.Handle); err != nil {
		return nil, err
	}

	idea, err := h.ideaRepository.GetIdeaByID(ctx, ideaID)
	if err != nil {
		return nil, storeError("get idea", err)
	}

	// Check if user has already liked the idea
	_, err = h.likeRepository.GetLike(ctx, ideaID, caller.Handle)
	if err == nil {
		return nil, apperror.ErrAlreadyLiked
	}
	if !errors.Is(err, apperror.ErrNotLiked) {
		return nil, storeError("get like", err)
	}

	like := &models.Like{IdeaID: ideaID, UserHandle: caller.Handle}
	if err := h.likeRepository.CreateLike(ctx, like); err != nil {
		return nil, storeError("create like", err)
	}

	if err := h.ideaRepository.IncrementLikeCount(ctx, ideaID, 1); err != nil {
		return nil, storeError("increment like count", err)
	}
	idea.LikeCount++
	return idea, nil
}

// UnlikeIdea removes caller's like from an idea and returns the idea with the
// like uncounted
func (h *LikeHandler) UnlikeIdea(ctx context.Context, caller models.Identity, ideaID string) (*models.Idea, error) {
	if err := requireCaller(caller.Handle); err != nil {
		return nil, err
	}

	idea, err := h.ideaRepository.GetIdeaByID(ctx, ideaID)
	if err != nil {
		return nil, storeError("get idea", err)
	}

	like, err := h.likeRepository.GetLike(ctx, ideaID, caller.Handle)
	if err != nil {
		return nil, storeError("get like", err)
	}

	// Only the unlike that removed the like decrements the count.
	if err := h.likeRepository.DeleteLike(ctx, like.ID); err != nil {
		return nil, storeError("delete like", err)
	}

	if err := h.ideaRepository.IncrementLikeCount(ctx, ideaID, -1); err != nil {
		return nil, storeError("decrement like count", err)
	}
	idea.LikeCount--
	return idea, nil
}
