package handlers

import (
	"context"
	"time"

	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/internal/repositories"
)

// CommentHandler serves commenting on ideas
type CommentHandler struct {
	commentRepository repositories.CommentRepository
	ideaRepository    repositories.IdeaRepository // To update comment counts on ideas
	now               func() time.Time
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(commentRepo repositories.CommentRepository, ideaRepo repositories.IdeaRepository) *CommentHandler {
	return &CommentHandler{
		commentRepository: commentRepo,
		ideaRepository:    ideaRepo,
		now:               time.Now,
	}
}

// CommentOnIdea counts a new comment on the idea and then stores it
func (h *CommentHandler) CommentOnIdea(ctx context.Context, caller models.Identity, ideaID string, req models.CreateCommentRequest) (*models.Comment, error) {
	if err := requireCaller(caller.Handle); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if _, err := h.ideaRepository.GetIdeaByID(ctx, ideaID); err != nil {
		return nil, storeError("get idea", err)
	}

	if err := h.ideaRepository.IncrementCommentCount(ctx, ideaID, 1); err != nil {
		return nil, storeError("increment comment count", err)
	}

	comment := &models.Comment{
		IdeaID:     ideaID,
		Body:       req.Body,
		UserHandle: caller.Handle,
		UserImage:  caller.ImageURL,
		CreatedAt:  models.Timestamp(h.now()),
	}
	if err := h.commentRepository.CreateComment(ctx, comment); err != nil {
		return nil, storeError("create comment", err)
	}
	return comment, nil
}
