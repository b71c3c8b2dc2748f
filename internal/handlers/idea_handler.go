package handlers

import (
	"context"
	"time"

	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/internal/repositories"
	"github.com/anonto42/ideafeed/backend/pkg/apperror"
)

// IdeaHandler serves idea operations
type IdeaHandler struct {
	ideaRepository    repositories.IdeaRepository
	commentRepository repositories.CommentRepository
	now               func() time.Time
}

// NewIdeaHandler creates a new IdeaHandler
func NewIdeaHandler(ideaRepo repositories.IdeaRepository, commentRepo repositories.CommentRepository) *IdeaHandler {
	return &IdeaHandler{
		ideaRepository:    ideaRepo,
		commentRepository: commentRepo,
		now:               time.Now,
	}
}

// CreateIdea posts a new idea authored by caller with zeroed counters
func (h *IdeaHandler) CreateIdea(ctx context.Context, caller models.Identity, req models.CreateIdeaRequest) (*models.Idea, error) {
	if err := requireCaller(caller.Handle); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	idea := &models.Idea{
		Body:         req.Body,
		UserHandle:   caller.Handle,
		UserImage:    caller.ImageURL,
		CreatedAt:    models.Timestamp(h.now()),
		LikeCount:    0,
		CommentCount: 0,
	}
	if err := h.ideaRepository.CreateIdea(ctx, idea); err != nil {
		return nil, storeError("create idea", err)
	}
	return idea, nil
}

// GetIdea retrieves an idea with its comments, newest first
func (h *IdeaHandler) GetIdea(ctx context.Context, ideaID string) (*models.IdeaDetail, error) {
	idea, err := h.ideaRepository.GetIdeaByID(ctx, ideaID)
	if err != nil {
		return nil, storeError("get idea", err)
	}
	comments, err := h.commentRepository.GetCommentsByIdeaID(ctx, ideaID)
	if err != nil {
		return nil, storeError("get comments", err)
	}
	return &models.IdeaDetail{Idea: *idea, Comments: comments}, nil
}

// ListIdeas retrieves all ideas, newest first
func (h *IdeaHandler) ListIdeas(ctx context.Context) ([]models.Idea, error) {
	ideas, err := h.ideaRepository.GetAllIdeas(ctx)
	if err != nil {
		return nil, storeError("list ideas", err)
	}
	return ideas, nil
}

// DeleteIdea deletes an idea owned by caller. Its comments, likes and
// notifications are removed asynchronously by the cascade trigger.
func (h *IdeaHandler) DeleteIdea(ctx context.Context, caller models.Identity, ideaID string) error {
	idea, err := h.ideaRepository.GetIdeaByID(ctx, ideaID)
	if err != nil {
		return storeError("get idea", err)
	}
	if idea.UserHandle != caller.Handle {
		return apperror.ErrUnauthorized
	}
	if err := h.ideaRepository.DeleteIdea(ctx, ideaID); err != nil {
		return storeError("delete idea", err)
	}
	return nil
}
