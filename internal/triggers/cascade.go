package triggers

import (
	"context"
	"fmt"

	"github.com/anonto42/ideafeed/backend/internal/events"
	"github.com/anonto42/ideafeed/backend/internal/models"
)

// OnIdeaDelete removes every comment, like and notification of a deleted idea
// in one atomic batch. A failed commit is retried per the cascade policy and
// then surfaces to the bus, which dead-letters it.
func (t *Triggers) OnIdeaDelete(ctx context.Context, ev events.Event) error {
	ideaID := ev.Params["ideaId"]
	if ideaID == "" {
		ideaID = ev.ID
	}

	err := t.cascadeRetry.Do(ctx, func(ctx context.Context) error {
		return t.cascade(ctx, ideaID)
	})
	if err != nil {
		return fmt.Errorf("cascade delete of idea %s: %w", ideaID, err)
	}
	return nil
}

// cascade queries the dependents afresh on every attempt so a retry stages
// exactly what is still there.
func (t *Triggers) cascade(ctx context.Context, ideaID string) error {
	comments, err := t.comments.GetCommentsByIdeaID(ctx, ideaID)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	likes, err := t.likes.GetLikesByIdeaID(ctx, ideaID)
	if err != nil {
		return fmt.Errorf("query likes: %w", err)
	}
	notifications, err := t.notifications.GetByIdeaID(ctx, ideaID)
	if err != nil {
		return fmt.Errorf("query notifications: %w", err)
	}

	batch := t.store.Batch()
	for _, c := range comments {
		batch.Delete(models.CollectionComments, c.ID)
	}
	for _, l := range likes {
		batch.Delete(models.CollectionLikes, l.ID)
	}
	for _, n := range notifications {
		batch.Delete(models.CollectionNotifications, n.ID)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := batch.Commit(ctx); err != nil {
		t.logger.Warn("cascade commit failed", "ideaId", ideaID, "writes", batch.Len(), "error", err)
		return err
	}
	t.logger.Info("idea cascade deleted",
		"ideaId", ideaID,
		"comments", len(comments),
		"likes", len(likes),
		"notifications", len(notifications),
	)
	return nil
}
