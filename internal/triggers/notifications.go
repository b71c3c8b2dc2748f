package triggers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anonto42/ideafeed/backend/internal/events"
	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/pkg/apperror"
	"github.com/redis/go-redis/v9"
)

// NotificationPublisher pushes newly created notifications to live listeners.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n models.Notification) error
}

// RedisNotificationPublisher publishes each notification as JSON on the
// recipient's channel, user_notifications:<handle>.
type RedisNotificationPublisher struct {
	client *redis.Client
}

func NewRedisNotificationPublisher(client *redis.Client) *RedisNotificationPublisher {
	return &RedisNotificationPublisher{client: client}
}

// NotificationChannel is the Redis channel of a recipient.
func NotificationChannel(recipient string) string {
	return fmt.Sprintf("user_notifications:%s", recipient)
}

type notificationMessage struct {
	ID string `json:"id"`
	models.Notification
}

func (p *RedisNotificationPublisher) PublishNotification(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(notificationMessage{ID: n.ID, Notification: n})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, NotificationChannel(n.Recipient), payload).Err()
}

// CreateNotificationOnLike notifies the author of a liked idea. The
// notification shares the like's id.
func (t *Triggers) CreateNotificationOnLike(ctx context.Context, ev events.Event) error {
	var like models.Like
	if err := decode(ev.After, &like); err != nil {
		return err
	}
	return t.notify(ctx, ev.ID, like.IdeaID, like.UserHandle, models.NotificationLike)
}

// CreateNotificationOnComment notifies the author of a commented idea. The
// notification shares the comment's id.
func (t *Triggers) CreateNotificationOnComment(ctx context.Context, ev events.Event) error {
	var comment models.Comment
	if err := decode(ev.After, &comment); err != nil {
		return err
	}
	return t.notify(ctx, ev.ID, comment.IdeaID, comment.UserHandle, models.NotificationComment)
}

// DeleteNotificationOnUnlike removes the notification paired with a deleted
// like. Nothing to delete is not an error.
func (t *Triggers) DeleteNotificationOnUnlike(ctx context.Context, ev events.Event) error {
	if err := t.notifications.DeleteNotification(ctx, ev.ID); err != nil {
		return fmt.Errorf("delete notification %s: %w", ev.ID, err)
	}
	t.logger.Debug("notification deleted", "id", ev.ID)
	return nil
}

func (t *Triggers) notify(ctx context.Context, id, ideaID, sender string, typ models.NotificationType) error {
	idea, err := t.ideas.GetIdeaByID(ctx, ideaID)
	if errors.Is(err, apperror.ErrNotFound) {
		t.logger.Debug("idea gone, skipping notification", "id", id, "ideaId", ideaID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read idea %s: %w", ideaID, err)
	}
	if idea.UserHandle == sender {
		return nil
	}

	n := models.Notification{
		ID:        id,
		Recipient: idea.UserHandle,
		Sender:    sender,
		Type:      typ,
		IdeaID:    ideaID,
		Read:      false,
		CreatedAt: models.Timestamp(t.now()),
	}
	created, err := t.notifications.CreateNotification(ctx, &n)
	if err != nil {
		return fmt.Errorf("create notification %s: %w", id, err)
	}
	if !created {
		t.logger.Debug("notification already exists", "id", id)
		return nil
	}
	t.logger.Info("notification created", "id", id, "type", typ, "recipient", n.Recipient, "sender", sender)

	if t.publisher != nil {
		if err := t.publisher.PublishNotification(ctx, n); err != nil {
			t.logger.Warn("publish notification failed", "id", id, "recipient", n.Recipient, "error", err)
		}
	}
	return nil
}
