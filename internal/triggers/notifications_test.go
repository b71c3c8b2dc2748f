package triggers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/events"
	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/pkg/apperror"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNotificationOnLike(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, docstore.NewMemoryStore(), events.RetryPolicy{})
	ideaID := f.idea(t, "alice")

	like := models.Like{ID: models.LikeID(ideaID, "bob"), IdeaID: ideaID, UserHandle: "bob"}
	require.NoError(t, f.triggers.CreateNotificationOnLike(ctx, likeEvent(t, events.KindCreate, like)))

	n, err := f.notifications.GetNotification(ctx, like.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Notification{
		ID:        like.ID,
		Recipient: "alice",
		Sender:    "bob",
		Type:      models.NotificationLike,
		IdeaID:    ideaID,
		Read:      false,
		CreatedAt: models.Timestamp(fixedNow),
	}, *n)
	require.Len(t, f.publisher.sent, 1)
	assert.Equal(t, like.ID, f.publisher.sent[0].ID)
}

func TestCreateNotificationOnLike_RedeliveryCreatesOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, docstore.NewMemoryStore(), events.RetryPolicy{})
	ideaID := f.idea(t, "alice")

	like := models.Like{ID: models.LikeID(ideaID, "bob"), IdeaID: ideaID, UserHandle: "bob"}
	ev := likeEvent(t, events.KindCreate, like)
	require.NoError(t, f.triggers.CreateNotificationOnLike(ctx, ev))
	require.NoError(t, f.triggers.CreateNotificationOnLike(ctx, ev))

	all, err := f.notifications.GetByRecipient(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Len(t, f.publisher.sent, 1, "only the first delivery publishes")
}

func TestCreateNotification_SelfActionsAreSilent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, docstore.NewMemoryStore(), events.RetryPolicy{})
	ideaID := f.idea(t, "alice")

	like := models.Like{ID: models.LikeID(ideaID, "alice"), IdeaID: ideaID, UserHandle: "alice"}
	require.NoError(t, f.triggers.CreateNotificationOnLike(ctx, likeEvent(t, events.KindCreate, like)))

	comment := models.Comment{IdeaID: ideaID, Body: "me again", UserHandle: "alice"}
	require.NoError(t, f.triggers.CreateNotificationOnComment(ctx, events.Event{
		Collection: models.CollectionComments,
		Kind:       events.KindCreate,
		ID:         "c1",
		After:      image(t, comment),
	}))

	all, err := f.notifications.GetByRecipient(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.publisher.sent)
}

func TestCreateNotificationOnComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, docstore.NewMemoryStore(), events.RetryPolicy{})
	ideaID := f.idea(t, "alice")

	comment := models.Comment{IdeaID: ideaID, Body: "nice", UserHandle: "carol"}
	require.NoError(t, f.triggers.CreateNotificationOnComment(ctx, events.Event{
		Collection: models.CollectionComments,
		Kind:       events.KindCreate,
		ID:         "c1",
		After:      image(t, comment),
	}))

	n, err := f.notifications.GetNotification(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationComment, n.Type)
	assert.Equal(t, "alice", n.Recipient)
	assert.Equal(t, "carol", n.Sender)
}

func TestCreateNotification_IdeaGoneIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, docstore.NewMemoryStore(), events.RetryPolicy{})

	like := models.Like{ID: "gone_bob", IdeaID: "gone", UserHandle: "bob"}
	require.NoError(t, f.triggers.CreateNotificationOnLike(ctx, likeEvent(t, events.KindCreate, like)))

	_, err := f.notifications.GetNotification(ctx, like.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCreateNotification_PublishFailureKeepsNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, docstore.NewMemoryStore(), events.RetryPolicy{})
	f.publisher.err = errors.New("redis down")
	ideaID := f.idea(t, "alice")

	like := models.Like{ID: models.LikeID(ideaID, "bob"), IdeaID: ideaID, UserHandle: "bob"}
	require.NoError(t, f.triggers.CreateNotificationOnLike(ctx, likeEvent(t, events.KindCreate, like)))

	_, err := f.notifications.GetNotification(ctx, like.ID)
	assert.NoError(t, err)
}

func TestDeleteNotificationOnUnlike(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, docstore.NewMemoryStore(), events.RetryPolicy{})
	ideaID := f.idea(t, "alice")

	like := models.Like{ID: models.LikeID(ideaID, "bob"), IdeaID: ideaID, UserHandle: "bob"}
	require.NoError(t, f.triggers.CreateNotificationOnLike(ctx, likeEvent(t, events.KindCreate, like)))

	unlike := likeEvent(t, events.KindDelete, like)
	require.NoError(t, f.triggers.DeleteNotificationOnUnlike(ctx, unlike))
	_, err := f.notifications.GetNotification(ctx, like.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// No paired notification left: still fine.
	assert.NoError(t, f.triggers.DeleteNotificationOnUnlike(ctx, unlike))
}

func TestRedisNotificationPublisher(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(ctx, NotificationChannel("alice"))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := models.Notification{ID: "n1", Recipient: "alice", Sender: "bob", Type: models.NotificationLike, IdeaID: "idea1"}
	require.NoError(t, NewRedisNotificationPublisher(client).PublishNotification(ctx, n))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, "user_notifications:alice", msg.Channel)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, "n1", payload["id"])
	assert.Equal(t, "bob", payload["sender"])
	assert.Equal(t, "like", payload["type"])
}
