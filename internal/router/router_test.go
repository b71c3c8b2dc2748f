package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/events"
	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/pkg/apperror"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = models.Identity{Handle: "alice", ImageURL: "alice.png"}
	bob   = models.Identity{Handle: "bob", ImageURL: "bob.png"}
)

func newApp(t *testing.T, opts Options) (*App, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	opts.Store = store
	opts.InProcessTriggers = true

	app, err := Setup(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	app.Bus.Start(ctx)
	t.Cleanup(func() {
		app.Bus.Close()
		cancel()
	})
	return app, store
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	app, store := newApp(t, Options{})

	// Alice posts p1.
	p1, err := app.Ideas.CreateIdea(ctx, alice, models.CreateIdeaRequest{Body: "p1"})
	require.NoError(t, err)
	assert.Zero(t, p1.LikeCount)
	assert.Zero(t, p1.CommentCount)

	// Bob likes it: one notification for alice.
	liked, err := app.Likes.LikeIdea(ctx, bob, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, liked.LikeCount)
	app.Bus.Wait()

	notifications, err := app.Notifications.ListNotifications(ctx, alice)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationLike, notifications[0].Type)
	assert.Equal(t, "bob", notifications[0].Sender)
	assert.Equal(t, models.LikeID(p1.ID, "bob"), notifications[0].ID)

	// A second like is rejected.
	_, err = app.Likes.LikeIdea(ctx, bob, p1.ID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyLiked)

	// Unlike removes the count and the notification.
	unliked, err := app.Likes.UnlikeIdea(ctx, bob, p1.ID)
	require.NoError(t, err)
	assert.Zero(t, unliked.LikeCount)
	app.Bus.Wait()

	notifications, err = app.Notifications.ListNotifications(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, notifications)

	// Bob comments and likes again, alice likes her own idea.
	_, err = app.Comments.CommentOnIdea(ctx, bob, p1.ID, models.CreateCommentRequest{Body: "nice"})
	require.NoError(t, err)
	_, err = app.Likes.LikeIdea(ctx, bob, p1.ID)
	require.NoError(t, err)
	_, err = app.Likes.LikeIdea(ctx, alice, p1.ID)
	require.NoError(t, err)
	app.Bus.Wait()

	notifications, err = app.Notifications.ListNotifications(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, notifications, 2, "comment and like by bob, nothing for the self-like")

	detail, err := app.Ideas.GetIdea(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.LikeCount)
	assert.Equal(t, 1, detail.CommentCount)

	// Alice deletes p1: every dependent goes.
	require.NoError(t, app.Ideas.DeleteIdea(ctx, alice, p1.ID))
	app.Bus.Wait()

	assert.Zero(t, store.Len(models.CollectionIdeas))
	assert.Zero(t, store.Len(models.CollectionComments))
	assert.Zero(t, store.Len(models.CollectionLikes))
	assert.Zero(t, store.Len(models.CollectionNotifications))
}

func TestProfilePropagation(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, Options{})

	require.NoError(t, app.Users.SaveUser(ctx, &models.User{Handle: "alice", ImageURL: "alice.png"}))
	mine, err := app.Ideas.CreateIdea(ctx, alice, models.CreateIdeaRequest{Body: "mine"})
	require.NoError(t, err)
	theirs, err := app.Ideas.CreateIdea(ctx, bob, models.CreateIdeaRequest{Body: "theirs"})
	require.NoError(t, err)

	require.NoError(t, app.Users.UpdateImage(ctx, "alice", "alice-2.png"))
	app.Bus.Wait()

	got, err := app.Ideas.GetIdea(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice-2.png", got.UserImage)

	got, err = app.Ideas.GetIdea(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob.png", got.UserImage)
}

func TestSetup_PublishesNotificationsOnRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(ctx, "user_notifications:alice")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	app, _ := newApp(t, Options{Redis: client})
	p1, err := app.Ideas.CreateIdea(ctx, alice, models.CreateIdeaRequest{Body: "p1"})
	require.NoError(t, err)
	_, err = app.Likes.LikeIdea(ctx, bob, p1.ID)
	require.NoError(t, err)
	app.Bus.Wait()

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, models.LikeID(p1.ID, "bob"))
}

type memoryDeadLetter struct {
	failures []events.Failure
}

func (d *memoryDeadLetter) Record(_ context.Context, f events.Failure) error {
	d.failures = append(d.failures, f)
	return nil
}

func TestSetup_TriggerFailuresAreDeadLettered(t *testing.T) {
	ctx := context.Background()
	dl := &memoryDeadLetter{}
	app, store := newApp(t, Options{Workers: 1, DeadLetter: dl})

	// A like whose image cannot decode into a Like fails its trigger.
	require.NoError(t, app.Store.Create(ctx, models.CollectionLikes, "bad", docstore.Fields{"ideaId": 42}))
	app.Bus.Wait()

	require.Len(t, dl.failures, 1)
	assert.Equal(t, "createNotificationOnLike", dl.failures[0].Handler)
	assert.Equal(t, "bad", dl.failures[0].Event.ID)
	assert.Equal(t, 1, store.Len(models.CollectionLikes), "the primary write stands")
}

func TestSetupRoutes(t *testing.T) {
	app, _ := newApp(t, Options{})
	e := echo.New()
	SetupRoutes(e, app)

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
