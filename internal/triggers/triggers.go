// Package triggers holds the reactive handlers that keep derived state in
// step with primary writes: notification fan-out, profile image propagation
// and cascade deletion of an idea's comments, likes and notifications.
//
// Handlers run on the event bus after the write that caused them has been
// acknowledged. Their errors are logged and dead-lettered by the bus and never
// reach the caller of the primary operation.
package triggers

import (
	"io"
	"log/slog"
	"time"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/events"
	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/internal/repositories"
)

// Handler names as registered on the bus. Dead-letter entries refer to them.
const (
	CreateNotificationOnLike    = "createNotificationOnLike"
	DeleteNotificationOnUnlike  = "deleteNotificationOnUnlike"
	CreateNotificationOnComment = "createNotificationOnComment"
	OnUserImageChange           = "onUserImageChange"
	OnIdeaDelete                = "onIdeaDelete"
)

// Dependencies are the collaborators of the reactive handlers. Publisher is
// optional.
type Dependencies struct {
	Store         docstore.Store
	Ideas         repositories.IdeaRepository
	Comments      repositories.CommentRepository
	Likes         repositories.LikeRepository
	Notifications repositories.NotificationRepository
	Publisher     NotificationPublisher
	CascadeRetry  events.RetryPolicy
	Logger        *slog.Logger
	Now           func() time.Time
}

// Triggers implements the reactive handlers
type Triggers struct {
	store         docstore.Store
	ideas         repositories.IdeaRepository
	comments      repositories.CommentRepository
	likes         repositories.LikeRepository
	notifications repositories.NotificationRepository
	publisher     NotificationPublisher
	cascadeRetry  events.RetryPolicy
	logger        *slog.Logger
	now           func() time.Time
}

// New creates the reactive handlers
func New(deps Dependencies) *Triggers {
	t := &Triggers{
		store:         deps.Store,
		ideas:         deps.Ideas,
		comments:      deps.Comments,
		likes:         deps.Likes,
		notifications: deps.Notifications,
		publisher:     deps.Publisher,
		cascadeRetry:  deps.CascadeRetry,
		logger:        deps.Logger,
		now:           deps.Now,
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Register subscribes every handler on bus.
func (t *Triggers) Register(bus *events.Bus) error {
	subs := []struct {
		pattern string
		kind    events.Kind
		name    string
		handler events.HandlerFunc
	}{
		{models.CollectionLikes + "/{likeId}", events.KindCreate, CreateNotificationOnLike, t.CreateNotificationOnLike},
		{models.CollectionLikes + "/{likeId}", events.KindDelete, DeleteNotificationOnUnlike, t.DeleteNotificationOnUnlike},
		{models.CollectionComments + "/{commentId}", events.KindCreate, CreateNotificationOnComment, t.CreateNotificationOnComment},
		{models.CollectionUsers + "/{userId}", events.KindUpdate, OnUserImageChange, t.OnUserImageChange},
		{models.CollectionIdeas + "/{ideaId}", events.KindDelete, OnIdeaDelete, t.OnIdeaDelete},
	}

	for _, s := range subs {
		if err := bus.Subscribe(s.pattern, s.kind, s.name, s.handler); err != nil {
			return err
		}
	}
	return nil
}

// decode reads an event image into a model struct.
func decode(image map[string]any, v any) error {
	doc := docstore.Document{Fields: image}
	return doc.DataTo(v)
}
