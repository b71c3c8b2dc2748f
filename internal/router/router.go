package router

import (
	"io"
	"log/slog"
	"time"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/events"
	"github.com/anonto42/ideafeed/backend/internal/handlers"
	"github.com/anonto42/ideafeed/backend/internal/repositories"
	"github.com/anonto42/ideafeed/backend/internal/triggers"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Options wires the application together
type Options struct {
	Store docstore.Store
	// Redis is optional. When set, notifications are published on it.
	Redis *redis.Client
	// InProcessTriggers wraps Store so every write publishes its change
	// event on the bus. Leave it off when an external change feed (the
	// MongoDB watcher) publishes instead.
	InProcessTriggers bool
	Workers           int
	Timeout           time.Duration
	CascadeRetry      events.RetryPolicy
	// DeadLetter defaults to logging failures.
	DeadLetter events.DeadLetter
	Logger     *slog.Logger
	Now        func() time.Time
}

// App holds the exposed operations and the trigger bus behind them
type App struct {
	Ideas         *handlers.IdeaHandler
	Likes         *handlers.LikeHandler
	Comments      *handlers.CommentHandler
	Notifications *handlers.NotificationHandler
	Health        *handlers.HealthHandler
	// Users is the profile store of the authentication collaborator.
	// Image changes written through it fire profile propagation.
	Users    repositories.UserRepository
	Bus      *events.Bus
	Store    docstore.Store
	Triggers *triggers.Triggers
}

// Setup builds repositories, handlers and triggers over opts.Store and
// subscribes the triggers. The bus is returned unstarted.
func Setup(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	busOpts := []events.Option{
		events.WithWorkers(opts.Workers),
		events.WithTimeout(opts.Timeout),
		events.WithLogger(logger),
	}
	if opts.DeadLetter != nil {
		busOpts = append(busOpts, events.WithDeadLetter(opts.DeadLetter))
	}
	if opts.Now != nil {
		busOpts = append(busOpts, events.WithClock(opts.Now))
	}
	bus := events.NewBus(busOpts...)

	store := opts.Store
	if opts.InProcessTriggers {
		store = docstore.Observe(store, bus)
	}

	// --- Initialize Repositories ---
	ideaRepo := repositories.NewIdeaRepository(store)
	commentRepo := repositories.NewCommentRepository(store)
	likeRepo := repositories.NewLikeRepository(store)
	notificationRepo := repositories.NewNotificationRepository(store)
	userRepo := repositories.NewUserRepository(store)

	// --- Reactive handlers ---
	deps := triggers.Dependencies{
		Store:         store,
		Ideas:         ideaRepo,
		Comments:      commentRepo,
		Likes:         likeRepo,
		Notifications: notificationRepo,
		CascadeRetry:  opts.CascadeRetry,
		Logger:        logger,
		Now:           opts.Now,
	}
	if opts.Redis != nil {
		deps.Publisher = triggers.NewRedisNotificationPublisher(opts.Redis)
	}
	t := triggers.New(deps)
	if err := t.Register(bus); err != nil {
		return nil, err
	}
	logger.Debug("triggers registered", "handlers", bus.Handlers())

	return &App{
		Ideas:         handlers.NewIdeaHandler(ideaRepo, commentRepo),
		Likes:         handlers.NewLikeHandler(likeRepo, ideaRepo),
		Comments:      handlers.NewCommentHandler(commentRepo, ideaRepo),
		Notifications: handlers.NewNotificationHandler(notificationRepo),
		Health:        handlers.NewHealthHandler(opts.Store),
		Users:         userRepo,
		Bus:           bus,
		Store:         store,
		Triggers:      t,
	}, nil
}

// SetupRoutes configures the operational routes
func SetupRoutes(e *echo.Echo, app *App) {
	app.Health.RegisterHealthRoutes(e)
}
