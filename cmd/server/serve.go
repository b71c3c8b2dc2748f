package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/ideafeed/backend/internal/docstore/mongostore"
	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/internal/router"
	"github.com/anonto42/ideafeed/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

// watchRestartDelay is how long the watcher waits before reopening a failed
// change stream.
const watchRestartDelay = 2 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the trigger engine and the health server",
		Long: `Open the configured document store, start the trigger workers and serve
/health and /ready until SIGINT or SIGTERM.

With TRIGGER_SOURCE=changestream the triggers are fed from a MongoDB change
stream, so writes made by any process fire them. With the default inprocess
source only writes made through this process fire them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	rt, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	logger := rt.logger
	app := rt.app

	// Workers outlive the signal so Close can drain queued side effects.
	app.Bus.Start(context.WithoutCancel(ctx))
	defer app.Bus.Close()

	switch rt.cfg.TriggerSource {
	case config.TriggerChangeStream:
		w := mongostore.NewWatcher(rt.db.Mongo, app.Bus, logger,
			models.CollectionIdeas,
			models.CollectionComments,
			models.CollectionLikes,
			models.CollectionUsers,
		)
		if err := w.EnsurePreImages(ctx); err != nil {
			return err
		}
		go watch(ctx, w, rt)
	default:
		logger.Warn("triggers fire only for writes made through this process", "trigger_source", rt.cfg.TriggerSource)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Setup global middleware
	config.SetupMiddleware(e, logger)

	// Setup routes
	router.SetupRoutes(e, app)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", rt.cfg.Port, "handlers", app.Bus.Handlers())
		if err := e.Start(":" + rt.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	return nil
}

// watch keeps the change stream open until ctx is cancelled, resuming after
// the last published change whenever the stream fails.
func watch(ctx context.Context, w *mongostore.Watcher, rt *runtime) {
	for {
		err := w.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		rt.logger.Error("change stream closed, reopening", "error", err, "delay", watchRestartDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(watchRestartDelay):
		}
	}
}
