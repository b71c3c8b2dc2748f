package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/anonto42/ideafeed/backend/internal/events"
	"github.com/anonto42/ideafeed/backend/internal/router"
	"github.com/anonto42/ideafeed/backend/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ideafeed",
		Short: "ideafeed backend",
		Long:  "Runs the ideafeed consistency engine: counters, likes, notifications, profile propagation and cascade deletion.",
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newDeadLetterCommand())
	return cmd
}

// runtime is everything a command needs once configuration is loaded
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *config.DB
	redis  *redis.Client
	app    *router.App
}

// setup loads configuration, opens the store and Redis and builds the app.
// inProcess forces store-observed triggers regardless of TRIGGER_SOURCE.
func setup(ctx context.Context, inProcess bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	db, err := config.InitDB(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	rdb, err := config.InitRedis(ctx, cfg.RedisURL)
	if err != nil {
		db.CloseDB(logger)
		return nil, err
	}

	opts := router.Options{
		Store:             db.Store,
		Redis:             rdb,
		InProcessTriggers: inProcess || cfg.TriggerSource == config.TriggerInProcess,
		Workers:           cfg.TriggerWorkers,
		Timeout:           cfg.TriggerTimeout,
		CascadeRetry: events.RetryPolicy{
			MaxAttempts: cfg.CascadeMaxAttempts,
			Backoff:     cfg.CascadeRetryBackoff,
		},
		Logger: logger,
	}
	if rdb != nil {
		opts.DeadLetter = events.NewRedisDeadLetter(rdb, events.DefaultDeadLetterKey)
	}

	app, err := router.Setup(opts)
	if err != nil {
		db.CloseDB(logger)
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, db: db, redis: rdb, app: app}, nil
}

func (r *runtime) close() {
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			r.logger.Error("error closing redis", "error", err)
		}
	}
	r.db.CloseDB(r.logger)
}
