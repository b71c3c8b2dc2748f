package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/anonto42/ideafeed/backend/internal/events"
	"github.com/spf13/cobra"
)

func newDeadLetterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletter",
		Short: "Inspect and replay failed trigger invocations",
		Long: `Failed trigger invocations are pushed to a Redis list when REDIS_URL is set.
These commands read that list.`,
	}
	cmd.AddCommand(newDeadLetterListCommand())
	cmd.AddCommand(newDeadLetterReplayCommand())
	return cmd
}

func newDeadLetterListCommand() *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:          "list",
		Short:        "Print dead-lettered failures, oldest first, as JSON lines",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer rt.close()

			dl, err := rt.deadLetter()
			if err != nil {
				return err
			}
			failures, err := dl.List(ctx, limit)
			if err != nil {
				return err
			}
			return writeFailures(cmd.OutOrStdout(), failures)
		},
	}
	cmd.Flags().Int64VarP(&limit, "limit", "n", 100, "maximum number of failures to print")
	return cmd
}

func newDeadLetterReplayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Re-run every dead-lettered failure against its handler",
		Long: `Pop each failure queued when the command starts and deliver its event to the
handler that failed. Failures that fail again are pushed back.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer rt.close()

			dl, err := rt.deadLetter()
			if err != nil {
				return err
			}

			bus := rt.app.Bus
			bus.Start(ctx)
			replayed, failed, err := replay(ctx, dl, bus, rt.logger)
			// Follow-on events of replayed handlers run before exit.
			bus.Wait()
			bus.Close()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d, failed again %d\n", replayed, failed)
			return nil
		},
	}
}

func (r *runtime) deadLetter() (*events.RedisDeadLetter, error) {
	if r.redis == nil {
		return nil, fmt.Errorf("REDIS_URL environment variable not set")
	}
	return events.NewRedisDeadLetter(r.redis, events.DefaultDeadLetterKey), nil
}

// failureQueue is the dead-letter list as replay sees it
type failureQueue interface {
	events.DeadLetter
	Len(ctx context.Context) (int64, error)
	Pop(ctx context.Context) (*events.Failure, error)
}

// deliverer runs one named handler synchronously
type deliverer interface {
	Deliver(ctx context.Context, name string, ev events.Event) error
}

// replay pops the failures present when it starts and delivers each to its
// handler. Failures that fail again are recorded anew, so a persistent
// failure is tried once per replay.
func replay(ctx context.Context, q failureQueue, d deliverer, logger *slog.Logger) (replayed, failed int, err error) {
	n, err := q.Len(ctx)
	if err != nil {
		return 0, 0, err
	}

	for i := int64(0); i < n; i++ {
		f, err := q.Pop(ctx)
		if err != nil {
			return replayed, failed, err
		}
		if f == nil {
			break
		}

		if derr := d.Deliver(ctx, f.Handler, f.Event); derr != nil {
			failed++
			logger.Warn("replay failed", "handler", f.Handler, "id", f.Event.ID, "error", derr)
			f.Error = derr.Error()
			if err := q.Record(ctx, *f); err != nil {
				return replayed, failed, fmt.Errorf("re-record failure of %s: %w", f.Handler, err)
			}
			continue
		}
		replayed++
		logger.Info("replayed", "handler", f.Handler, "id", f.Event.ID)
	}
	return replayed, failed, nil
}

func writeFailures(w io.Writer, failures []events.Failure) error {
	enc := json.NewEncoder(w)
	for _, f := range failures {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}
