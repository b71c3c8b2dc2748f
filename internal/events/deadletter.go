package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDeadLetterKey is the Redis list failed invocations are appended to.
const DefaultDeadLetterKey = "ideafeed:deadletter"

// Failure is a handler invocation that returned an error.
type Failure struct {
	Handler  string    `json:"handler"`
	Event    Event     `json:"event"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failedAt"`
}

// DeadLetter records failed handler invocations.
type DeadLetter interface {
	Record(ctx context.Context, f Failure) error
}

// LogDeadLetter only logs. The failure is gone once logged.
type LogDeadLetter struct {
	logger *slog.Logger
}

func NewLogDeadLetter(logger *slog.Logger) *LogDeadLetter {
	return &LogDeadLetter{logger: logger}
}

func (d *LogDeadLetter) Record(_ context.Context, f Failure) error {
	d.logger.Warn("dropping failed trigger",
		"handler", f.Handler,
		"collection", f.Event.Collection,
		"kind", f.Event.Kind,
		"id", f.Event.ID,
		"error", f.Error,
	)
	return nil
}

// RedisDeadLetter keeps failures in a Redis list so they can be inspected and
// replayed later.
type RedisDeadLetter struct {
	client *redis.Client
	key    string
}

func NewRedisDeadLetter(client *redis.Client, key string) *RedisDeadLetter {
	if key == "" {
		key = DefaultDeadLetterKey
	}
	return &RedisDeadLetter{client: client, key: key}
}

func (d *RedisDeadLetter) Record(ctx context.Context, f Failure) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode failure: %w", err)
	}
	return d.client.RPush(ctx, d.key, payload).Err()
}

// List returns up to n failures, oldest first, without removing them.
func (d *RedisDeadLetter) List(ctx context.Context, n int64) ([]Failure, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := d.client.LRange(ctx, d.key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	failures := make([]Failure, 0, len(raw))
	for _, r := range raw {
		var f Failure
		if err := json.Unmarshal([]byte(r), &f); err != nil {
			return nil, fmt.Errorf("decode failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, nil
}

// Pop removes and returns the oldest failure, or nil when the list is empty.
func (d *RedisDeadLetter) Pop(ctx context.Context) (*Failure, error) {
	raw, err := d.client.LPop(ctx, d.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f Failure
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("decode failure: %w", err)
	}
	return &f, nil
}

func (d *RedisDeadLetter) Len(ctx context.Context) (int64, error) {
	return d.client.LLen(ctx, d.key).Result()
}
