package mongostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/events"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// namespaceExists is returned by create on an existing collection.
const namespaceExists = 48

// Watcher tails a database change stream and publishes one event per insert,
// update, replace or delete on the watched collections. Update and delete
// events carry the pre-image when EnsurePreImages has been applied.
type Watcher struct {
	db          *mongo.Database
	collections []string
	pub         docstore.Publisher
	logger      *slog.Logger

	mu          sync.Mutex
	resumeToken bson.Raw
}

// NewWatcher creates a Watcher publishing to pub.
func NewWatcher(db *mongo.Database, pub docstore.Publisher, logger *slog.Logger, collections ...string) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{db: db, collections: collections, pub: pub, logger: logger}
}

// EnsurePreImages creates the watched collections if needed and turns on
// pre- and post-image recording, so update and delete events carry Before.
func (w *Watcher) EnsurePreImages(ctx context.Context) error {
	for _, name := range w.collections {
		if err := w.db.CreateCollection(ctx, name); err != nil {
			var cmdErr mongo.CommandError
			if !errors.As(err, &cmdErr) || cmdErr.Code != namespaceExists {
				return fmt.Errorf("create collection %s: %w", name, err)
			}
		}
		cmd := bson.D{
			{Key: "collMod", Value: name},
			{Key: "changeStreamPreAndPostImages", Value: bson.D{{Key: "enabled", Value: true}}},
		}
		if err := w.db.RunCommand(ctx, cmd).Err(); err != nil {
			return fmt.Errorf("enable pre-images on %s: %w", name, err)
		}
	}
	return nil
}

// ResumeToken returns the token of the last published change.
func (w *Watcher) ResumeToken() bson.Raw {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resumeToken
}

// Run opens the change stream and publishes until ctx is cancelled or the
// stream fails. Calling Run again resumes after the last published change.
func (w *Watcher) Run(ctx context.Context) error {
	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetFullDocumentBeforeChange(options.WhenAvailable)
	if token := w.ResumeToken(); token != nil {
		opts.SetResumeAfter(token)
	}

	stream, err := w.db.Watch(ctx, watchPipeline(w.collections), opts)
	if err != nil {
		return fmt.Errorf("open change stream: %w", err)
	}
	defer stream.Close(context.WithoutCancel(ctx))

	w.logger.Info("change stream opened", "collections", w.collections)

	for stream.Next(ctx) {
		var ch change
		if err := stream.Decode(&ch); err != nil {
			w.logger.Error("decode change", "error", err)
			continue
		}
		if ev, ok := ch.event(); ok {
			w.pub.Publish(ev)
		}

		w.mu.Lock()
		w.resumeToken = stream.ResumeToken()
		w.mu.Unlock()
	}

	if ctx.Err() != nil {
		return nil
	}
	return stream.Err()
}

func watchPipeline(collections []string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "ns.coll", Value: bson.D{{Key: "$in", Value: collections}}},
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}},
		}}},
	}
}

// change is the subset of a change stream document the watcher needs
type change struct {
	OperationType string `bson:"operationType"`
	NS            struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey struct {
		ID any `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument             bson.M `bson:"fullDocument"`
	FullDocumentBeforeChange bson.M `bson:"fullDocumentBeforeChange"`
}

func (c change) event() (events.Event, bool) {
	ev := events.Event{
		Collection: c.NS.Coll,
		ID:         idString(c.DocumentKey.ID),
	}

	switch c.OperationType {
	case "insert":
		ev.Kind = events.KindCreate
		ev.After = toFields(c.FullDocument)
	case "update", "replace":
		ev.Kind = events.KindUpdate
		ev.Before = toFields(c.FullDocumentBeforeChange)
		ev.After = toFields(c.FullDocument)
	case "delete":
		ev.Kind = events.KindDelete
		ev.Before = toFields(c.FullDocumentBeforeChange)
	default:
		return events.Event{}, false
	}
	return ev, true
}
