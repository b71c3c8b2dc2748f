package docstore

import (
	"context"
	"errors"

	"github.com/anonto42/ideafeed/backend/internal/events"
)

// Publisher receives the change events of an observed store.
type Publisher interface {
	Publish(ev events.Event)
}

// ObservedStore publishes one change event per successful write of the wrapped
// store. Before images are read just before the write and after images just
// after it, so they are exact only when a document has a single writer at a
// time. Use a change stream where that does not hold.
type ObservedStore struct {
	Store
	pub Publisher
}

// Observe wraps s so that every successful write is published to pub.
func Observe(s Store, pub Publisher) *ObservedStore {
	return &ObservedStore{Store: s, pub: pub}
}

func (o *ObservedStore) Create(ctx context.Context, collection, id string, fields Fields) error {
	if err := o.Store.Create(ctx, collection, id, fields); err != nil {
		return err
	}
	o.publish(events.KindCreate, collection, id, nil, o.image(ctx, collection, id, fields))
	return nil
}

func (o *ObservedStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id, err := o.Store.Add(ctx, collection, fields)
	if err != nil {
		return "", err
	}
	o.publish(events.KindCreate, collection, id, nil, o.image(ctx, collection, id, fields))
	return id, nil
}

func (o *ObservedStore) Set(ctx context.Context, collection, id string, fields Fields) error {
	before, err := o.before(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := o.Store.Set(ctx, collection, id, fields); err != nil {
		return err
	}
	kind := events.KindUpdate
	if before == nil {
		kind = events.KindCreate
	}
	o.publish(kind, collection, id, before, o.image(ctx, collection, id, fields))
	return nil
}

func (o *ObservedStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	before, err := o.before(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := o.Store.Update(ctx, collection, id, fields); err != nil {
		return err
	}
	o.publish(events.KindUpdate, collection, id, before, o.image(ctx, collection, id, nil))
	return nil
}

func (o *ObservedStore) Delete(ctx context.Context, collection, id string) error {
	before, err := o.before(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := o.Store.Delete(ctx, collection, id); err != nil {
		return err
	}
	// Nothing was removed, so nothing changed.
	if before != nil {
		o.publish(events.KindDelete, collection, id, before, nil)
	}
	return nil
}

// DeleteExisting publishes only when this call removed the document.
func (o *ObservedStore) DeleteExisting(ctx context.Context, collection, id string) error {
	before, err := o.before(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := o.Store.DeleteExisting(ctx, collection, id); err != nil {
		return err
	}
	o.publish(events.KindDelete, collection, id, before, nil)
	return nil
}

func (o *ObservedStore) Batch() Batch {
	return &observedBatch{inner: o.Store.Batch(), store: o}
}

// before returns the current image of the document, or nil if it does not exist.
func (o *ObservedStore) before(ctx context.Context, collection, id string) (Fields, error) {
	doc, err := o.Store.Get(ctx, collection, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Fields, nil
}

// image reads back the stored document, falling back to the written fields.
func (o *ObservedStore) image(ctx context.Context, collection, id string, written Fields) Fields {
	doc, err := o.Store.Get(ctx, collection, id)
	if err != nil {
		return written
	}
	return doc.Fields
}

func (o *ObservedStore) publish(kind events.Kind, collection, id string, before, after Fields) {
	o.pub.Publish(events.Event{
		Collection: collection,
		Kind:       kind,
		ID:         id,
		Before:     before,
		After:      after,
	})
}

type observedBatch struct {
	Staged
	inner Batch
	store *ObservedStore
}

func (b *observedBatch) Commit(ctx context.Context) error {
	befores := make([]Fields, len(b.Writes))
	for i, w := range b.Writes {
		before, err := b.store.before(ctx, w.Collection, w.ID)
		if err != nil {
			return err
		}
		befores[i] = before
	}

	for _, w := range b.Writes {
		switch w.Op {
		case WriteUpdate:
			b.inner.Update(w.Collection, w.ID, w.Fields)
		case WriteDelete:
			b.inner.Delete(w.Collection, w.ID)
		}
	}
	if err := b.inner.Commit(ctx); err != nil {
		return err
	}

	for i, w := range b.Writes {
		if befores[i] == nil {
			continue
		}
		switch w.Op {
		case WriteUpdate:
			b.store.publish(events.KindUpdate, w.Collection, w.ID, befores[i], b.store.image(ctx, w.Collection, w.ID, nil))
		case WriteDelete:
			b.store.publish(events.KindDelete, w.Collection, w.ID, befores[i], nil)
		}
	}
	return nil
}
