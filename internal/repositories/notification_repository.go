package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/pkg/apperror"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) (bool, error)
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	DeleteNotification(ctx context.Context, id string) error
	GetByRecipient(ctx context.Context, recipient string) ([]models.Notification, error)
	GetByIdeaID(ctx context.Context, ideaID string) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, ids []string) error
}

type storeNotificationRepository struct {
	store docstore.Store
}

func NewNotificationRepository(store docstore.Store) NotificationRepository {
	return &storeNotificationRepository{store: store}
}

// CreateNotification writes n under n.ID unless it already exists. The
// returned bool is false when an earlier delivery already created it.
func (r *storeNotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) (bool, error) {
	fields, err := docstore.Encode(n)
	if err != nil {
		return false, err
	}
	err = r.store.Create(ctx, models.CollectionNotifications, n.ID, fields)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *storeNotificationRepository) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	doc, err := r.store.Get(ctx, models.CollectionNotifications, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	n, err := decodeNotification(*doc)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNotification deletes a notification. A missing one is not an error.
func (r *storeNotificationRepository) DeleteNotification(ctx context.Context, id string) error {
	return r.store.Delete(ctx, models.CollectionNotifications, id)
}

func (r *storeNotificationRepository) GetByRecipient(ctx context.Context, recipient string) ([]models.Notification, error) {
	return r.query(ctx, docstore.Query{
		Collection: models.CollectionNotifications,
		Filters:    []docstore.Filter{docstore.Where("recipient", recipient)},
		OrderBy:    "createdAt",
		Desc:       true,
	})
}

func (r *storeNotificationRepository) GetByIdeaID(ctx context.Context, ideaID string) ([]models.Notification, error) {
	return r.query(ctx, docstore.Query{
		Collection: models.CollectionNotifications,
		Filters:    []docstore.Filter{docstore.Where("ideaId", ideaID)},
	})
}

// MarkAsRead sets read=true on every listed notification in one batch
func (r *storeNotificationRepository) MarkAsRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := r.store.Batch()
	for _, id := range ids {
		batch.Update(models.CollectionNotifications, id, docstore.Fields{"read": true})
	}
	err := batch.Commit(ctx)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperror.ErrNotFound
	}
	return err
}

func (r *storeNotificationRepository) query(ctx context.Context, q docstore.Query) ([]models.Notification, error) {
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(docs))
	for _, doc := range docs {
		n, err := decodeNotification(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func decodeNotification(doc docstore.Document) (models.Notification, error) {
	var n models.Notification
	if err := doc.DataTo(&n); err != nil {
		return n, err
	}
	n.ID = doc.ID
	return n, nil
}
