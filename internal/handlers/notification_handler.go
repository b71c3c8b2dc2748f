package handlers

import (
	"context"

	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/internal/repositories"
	"github.com/anonto42/ideafeed/backend/pkg/apperror"
)

// NotificationHandler serves the caller's notifications
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
}

func NewNotificationHandler(notificationRepo repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepository: notificationRepo}
}

// ListNotifications returns the caller's notifications, newest first
func (h *NotificationHandler) ListNotifications(ctx context.Context, caller models.Identity) ([]models.Notification, error) {
	if err := requireCaller(caller.Handle); err != nil {
		return nil, err
	}
	notifications, err := h.notificationRepository.GetByRecipient(ctx, caller.Handle)
	if err != nil {
		return nil, storeError("list notifications", err)
	}
	return notifications, nil
}

// MarkNotificationsRead marks the given notifications of caller as read in
// one batch. Every id must exist and belong to caller.
func (h *NotificationHandler) MarkNotificationsRead(ctx context.Context, caller models.Identity, ids []string) error {
	if err := requireCaller(caller.Handle); err != nil {
		return err
	}

	for _, id := range ids {
		n, err := h.notificationRepository.GetNotification(ctx, id)
		if err != nil {
			return storeError("get notification", err)
		}
		if n.Recipient != caller.Handle {
			return apperror.ErrUnauthorized
		}
	}

	if err := h.notificationRepository.MarkAsRead(ctx, ids); err != nil {
		return storeError("mark notifications read", err)
	}
	return nil
}
