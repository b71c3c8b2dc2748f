package repositories

import (
	"context"
	"errors"
	"net/http"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/anonto42/ideafeed/backend/internal/models"
	"github.com/anonto42/ideafeed/backend/pkg/apperror"
)

// UserRepository defines the interface for user profile operations. Profiles
// are owned by the auth subsystem; the feed reads them and the profile
// trigger reacts to their updates.
type UserRepository interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUserByHandle(ctx context.Context, handle string) (*models.User, error)
	UpdateImage(ctx context.Context, handle, imageURL string) error
}

// StoreUserRepository implements UserRepository on a document store
type StoreUserRepository struct {
	store docstore.Store
}

// NewUserRepository creates a new StoreUserRepository
func NewUserRepository(store docstore.Store) *StoreUserRepository {
	return &StoreUserRepository{store: store}
}

// SaveUser creates the profile keyed by user.Handle or merges user into it.
// Fields the auth subsystem stored that User does not model are kept.
func (r *StoreUserRepository) SaveUser(ctx context.Context, user *models.User) error {
	fields, err := docstore.Encode(user)
	if err != nil {
		return err
	}
	err = r.store.Update(ctx, models.CollectionUsers, user.Handle, fields)
	if !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	err = r.store.Create(ctx, models.CollectionUsers, user.Handle, fields)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		// Created concurrently; merge into it.
		return r.store.Update(ctx, models.CollectionUsers, user.Handle, fields)
	}
	return err
}

// GetUserByHandle retrieves a profile by handle
func (r *StoreUserRepository) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	doc, err := r.store.Get(ctx, models.CollectionUsers, handle)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperror.New(http.StatusNotFound, "user not found", err)
		}
		return nil, err
	}
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateImage changes the profile image of handle
func (r *StoreUserRepository) UpdateImage(ctx context.Context, handle, imageURL string) error {
	err := r.store.Update(ctx, models.CollectionUsers, handle, docstore.Fields{"imageUrl": imageURL})
	if errors.Is(err, docstore.ErrNotFound) {
		return apperror.New(http.StatusNotFound, "user not found", err)
	}
	return err
}
