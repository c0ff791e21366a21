package store

import (
	"context"
	"fmt"

	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
)

type UserStore struct {
	db docstore.Reader
	w  writer
}

func NewUserStore(db docstore.Store) *UserStore {
	return &UserStore{db: db, w: db}
}

func (r *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	if err := r.db.Get(ctx, UsersCollection, id, u); err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return u, nil
}

func (r *UserStore) GetAllUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.Query(ctx, UsersCollection, nil, &users); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *UserStore) SaveUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = normalizeTime(u.CreatedAt)
	if err := r.w.Set(ctx, UsersCollection, u.ID, u); err != nil {
		return fmt.Errorf("could not save user %s: %w", u.ID, err)
	}
	return nil
}
