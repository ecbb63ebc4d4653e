package repository

import (
	"context"
	"errors"

	"github.com/digkill/productgenius/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyExists   = errors.New("record already exists")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrVersionConflict = errors.New("record was modified concurrently")
)

// UserStore is the entitlement store. Records are read and written whole;
// Put only succeeds when the caller holds the current version and bumps it.
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Put(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}
