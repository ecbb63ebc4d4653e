package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/digkill/productgenius/internal/models"
	"github.com/digkill/productgenius/internal/repository"
)

// Each conflict means another writer committed, so the bound only needs to
// exceed the number of writers expected to race on one record.
const maxUpdateAttempts = 16

// updateUser re-reads the record, applies mutate and writes it back with the
// read version, retrying when another writer got there first. A record that
// disappears is reported as ErrAccountNotFound and never re-created.
func updateUser(ctx context.Context, store repository.UserStore, id string, mutate func(*models.User) error) (*models.User, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		user, err := store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrAccountNotFound
			}
			return nil, fmt.Errorf("get user: %w", err)
		}
		if err := mutate(user); err != nil {
			return nil, err
		}
		err = store.Put(ctx, user)
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, repository.ErrVersionConflict):
			continue
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrAccountNotFound
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrDuplicateEmail
		default:
			return nil, fmt.Errorf("put user: %w", err)
		}
	}
	return nil, fmt.Errorf("update user %s: %w", id, repository.ErrVersionConflict)
}

func getUser(ctx context.Context, store repository.UserStore, id string) (*models.User, error) {
	user, err := store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// keyedGuard admits one holder per key.
type keyedGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newKeyedGuard() *keyedGuard {
	return &keyedGuard{held: make(map[string]struct{})}
}

func (g *keyedGuard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return false
	}
	g.held[key] = struct{}{}
	return true
}

func (g *keyedGuard) release(key string) {
	g.mu.Lock()
	delete(g.held, key)
	g.mu.Unlock()
}
