package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/digkill/productgenius/internal/models"
)

// MemoryUserStore keeps entitlement records in process memory.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
	now   func() time.Time
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[string]models.User),
		now:   time.Now,
	}
}

func (s *MemoryUserStore) Get(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := u.Clone()
	return &out, nil
}

func (s *MemoryUserStore) Put(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != user.Version {
		return ErrVersionConflict
	}
	if s.emailTaken(user.Email, user.ID) {
		return ErrDuplicateEmail
	}
	user.Version++
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = s.now().UTC()
	s.users[user.ID] = user.Clone()
	return nil
}

func (s *MemoryUserStore) List(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.Clone())
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return ErrAlreadyExists
	}
	if s.emailTaken(user.Email, user.ID) {
		return ErrDuplicateEmail
	}
	now := s.now().UTC()
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user.Clone()
	return nil
}

func (s *MemoryUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryUserStore) emailTaken(email, exceptID string) bool {
	for id, u := range s.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}
