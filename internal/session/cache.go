package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digkill/productgenius/internal/models"
)

var ErrNoSession = errors.New("no active session")

// Entry maps a session to its principal. Cached is a convenience copy of the
// business record and is always refreshed from the store before use.
type Entry struct {
	Admin    bool         `json:"admin"`
	Email    string       `json:"email"`
	UserID   string       `json:"user_id,omitempty"`
	Cached   *models.User `json:"cached,omitempty"`
	LoggedAt time.Time    `json:"logged_at"`
}

// EntryFor builds the session entry for an authenticated principal.
func EntryFor(p models.Principal, now time.Time) Entry {
	switch v := p.(type) {
	case models.AdminPrincipal:
		return Entry{Admin: true, Email: v.Email, LoggedAt: now}
	case models.BusinessPrincipal:
		u := v.User.Clone()
		return Entry{Email: u.Email, UserID: u.ID, Cached: &u, LoggedAt: now}
	default:
		return Entry{LoggedAt: now}
	}
}

type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNoSession
	}
	if entry.Cached != nil {
		u := entry.Cached.Clone()
		entry.Cached = &u
	}
	return &entry, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, entry Entry) error {
	if entry.Cached != nil {
		u := entry.Cached.Clone()
		entry.Cached = &u
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// RedisCache keeps session entries as JSON values with a sliding TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "productgenius:session:", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if c.ttl > 0 {
		if err := c.client.Expire(ctx, c.prefix+key, c.ttl).Err(); err != nil {
			return nil, fmt.Errorf("refresh session ttl: %w", err)
		}
	}
	return &entry, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
