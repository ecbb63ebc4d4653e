package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/digkill/productgenius/internal/models"
)

func TestHistoryNewestFirst(t *testing.T) {
	h := NewHistory()
	h.Prepend(models.GenerationResult{ID: "a"})
	h.Prepend(models.GenerationResult{ID: "b"})

	got := h.List()
	require.Len(t, got, 2)
	require.Equal(t, "b", got[0].ID)
	require.Equal(t, "a", got[1].ID)

	got[0].ID = "mutated"
	require.Equal(t, "b", h.List()[0].ID)
}

func TestHistoryConcurrentPrepend(t *testing.T) {
	h := NewHistory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Prepend(models.GenerationResult{ID: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()
	require.Equal(t, 50, h.Len())
}

func TestHistoriesPerKey(t *testing.T) {
	hs := NewHistories()
	hs.For("1").Prepend(models.GenerationResult{ID: "x"})

	require.Same(t, hs.For("1"), hs.For("1"))
	require.Equal(t, 0, hs.For("2").Len())

	hs.Drop("1")
	require.Equal(t, 0, hs.For("1").Len())
}

func TestEntryFor(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	admin := EntryFor(models.AdminPrincipal{Email: "admin@productgenius.com"}, now)
	require.True(t, admin.Admin)
	require.Nil(t, admin.Cached)

	biz := EntryFor(models.BusinessPrincipal{User: models.User{ID: "u1", Email: "a@b.c", Credits: 3}}, now)
	require.False(t, biz.Admin)
	require.Equal(t, "u1", biz.UserID)
	require.Equal(t, 3, biz.Cached.Credits)
}

func cacheContract(t *testing.T, cache Cache) {
	ctx := context.Background()

	_, err := cache.Get(ctx, "chat-1")
	require.ErrorIs(t, err, ErrNoSession)

	entry := EntryFor(models.BusinessPrincipal{User: models.User{ID: "u1", Email: "a@b.c", Credits: 2, Package: models.PackageFree}}, time.Now().UTC())
	require.NoError(t, cache.Set(ctx, "chat-1", entry))

	got, err := cache.Get(ctx, "chat-1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, 2, got.Cached.Credits)

	require.NoError(t, cache.Delete(ctx, "chat-1"))
	_, err = cache.Get(ctx, "chat-1")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestMemoryCache(t *testing.T) {
	cacheContract(t, NewMemoryCache())
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cacheContract(t, NewRedisCache(client, time.Hour))
}

func TestRedisCacheExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "chat-9", Entry{Admin: true, Email: "admin@productgenius.com"}))
	require.True(t, mr.Exists("productgenius:session:chat-9"))

	mr.FastForward(2 * time.Minute)
	_, err := cache.Get(ctx, "chat-9")
	require.ErrorIs(t, err, ErrNoSession)
}
