package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/productgenius/internal/models"
)

func newFixtureUser(id, email string) *models.User {
	expires := time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)
	return &models.User{
		ID:           id,
		Email:        email,
		BusinessName: "Shop " + id,
		PasswordHash: "hash",
		Credits:      1,
		Package:      models.PackageFree,
		ExpiresAt:    &expires,
	}
}

// storeContract runs the same behavioural checks against every UserStore implementation.
func storeContract(t *testing.T, newStore func(t *testing.T) UserStore) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		store := newStore(t)
		u := newFixtureUser("u1", "a@example.com")
		require.NoError(t, store.Create(ctx, u))

		requested := models.Package3M
		u.PaymentPending = true
		u.RequestedPackage = &requested
		u.Credits = 7
		require.NoError(t, store.Put(ctx, u))

		got, err := store.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, u.Email, got.Email)
		assert.Equal(t, u.Credits, got.Credits)
		assert.Equal(t, u.Package, got.Package)
		assert.Equal(t, u.PaymentPending, got.PaymentPending)
		require.NotNil(t, got.RequestedPackage)
		assert.Equal(t, models.Package3M, *got.RequestedPackage)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, u.ExpiresAt.Equal(*got.ExpiresAt))
		assert.Equal(t, u.Version, got.Version)
	})

	t.Run("nil expiry survives", func(t *testing.T) {
		store := newStore(t)
		u := newFixtureUser("u1", "a@example.com")
		u.ExpiresAt = nil
		require.NoError(t, store.Create(ctx, u))

		got, err := store.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, got.ExpiresAt)
		assert.Nil(t, got.RequestedPackage)
		assert.False(t, got.PaymentPending)
	})

	t.Run("create duplicate id", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, newFixtureUser("u1", "a@example.com")))
		err := store.Create(ctx, newFixtureUser("u1", "b@example.com"))
		require.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("create duplicate email", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, newFixtureUser("u1", "a@example.com")))
		err := store.Create(ctx, newFixtureUser("u2", "A@example.com"))
		require.ErrorIs(t, err, ErrDuplicateEmail)

		users, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("stale version rejected", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, newFixtureUser("u1", "a@example.com")))

		first, err := store.Get(ctx, "u1")
		require.NoError(t, err)
		second, err := store.Get(ctx, "u1")
		require.NoError(t, err)

		first.Credits = 5
		require.NoError(t, store.Put(ctx, first))

		second.Credits = 9
		require.ErrorIs(t, store.Put(ctx, second), ErrVersionConflict)

		got, err := store.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 5, got.Credits)
	})

	t.Run("put missing", func(t *testing.T) {
		store := newStore(t)
		require.ErrorIs(t, store.Put(ctx, newFixtureUser("ghost", "g@example.com")), ErrNotFound)
	})

	t.Run("delete removes from list", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, newFixtureUser("u1", "a@example.com")))
		require.NoError(t, store.Create(ctx, newFixtureUser("u2", "b@example.com")))

		require.NoError(t, store.Delete(ctx, "u1"))
		require.ErrorIs(t, store.Delete(ctx, "u1"), ErrNotFound)

		_, err := store.Get(ctx, "u1")
		require.ErrorIs(t, err, ErrNotFound)

		users, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "u2", users[0].ID)
	})
}

func TestMemoryUserStore(t *testing.T) {
	storeContract(t, func(t *testing.T) UserStore { return NewMemoryUserStore() })
}

func TestUserRepository(t *testing.T) {
	storeContract(t, func(t *testing.T) UserStore { return NewUserRepository(newTestDB(t)) })
}

func TestUserRepositoryStoresMillisecondTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))
	repo.now = func() time.Time { return time.Date(2026, 10, 17, 9, 30, 0, 123456789, time.UTC) }

	u := newFixtureUser("u1", "a@example.com")
	expires := time.Date(2026, 11, 1, 12, 0, 0, 987654321, time.UTC)
	u.ExpiresAt = &expires
	require.NoError(t, repo.Create(ctx, u))
	u.Credits = 4
	require.NoError(t, repo.Put(ctx, u))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, 987000000, got.ExpiresAt.Nanosecond())
	assert.True(t, u.ExpiresAt.Equal(*got.ExpiresAt))
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, u.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, 123000000, got.UpdatedAt.Nanosecond())
	assert.Equal(t, u.Version, got.Version)
	assert.Equal(t, u.Credits, got.Credits)
}

func TestMemoryUserStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUserStore()
	require.NoError(t, store.Create(ctx, newFixtureUser("u1", "a@example.com")))

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	got.Credits = 100
	*got.ExpiresAt = time.Time{}

	again, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Credits)
	assert.False(t, again.ExpiresAt.IsZero())
}

func TestMemoryUserStoreConcurrentPutsConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUserStore()
	require.NoError(t, store.Create(ctx, newFixtureUser("u1", "a@example.com")))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < writers; i++ {
		snapshot, err := store.Get(ctx, "u1")
		require.NoError(t, err)
		wg.Add(1)
		go func(u *models.User) {
			defer wg.Done()
			u.Credits--
			if err := store.Put(ctx, u); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(snapshot)
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}
