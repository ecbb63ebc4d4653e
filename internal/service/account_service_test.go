package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digkill/productgenius/internal/models"
)

func TestRegisterGrantsFreeTrial(t *testing.T) {
	f := newFixture(t)

	user, err := f.accounts.Register(context.Background(), " Owner@Shop.test ", "Corner Shop", "pw")
	require.NoError(t, err)
	require.Equal(t, "owner@shop.test", user.Email)
	require.Equal(t, "Corner Shop", user.BusinessName)
	require.Equal(t, 1, user.Credits)
	require.Equal(t, models.PackageFree, user.Package)
	require.False(t, user.PaymentPending)
	require.NotEqual(t, "pw", user.PasswordHash)
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), *user.ExpiresAt, time.Minute)

	stored := f.get(t, user.ID)
	require.Equal(t, user.Email, stored.Email)
}

func TestCreateDuplicateEmailKeepsCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Register(ctx, "owner@shop.test", "A", "pw")
	require.NoError(t, err)

	_, err = f.admin.Create(ctx, NewAccount{Email: "OWNER@shop.test", BusinessName: "B", Password: "pw2"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
	_, err = f.accounts.Register(ctx, "owner@shop.test", "C", "pw3")
	require.ErrorIs(t, err, ErrDuplicateEmail)

	users, err := f.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestRegisterRejectsAdminEmailAndBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.Register(ctx, "admin@productgenius.com", "X", "pw")
	require.ErrorIs(t, err, ErrDuplicateEmail)
	_, err = f.accounts.Register(ctx, "not-an-email", "X", "pw")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.accounts.Register(ctx, "x@shop.test", "X", "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.accounts.Register(ctx, "owner@shop.test", "Corner Shop", "secret")
	require.NoError(t, err)

	principal, err := f.accounts.Login(ctx, "OWNER@shop.test", "secret")
	require.NoError(t, err)
	bp, ok := principal.(models.BusinessPrincipal)
	require.True(t, ok)
	require.Equal(t, user.ID, bp.User.ID)
	require.Equal(t, "Corner Shop", principal.DisplayName())

	_, err = f.accounts.Login(ctx, "owner@shop.test", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.accounts.Login(ctx, "nobody@shop.test", "secret")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAdminLoginBypassesStore(t *testing.T) {
	accounts := NewAccountService(discardLogger(), untouchableStore{t: t}, AdminCredentials{Email: "Admin@ProductGenius.com", Password: "root"})

	principal, err := accounts.Login(context.Background(), "admin@productgenius.com", "root")
	require.NoError(t, err)
	require.Equal(t, models.AdminPrincipal{Email: "admin@productgenius.com"}, principal)

	refreshed, err := accounts.Refresh(context.Background(), principal)
	require.NoError(t, err)
	require.Equal(t, principal, refreshed)
}

func TestAdminEmailWithWrongPasswordIsInvalidCredentials(t *testing.T) {
	accounts := NewAccountService(discardLogger(), untouchableStore{t: t}, AdminCredentials{Email: "admin@productgenius.com", Password: "root"})

	_, err := accounts.Login(context.Background(), " Admin@ProductGenius.com", "guess")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.NotErrorIs(t, err, ErrAccountNotFound)
}

func TestRefreshReadsCurrentRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seed(t, models.User{ID: "u1", Credits: 2})

	_, err := f.admin.AdjustCredits(ctx, "u1", 5)
	require.NoError(t, err)

	refreshed, err := f.accounts.Refresh(ctx, models.BusinessPrincipal{User: user})
	require.NoError(t, err)
	require.Equal(t, 7, refreshed.(models.BusinessPrincipal).User.Credits)

	require.NoError(t, f.admin.Delete(ctx, "u1"))
	_, err = f.accounts.Refresh(ctx, models.BusinessPrincipal{User: user})
	require.ErrorIs(t, err, ErrAccountNotFound)
}
