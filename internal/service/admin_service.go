package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/digkill/productgenius/internal/models"
	"github.com/digkill/productgenius/internal/repository"
)

type UserFilter struct {
	Query       string
	PendingOnly bool
}

// AccountPatch is a set of direct edits applied in one versioned write.
type AccountPatch struct {
	BusinessName *string    `json:"business_name,omitempty"`
	CreditsDelta *int       `json:"credits_delta,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	ClearExpiry  bool       `json:"clear_expiry,omitempty"`
}

// AdminService exposes field level edits with the same invariants as the user flows.
type AdminService struct {
	log       *slog.Logger
	users     repository.UserStore
	accounts  *AccountService
	purchases *PurchaseService
}

func NewAdminService(log *slog.Logger, users repository.UserStore, accounts *AccountService, purchases *PurchaseService) *AdminService {
	if log == nil {
		log = slog.Default()
	}
	return &AdminService{log: log, users: users, accounts: accounts, purchases: purchases}
}

// List filters by a case-insensitive substring of business name or email.
func (s *AdminService) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if filter.PendingOnly && !u.PaymentPending {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(u.BusinessName), query) &&
			!strings.Contains(strings.ToLower(u.Email), query) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *AdminService) Get(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, s.users, id)
}

func (s *AdminService) Create(ctx context.Context, in NewAccount) (*models.User, error) {
	return s.accounts.create(ctx, in)
}

func (s *AdminService) Update(ctx context.Context, id string, patch AccountPatch) (*models.User, error) {
	if patch.ClearExpiry && patch.ExpiryDate != nil {
		return nil, fmt.Errorf("%w: expiry_date and clear_expiry are exclusive", ErrInvalidInput)
	}
	user, err := updateUser(ctx, s.users, id, func(u *models.User) error {
		if patch.BusinessName != nil {
			u.BusinessName = strings.TrimSpace(*patch.BusinessName)
		}
		if patch.CreditsDelta != nil {
			u.Credits += *patch.CreditsDelta
			if u.Credits < 0 {
				u.Credits = 0
			}
		}
		if patch.ExpiryDate != nil {
			expiry := patch.ExpiryDate.UTC()
			u.ExpiresAt = &expiry
		}
		if patch.ClearExpiry {
			u.ExpiresAt = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account updated", "user_id", id, "credits", user.Credits)
	return user, nil
}

// AdjustCredits adds delta to the balance, clamping at zero.
func (s *AdminService) AdjustCredits(ctx context.Context, id string, delta int) (*models.User, error) {
	return s.Update(ctx, id, AccountPatch{CreditsDelta: &delta})
}

// SetExpiry sets the plan end. A nil expiry means the plan never expires.
func (s *AdminService) SetExpiry(ctx context.Context, id string, expiry *time.Time) (*models.User, error) {
	if expiry == nil {
		return s.Update(ctx, id, AccountPatch{ClearExpiry: true})
	}
	return s.Update(ctx, id, AccountPatch{ExpiryDate: expiry})
}

func (s *AdminService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info("account deleted", "user_id", id)
	return nil
}

func (s *AdminService) Approve(ctx context.Context, id string) (*models.User, error) {
	return s.purchases.Approve(ctx, id)
}

func (s *AdminService) PurchaseHistory(ctx context.Context, id string) ([]models.PurchaseRecord, error) {
	if _, err := getUser(ctx, s.users, id); err != nil {
		return nil, err
	}
	return s.purchases.History(ctx, id)
}
