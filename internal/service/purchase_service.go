package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/digkill/productgenius/internal/catalog"
	"github.com/digkill/productgenius/internal/metrics"
	"github.com/digkill/productgenius/internal/models"
	"github.com/digkill/productgenius/internal/repository"
)

type PurchaseLog interface {
	Append(ctx context.Context, record *models.PurchaseRecord) error
	ListByUser(ctx context.Context, userID string) ([]models.PurchaseRecord, error)
}

// PurchaseService moves an account between active and payment pending.
type PurchaseService struct {
	log     *slog.Logger
	users   repository.UserStore
	records PurchaseLog
	metrics *metrics.Collector
	now     func() time.Time
}

func NewPurchaseService(log *slog.Logger, users repository.UserStore, records PurchaseLog, collector *metrics.Collector) *PurchaseService {
	if log == nil {
		log = slog.Default()
	}
	return &PurchaseService{
		log:     log,
		users:   users,
		records: records,
		metrics: collector,
		now:     time.Now,
	}
}

// Submit records a purchase request. Credits, package and expiry stay as they are until approval.
func (s *PurchaseService) Submit(ctx context.Context, userID string, pkg models.PackageCode) (*models.User, error) {
	if !pkg.Purchasable() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPackage, pkg)
	}
	user, err := updateUser(ctx, s.users, userID, func(u *models.User) error {
		if u.PaymentPending {
			return ErrAlreadyPending
		}
		requested := pkg
		u.PaymentPending = true
		u.RequestedPackage = &requested
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, userID, pkg, models.PurchaseRequested)
	s.log.Info("purchase requested", "user_id", userID, "package", pkg)
	return user, nil
}

// Approve grants the requested package: credits are set, not added, and the
// expiry restarts from now.
func (s *PurchaseService) Approve(ctx context.Context, userID string) (*models.User, error) {
	var granted models.PackageCode
	user, err := updateUser(ctx, s.users, userID, func(u *models.User) error {
		if !u.PaymentPending || u.RequestedPackage == nil {
			return ErrNotPending
		}
		def, err := catalog.DefinitionOf(*u.RequestedPackage)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPackage, err)
		}
		expiry, err := catalog.ExpiryFor(def.Code, s.now().UTC())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPackage, err)
		}
		granted = def.Code
		u.Package = def.Code
		u.Credits = def.Credits
		u.ExpiresAt = &expiry
		u.PaymentPending = false
		u.RequestedPackage = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, userID, granted, models.PurchaseApproved)
	s.log.Info("purchase approved", "user_id", userID, "package", granted, "credits", user.Credits)
	return user, nil
}

func (s *PurchaseService) History(ctx context.Context, userID string) ([]models.PurchaseRecord, error) {
	if s.records == nil {
		return nil, nil
	}
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return records, nil
}

func (s *PurchaseService) record(ctx context.Context, userID string, pkg models.PackageCode, event models.PurchaseEvent) {
	s.metrics.RecordPurchase(string(event))
	if s.records == nil {
		return
	}
	rec := &models.PurchaseRecord{UserID: userID, Package: pkg, Event: event, CreatedAt: s.now().UTC()}
	if err := s.records.Append(ctx, rec); err != nil {
		s.log.Error("failed to record purchase event", "user_id", userID, "event", event, "err", err)
	}
}
