package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/digkill/productgenius/internal/models"
)

// PurchaseRepository is an append-only audit trail of purchase request transitions.
// The entitlement record stays the source of truth for the pending flag.
type PurchaseRepository struct {
	db *sql.DB
}

func NewPurchaseRepository(db *sql.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) Append(ctx context.Context, record *models.PurchaseRecord) error {
	const query = `
INSERT INTO purchase_requests (user_id, package_code, event, created_at)
VALUES (?, ?, ?, ?)`
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC().Truncate(columnPrecision)
	res, err := r.db.ExecContext(ctx, query, record.UserID, string(record.Package), string(record.Event), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert purchase record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	record.ID = id
	return nil
}

func (r *PurchaseRepository) ListByUser(ctx context.Context, userID string) ([]models.PurchaseRecord, error) {
	const query = `
SELECT id, user_id, package_code, event, created_at
FROM purchase_requests WHERE user_id = ?
ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchase records: %w", err)
	}
	defer rows.Close()

	var records []models.PurchaseRecord
	for rows.Next() {
		var (
			rec   models.PurchaseRecord
			pkg   string
			event string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &pkg, &event, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase record: %w", err)
		}
		rec.Package = models.PackageCode(pkg)
		rec.Event = models.PurchaseEvent(event)
		records = append(records, rec)
	}
	return records, rows.Err()
}
