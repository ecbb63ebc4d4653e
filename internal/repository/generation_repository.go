package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/digkill/productgenius/internal/models"
)

// GenerationRepository records metadata of successful generations. Image bytes are never stored.
type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) Log(ctx context.Context, entry models.GenerationLog) error {
	const query = `
INSERT INTO generation_logs (user_id, result_id, business_type, scene_style, quality, prompt, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, query, entry.UserID, entry.ResultID, string(entry.BusinessType), string(entry.SceneStyle), string(entry.Quality), entry.Prompt, createdAt.UTC()); err != nil {
		return fmt.Errorf("insert generation log: %w", err)
	}
	return nil
}

func (r *GenerationRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM generation_logs WHERE user_id = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count generations: %w", err)
	}
	return count, nil
}
