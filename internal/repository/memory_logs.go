package repository

import (
	"context"
	"sync"
	"time"

	"github.com/digkill/productgenius/internal/models"
)

// MemoryPurchaseLog is the in-process counterpart of PurchaseRepository.
type MemoryPurchaseLog struct {
	mu      sync.Mutex
	nextID  int64
	records []models.PurchaseRecord
}

func NewMemoryPurchaseLog() *MemoryPurchaseLog {
	return &MemoryPurchaseLog{}
}

func (l *MemoryPurchaseLog) Append(_ context.Context, record *models.PurchaseRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	record.ID = l.nextID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	l.records = append(l.records, *record)
	return nil
}

func (l *MemoryPurchaseLog) ListByUser(_ context.Context, userID string) ([]models.PurchaseRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.PurchaseRecord
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].UserID == userID {
			out = append(out, l.records[i])
		}
	}
	return out, nil
}

// MemoryGenerationLog is the in-process counterpart of GenerationRepository.
type MemoryGenerationLog struct {
	mu      sync.Mutex
	entries []models.GenerationLog
}

func NewMemoryGenerationLog() *MemoryGenerationLog {
	return &MemoryGenerationLog{}
}

func (l *MemoryGenerationLog) Log(_ context.Context, entry models.GenerationLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.ID = int64(len(l.entries) + 1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	l.entries = append(l.entries, entry)
	return nil
}

func (l *MemoryGenerationLog) CountForUser(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, e := range l.entries {
		if e.UserID == userID {
			count++
		}
	}
	return count, nil
}
