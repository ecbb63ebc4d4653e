package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/productgenius/internal/models"
)

func TestPurchaseRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPurchaseRepository(newTestDB(t))

	first := &models.PurchaseRecord{UserID: "u1", Package: models.Package3M, Event: models.PurchaseRequested}
	require.NoError(t, repo.Append(ctx, first))
	require.NotZero(t, first.ID)
	require.NoError(t, repo.Append(ctx, &models.PurchaseRecord{UserID: "u1", Package: models.Package3M, Event: models.PurchaseApproved}))
	require.NoError(t, repo.Append(ctx, &models.PurchaseRecord{UserID: "u2", Package: models.Package1M, Event: models.PurchaseRequested}))

	records, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.PurchaseApproved, records[0].Event)
	assert.Equal(t, models.PurchaseRequested, records[1].Event)
	assert.Equal(t, models.Package3M, records[1].Package)
}

func TestMemoryPurchaseLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryPurchaseLog()
	require.NoError(t, log.Append(ctx, &models.PurchaseRecord{UserID: "u1", Package: models.Package1M, Event: models.PurchaseRequested}))
	require.NoError(t, log.Append(ctx, &models.PurchaseRecord{UserID: "u1", Package: models.Package1M, Event: models.PurchaseApproved}))

	records, err := log.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.PurchaseApproved, records[0].Event)
}

func TestGenerationLogs(t *testing.T) {
	ctx := context.Background()
	entry := models.GenerationLog{
		UserID:       "u1",
		ResultID:     "r1",
		BusinessType: models.BusinessJewelry,
		SceneStyle:   models.StyleLuxury,
		Quality:      models.Quality2K,
		Prompt:       "Jewelry in Luxury style",
	}

	for name, logger := range map[string]interface {
		Log(context.Context, models.GenerationLog) error
		CountForUser(context.Context, string) (int, error)
	}{
		"sql":    NewGenerationRepository(newTestDB(t)),
		"memory": NewMemoryGenerationLog(),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, logger.Log(ctx, entry))
			require.NoError(t, logger.Log(ctx, entry))

			count, err := logger.CountForUser(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 2, count)

			count, err = logger.CountForUser(ctx, "u2")
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}
