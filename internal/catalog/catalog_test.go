package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/productgenius/internal/models"
)

func TestDefinitionTable(t *testing.T) {
	tests := []struct {
		code     models.PackageCode
		credits  int
		validity time.Duration
	}{
		{models.PackageFree, 1, 7 * 24 * time.Hour},
		{models.Package1M, 25, 30 * 24 * time.Hour},
		{models.Package3M, 80, 90 * 24 * time.Hour},
		{models.Package6M, 150, 180 * 24 * time.Hour},
		{models.Package12M, 350, 365 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			def, err := DefinitionOf(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.credits, def.Credits)
			assert.Equal(t, tt.validity, def.Validity)
		})
	}
}

func TestDefinitionOfUnknown(t *testing.T) {
	_, err := DefinitionOf("p2m")
	require.Error(t, err)
}

func TestExpiryFor(t *testing.T) {
	now := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	got, err := ExpiryFor(models.Package3M, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(90*24*time.Hour), got)

	got, err = ExpiryFor(models.PackageFree, now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 7), got)
}

func TestPurchasableExcludesFree(t *testing.T) {
	defs := Purchasable()
	require.Len(t, defs, 4)
	for _, def := range defs {
		assert.NotEqual(t, models.PackageFree, def.Code)
	}
}
