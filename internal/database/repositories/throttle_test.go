package repositories_test

import (
	"context"
	"testing"
	"time"

	"geowarden/internal/database/models"
	"geowarden/internal/database/repositories"
	"geowarden/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newThrottle(userID int64, severity int, started time.Time, ttl time.Duration) *models.Throttle {
	throttle := &models.Throttle{
		UserID:    userID,
		Severity:  severity,
		Reason:    "geo_spoof",
		StartedAt: started,
	}
	if ttl > 0 {
		expires := started.Add(ttl)
		throttle.ExpiresAt = &expires
	}
	return throttle
}

func TestThrottleRepository_CreateDerivesVisibility(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	repo := repositories.NewThrottleRepository(db)
	ctx := context.Background()

	throttle := newThrottle(1, 3, baseTime, 72*time.Hour)
	require.NoError(t, repo.Create(ctx, throttle))

	found, err := repo.FindByID(ctx, throttle.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.30, found.VisibilityReduction, 1e-9)
	require.NotNil(t, found.ExpiresAt)
	assert.True(t, found.ExpiresAt.Equal(baseTime.Add(72*time.Hour)))
}

func TestThrottleRepository_ActiveSelection(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	repo := repositories.NewThrottleRepository(db)
	ctx := context.Background()

	expired := newThrottle(1, 5, baseTime.Add(-10*24*time.Hour), 24*time.Hour)
	mild := newThrottle(1, 2, baseTime.Add(-time.Hour), 72*time.Hour)
	severe := newThrottle(1, 4, baseTime.Add(-2*time.Hour), 0)
	for _, th := range []*models.Throttle{expired, mild, severe} {
		require.NoError(t, repo.Create(ctx, th))
	}

	active, err := repo.ActiveFor(ctx, 1, baseTime)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, severe.ID, active.ID)

	none, err := repo.ActiveFor(ctx, 2, baseTime)
	require.NoError(t, err)
	assert.Nil(t, none)

	page, err := repo.ListActive(ctx, repositories.NewPage(1, 20), baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, severe.ID, page.Data[0].ID)
	assert.Equal(t, mild.ID, page.Data[1].ID)

	stats, err := repo.StatsFor(ctx, 1, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalThrottles)
	assert.Equal(t, int64(2), stats.ActiveThrottles)
	assert.InDelta(t, 0.15, stats.CurrentVisibility, 1e-9)
	assert.True(t, stats.IsThrottled)

	clean, err := repo.StatsFor(ctx, 2, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1.0, clean.CurrentVisibility)
	assert.False(t, clean.IsThrottled)
}

func TestThrottleRepository_DeleteAndPrune(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	repo := repositories.NewThrottleRepository(db)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, repo.Create(ctx, newThrottle(int64(i), 1, baseTime.Add(-48*time.Hour), time.Hour)))
	}
	keep := newThrottle(10, 3, baseTime, 72*time.Hour)
	forever := newThrottle(11, 3, baseTime.Add(-365*24*time.Hour), 0)
	require.NoError(t, repo.Create(ctx, keep))
	require.NoError(t, repo.Create(ctx, forever))

	t.Run("prune in batches", func(t *testing.T) {
		deleted, err := repo.PruneExpired(ctx, baseTime, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(7), deleted)

		_, err = repo.FindByID(ctx, keep.ID)
		assert.NoError(t, err)
		_, err = repo.FindByID(ctx, forever.ID)
		assert.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, keep.ID))
		_, err := repo.FindByID(ctx, keep.ID)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, keep.ID), repositories.ErrNotFound)
	})
}
