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

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newDetection(userID int64, score int, detectedAt time.Time) *models.GeoSpoofDetection {
	return &models.GeoSpoofDetection{
		UserID:         userID,
		IPAddress:      "203.0.113.7",
		Latitude:       40.7128,
		Longitude:      -74.0060,
		IPLatitude:     40.7128,
		IPLongitude:    -74.0060,
		SuspicionScore: score,
		DetectionFlags: models.StringList{"vpn_or_proxy"},
		DetectedAt:     detectedAt,
	}
}

func TestDetectionRepository_CreateAndFind(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	repo := repositories.NewDetectionRepository(db)
	ctx := context.Background()

	velocity := 3936
	detection := newDetection(1, 80, baseTime)
	detection.VelocityKmh = &velocity
	detection.DetectionFlags = models.StringList{"impossible_velocity", "vpn_or_proxy"}
	require.NoError(t, repo.Create(ctx, detection))
	require.NotZero(t, detection.ID)

	found, err := repo.FindByID(ctx, detection.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPending, found.ReviewState)
	assert.Equal(t, 1, found.Version)
	assert.False(t, found.IsConfirmedSpoof)
	assert.Equal(t, models.StringList{"impossible_velocity", "vpn_or_proxy"}, found.DetectionFlags)
	require.NotNil(t, found.VelocityKmh)
	assert.Equal(t, 3936, *found.VelocityKmh)

	_, err = repo.FindByID(ctx, 9999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestDetectionRepository_MostRecentForUsesInsertionOrder(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	repo := repositories.NewDetectionRepository(db)
	ctx := context.Background()

	t.Run("no prior", func(t *testing.T) {
		prior, err := repo.MostRecentFor(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, prior)
	})

	t.Run("latest id wins over latest timestamp", func(t *testing.T) {
		first := newDetection(1, 30, baseTime.Add(time.Hour))
		second := newDetection(1, 40, baseTime)
		other := newDetection(2, 50, baseTime.Add(2*time.Hour))
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))
		require.NoError(t, repo.Create(ctx, other))

		prior, err := repo.MostRecentFor(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, prior)
		assert.Equal(t, second.ID, prior.ID)
	})
}

func TestDetectionRepository_CountSince(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	repo := repositories.NewDetectionRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newDetection(7, 30, baseTime.Add(-time.Duration(i)*48*time.Hour))))
	}

	count, err := repo.CountSince(ctx, 7, baseTime.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	count, err = repo.CountSince(ctx, 8, baseTime.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDetectionRepository_StatsFor(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	repo := repositories.NewDetectionRepository(db)
	ctx := context.Background()

	t.Run("empty history", func(t *testing.T) {
		stats, err := repo.StatsFor(ctx, 3, 70)
		require.NoError(t, err)
		assert.Equal(t, repositories.DetectionStats{}, *stats)
	})

	t.Run("mixed history", func(t *testing.T) {
		low := newDetection(3, 30, baseTime)
		high := newDetection(3, 90, baseTime)
		boundary := newDetection(3, 70, baseTime)
		for _, d := range []*models.GeoSpoofDetection{low, high, boundary} {
			require.NoError(t, repo.Create(ctx, d))
		}
		applied, err := repo.ApplyReview(ctx, repositories.ReviewUpdate{
			ID: low.ID, ExpectedVersion: 1, State: models.ReviewConfirmed, Confirmed: true,
			Reason: "confirmed", ReviewedBy: 99, ReviewedAt: baseTime,
		})
		require.NoError(t, err)
		require.True(t, applied)

		stats, err := repo.StatsFor(ctx, 3, 70)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalDetections)
		assert.Equal(t, int64(2), stats.HighRiskDetections)
		assert.Equal(t, int64(1), stats.ConfirmedSpoofs)
		assert.True(t, stats.IsHighRiskUser)
	})
}

func TestDetectionRepository_ApplyReviewVersionGuard(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	repo := repositories.NewDetectionRepository(db)
	ctx := context.Background()

	detection := newDetection(1, 60, baseTime)
	require.NoError(t, repo.Create(ctx, detection))

	update := repositories.ReviewUpdate{
		ID: detection.ID, ExpectedVersion: 1, State: models.ReviewDismissed,
		Reason: "false positive", ReviewedBy: 5, ReviewedAt: baseTime,
	}
	applied, err := repo.ApplyReview(ctx, update)
	require.NoError(t, err)
	assert.True(t, applied)

	// Same expected version again: the row has moved on
	applied, err = repo.ApplyReview(ctx, update)
	require.NoError(t, err)
	assert.False(t, applied)

	found, err := repo.FindByID(ctx, detection.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.Version)
	assert.Equal(t, models.ReviewDismissed, found.ReviewState)
	require.NotNil(t, found.ReviewedBy)
	assert.Equal(t, int64(5), *found.ReviewedBy)
}

func TestDetectionRepository_ListPending(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	repo := repositories.NewDetectionRepository(db)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 25; i++ {
		d := newDetection(int64(i%3+1), 25+i*3, baseTime)
		require.NoError(t, repo.Create(ctx, d))
		ids = append(ids, d.ID)
	}
	_, err := repo.ApplyReview(ctx, repositories.ReviewUpdate{
		ID: ids[24], ExpectedVersion: 1, State: models.ReviewDismissed, ReviewedBy: 1, ReviewedAt: baseTime,
	})
	require.NoError(t, err)

	page, err := repo.ListPending(ctx, repositories.NewPage(1, 10), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(24), page.Total)
	assert.Equal(t, 3, page.LastPage)
	require.Len(t, page.Data, 10)
	assert.Equal(t, ids[23], page.Data[0].ID)

	last, err := repo.ListPending(ctx, repositories.NewPage(3, 10), 0)
	require.NoError(t, err)
	assert.Len(t, last.Data, 4)

	filtered, err := repo.ListPending(ctx, repositories.NewPage(1, 100), 70)
	require.NoError(t, err)
	for _, d := range filtered.Data {
		assert.GreaterOrEqual(t, d.SuspicionScore, 70)
	}
	assert.Equal(t, int64(9), filtered.Total)
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		number, size         int
		expectedN, expectedS int
	}{
		{0, 0, 1, repositories.DefaultPerPage},
		{2, 500, 2, repositories.MaxPerPage},
		{3, 15, 3, 15},
	}
	for _, tt := range tests {
		p := repositories.NewPage(tt.number, tt.size)
		assert.Equal(t, tt.expectedN, p.Number)
		assert.Equal(t, tt.expectedS, p.Size)
	}
}
