// MIT License
//
// Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
package repositories

import (
	"context"
	"errors"
	"time"

	"geowarden/internal/database/models"

	"gorm.io/gorm"
)

// ThrottleStats summarises a user's throttle history at a point in time.
type ThrottleStats struct {
	TotalThrottles    int64   `json:"total_throttles"`
	ActiveThrottles   int64   `json:"active_throttles"`
	CurrentVisibility float64 `json:"current_visibility"`
	IsThrottled       bool    `json:"is_throttled"`
}

type ThrottleRepository interface {
	Create(ctx context.Context, throttle *models.Throttle) error
	FindByID(ctx context.Context, id uint) (*models.Throttle, error)
	ActiveFor(ctx context.Context, userID int64, now time.Time) (*models.Throttle, error)
	ListActive(ctx context.Context, page Page, now time.Time) (PageResult[models.Throttle], error)
	Delete(ctx context.Context, id uint) error
	PruneExpired(ctx context.Context, now time.Time, batchSize int) (int64, error)
	StatsFor(ctx context.Context, userID int64, now time.Time) (*ThrottleStats, error)
}

type throttleRepo struct {
	db *gorm.DB
}

func NewThrottleRepository(db *gorm.DB) ThrottleRepository {
	return &throttleRepo{db: db}
}

func activeAt(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where("started_at <= ? AND (expires_at IS NULL OR expires_at > ?)", now, now)
}

func (r *throttleRepo) Create(ctx context.Context, throttle *models.Throttle) error {
	if throttle.VisibilityReduction == 0 {
		throttle.VisibilityReduction = models.VisibilityForSeverity(throttle.Severity)
	}
	return wrapErr("create throttle", r.db.WithContext(ctx).Create(throttle).Error)
}

func (r *throttleRepo) FindByID(ctx context.Context, id uint) (*models.Throttle, error) {
	var throttle models.Throttle
	if err := r.db.WithContext(ctx).First(&throttle, id).Error; err != nil {
		return nil, wrapErr("find throttle", err)
	}
	return &throttle, nil
}

// ActiveFor returns the user's most severe throttle in force at now, or nil.
func (r *throttleRepo) ActiveFor(ctx context.Context, userID int64, now time.Time) (*models.Throttle, error) {
	var throttle models.Throttle
	err := activeAt(r.db.WithContext(ctx).Where("user_id = ?", userID), now).
		Order("severity DESC").
		Order("started_at DESC").
		Take(&throttle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find active throttle", err)
	}
	return &throttle, nil
}

func (r *throttleRepo) ListActive(ctx context.Context, page Page, now time.Time) (PageResult[models.Throttle], error) {
	query := activeAt(r.db.WithContext(ctx).Model(&models.Throttle{}), now).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return PageResult[models.Throttle]{}, wrapErr("count active throttles", err)
	}

	var throttles []models.Throttle
	err := query.
		Order("severity DESC").
		Order("started_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&throttles).Error
	if err != nil {
		return PageResult[models.Throttle]{}, wrapErr("list active throttles", err)
	}

	return newPageResult(throttles, page, total), nil
}

func (r *throttleRepo) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Throttle{}, id)
	if result.Error != nil {
		return wrapErr("delete throttle", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneExpired deletes throttles whose expiry has passed, in batches to keep locks short.
// Indefinite throttles are never pruned.
func (r *throttleRepo) PruneExpired(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var totalDeleted int64
	for {
		result := r.db.WithContext(ctx).Exec(`
			DELETE FROM throttles
			WHERE id IN (
				SELECT id FROM throttles
				WHERE expires_at IS NOT NULL AND expires_at <= ?
				LIMIT ?
			)
		`, now, batchSize)
		if result.Error != nil {
			return totalDeleted, wrapErr("prune throttles", result.Error)
		}

		totalDeleted += result.RowsAffected
		if result.RowsAffected < int64(batchSize) {
			return totalDeleted, nil
		}
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}
	}
}

func (r *throttleRepo) StatsFor(ctx context.Context, userID int64, now time.Time) (*ThrottleStats, error) {
	stats := &ThrottleStats{CurrentVisibility: 1.0}

	err := r.db.WithContext(ctx).
		Model(&models.Throttle{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalThrottles).Error
	if err != nil {
		return nil, wrapErr("count throttles", err)
	}

	err = activeAt(r.db.WithContext(ctx).Model(&models.Throttle{}).Where("user_id = ?", userID), now).
		Count(&stats.ActiveThrottles).Error
	if err != nil {
		return nil, wrapErr("count active throttles", err)
	}

	active, err := r.ActiveFor(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if active != nil {
		stats.CurrentVisibility = active.VisibilityReduction
		stats.IsThrottled = true
	}

	return stats, nil
}
