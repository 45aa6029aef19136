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

// DetectionStats summarises a user's detection history.
type DetectionStats struct {
	TotalDetections    int64 `json:"total_detections"`
	HighRiskDetections int64 `json:"high_risk_detections"`
	ConfirmedSpoofs    int64 `json:"confirmed_spoofs"`
	IsHighRiskUser     bool  `json:"is_high_risk_user"`
}

// ReviewUpdate is a version-guarded change of a detection's review columns.
type ReviewUpdate struct {
	ID              uint
	ExpectedVersion int
	State           string
	Confirmed       bool
	Reason          string
	ReviewedBy      int64
	ReviewedAt      time.Time
	ThrottleApplied bool
}

type DetectionRepository interface {
	Create(ctx context.Context, detection *models.GeoSpoofDetection) error
	FindByID(ctx context.Context, id uint) (*models.GeoSpoofDetection, error)
	MostRecentFor(ctx context.Context, userID int64) (*models.GeoSpoofDetection, error)
	CountSince(ctx context.Context, userID int64, since time.Time) (int64, error)
	StatsFor(ctx context.Context, userID int64, highRiskScore int) (*DetectionStats, error)
	ListPending(ctx context.Context, page Page, minScore int) (PageResult[models.GeoSpoofDetection], error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]models.GeoSpoofDetection, error)
	ApplyReview(ctx context.Context, update ReviewUpdate) (bool, error)
}

type detectionRepo struct {
	db *gorm.DB
}

func NewDetectionRepository(db *gorm.DB) DetectionRepository {
	return &detectionRepo{db: db}
}

func (r *detectionRepo) Create(ctx context.Context, detection *models.GeoSpoofDetection) error {
	if detection.ReviewState == "" {
		detection.ReviewState = models.ReviewPending
	}
	if detection.Version == 0 {
		detection.Version = 1
	}
	return wrapErr("create detection", r.db.WithContext(ctx).Create(detection).Error)
}

func (r *detectionRepo) FindByID(ctx context.Context, id uint) (*models.GeoSpoofDetection, error) {
	var detection models.GeoSpoofDetection
	if err := r.db.WithContext(ctx).First(&detection, id).Error; err != nil {
		return nil, wrapErr("find detection", err)
	}
	return &detection, nil
}

// MostRecentFor returns the user's latest detection by insertion order, or nil when there is none.
func (r *detectionRepo) MostRecentFor(ctx context.Context, userID int64) (*models.GeoSpoofDetection, error) {
	var detection models.GeoSpoofDetection
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(1).
		Take(&detection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find most recent detection", err)
	}
	return &detection, nil
}

func (r *detectionRepo) CountSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GeoSpoofDetection{}).
		Where("user_id = ? AND detected_at >= ?", userID, since).
		Count(&count).Error
	return count, wrapErr("count detections", err)
}

func (r *detectionRepo) StatsFor(ctx context.Context, userID int64, highRiskScore int) (*DetectionStats, error) {
	var row struct {
		Total     int64
		HighRisk  int64
		Confirmed int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.GeoSpoofDetection{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN suspicion_score >= ? THEN 1 ELSE 0 END), 0) AS high_risk,
			COALESCE(SUM(CASE WHEN is_confirmed_spoof THEN 1 ELSE 0 END), 0) AS confirmed`, highRiskScore).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, wrapErr("detection stats", err)
	}

	return &DetectionStats{
		TotalDetections:    row.Total,
		HighRiskDetections: row.HighRisk,
		ConfirmedSpoofs:    row.Confirmed,
		IsHighRiskUser:     row.HighRisk > 0,
	}, nil
}

// ListPending returns unreviewed detections, newest first.
func (r *detectionRepo) ListPending(ctx context.Context, page Page, minScore int) (PageResult[models.GeoSpoofDetection], error) {
	query := r.db.WithContext(ctx).
		Model(&models.GeoSpoofDetection{}).
		Where("review_state = ?", models.ReviewPending)
	if minScore > 0 {
		query = query.Where("suspicion_score >= ?", minScore)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return PageResult[models.GeoSpoofDetection]{}, wrapErr("count pending detections", err)
	}

	var detections []models.GeoSpoofDetection
	err := query.
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&detections).Error
	if err != nil {
		return PageResult[models.GeoSpoofDetection]{}, wrapErr("list pending detections", err)
	}

	return newPageResult(detections, page, total), nil
}

func (r *detectionRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]models.GeoSpoofDetection, error) {
	if limit <= 0 {
		limit = DefaultPerPage
	}
	var detections []models.GeoSpoofDetection
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&detections).Error
	return detections, wrapErr("list user detections", err)
}

// ApplyReview writes the review columns only if the row still carries ExpectedVersion.
// It reports false when another writer got there first.
func (r *detectionRepo) ApplyReview(ctx context.Context, update ReviewUpdate) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GeoSpoofDetection{}).
		Where("id = ? AND version = ?", update.ID, update.ExpectedVersion).
		Updates(map[string]interface{}{
			"review_state":       update.State,
			"is_confirmed_spoof": update.Confirmed,
			"review_reason":      update.Reason,
			"reviewed_by":        update.ReviewedBy,
			"reviewed_at":        update.ReviewedAt,
			"throttle_applied":   update.ThrottleApplied,
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, wrapErr("apply review", result.Error)
	}
	return result.RowsAffected == 1, nil
}
