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
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"geowarden/internal/database/models"
	"geowarden/internal/database/repositories"
	"geowarden/internal/metrics"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

const maxReviewAttempts = 3

var errStaleVersion = errors.New("stale detection version")

// ThrottleDefaults fill in whatever a confirm request leaves out.
type ThrottleDefaults struct {
	Severity int
	Duration time.Duration
	Reason   string
}

func DefaultThrottleDefaults() ThrottleDefaults {
	return ThrottleDefaults{
		Severity: 3,
		Duration: 72 * time.Hour,
		Reason:   "geo_spoof",
	}
}

// ReviewRequest is one moderator decision on a detection.
type ReviewRequest struct {
	DetectionID   uint
	Action        Action
	Reason        string
	ModeratorID   int64
	ApplyThrottle bool
	// Zero values fall back to ThrottleDefaults
	ThrottleSeverity      int
	ThrottleDurationHours int
}

// ReviewResult reports the detection after the decision.
type ReviewResult struct {
	Detection *models.GeoSpoofDetection `json:"detection"`
	State     State                     `json:"state"`
	Throttle  *models.Throttle          `json:"throttle,omitempty"`
	// False when the request repeated a decision already on record
	Changed bool `json:"changed"`
}

// DetectionDetail is a detection with the context a moderator needs to judge it.
type DetectionDetail struct {
	Detection     *models.GeoSpoofDetection    `json:"detection"`
	State         State                        `json:"state"`
	UserStats     *repositories.DetectionStats `json:"user_stats"`
	ThrottleStats *repositories.ThrottleStats  `json:"throttle_stats"`
	History       []models.GeoSpoofDetection   `json:"history"`
}

// Workflow drives moderator review of detections and the throttles it produces.
type Workflow struct {
	db            *gorm.DB
	detections    repositories.DetectionRepository
	throttles     repositories.ThrottleRepository
	actions       repositories.ModerationActionRepository
	defaults      ThrottleDefaults
	highRiskScore int
	now           func() time.Time
	logger        *pterm.Logger
}

type Option func(*Workflow)

func WithThrottleDefaults(defaults ThrottleDefaults) Option {
	return func(w *Workflow) { w.defaults = defaults }
}

func WithHighRiskScore(score int) Option {
	return func(w *Workflow) { w.highRiskScore = score }
}

func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

func NewWorkflow(db *gorm.DB, logger *pterm.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		db:            db,
		detections:    repositories.NewDetectionRepository(db),
		throttles:     repositories.NewThrottleRepository(db),
		actions:       repositories.NewModerationActionRepository(db),
		defaults:      DefaultThrottleDefaults(),
		highRiskScore: 70,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Review applies a confirm or dismiss decision. Confirm with ApplyThrottle also
// creates a throttle for the detection's user, once per detection. The decision,
// the throttle and the audit row commit together or not at all.
func (w *Workflow) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	if err := w.validate(req); err != nil {
		metrics.ReviewsTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, err
	}

	for attempt := 1; attempt <= maxReviewAttempts; attempt++ {
		result, err := w.reviewOnce(ctx, req)
		if errors.Is(err, errStaleVersion) {
			metrics.ReviewRetries.Inc()
			w.logger.Debug("Detection changed during review, retrying",
				w.logger.Args("detection_id", req.DetectionID, "attempt", attempt))
			continue
		}

		var stateErr *InvalidStateError
		switch {
		case errors.As(err, &stateErr):
			metrics.ReviewsTotal.WithLabelValues(string(req.Action), "invalid").Inc()
			return nil, err
		case err != nil:
			return nil, err
		case !result.Changed:
			metrics.ReviewsTotal.WithLabelValues(string(req.Action), "noop").Inc()
			return result, nil
		}

		metrics.ReviewsTotal.WithLabelValues(string(req.Action), "applied").Inc()
		if result.Throttle != nil {
			metrics.ThrottlesCreated.WithLabelValues(strconv.Itoa(result.Throttle.Severity)).Inc()
		}
		w.logger.Info("Detection reviewed",
			w.logger.Args(
				"detection_id", req.DetectionID,
				"action", req.Action,
				"state", result.State,
				"moderator_id", req.ModeratorID,
				"throttled", result.Throttle != nil,
			))
		return result, nil
	}

	metrics.ReviewsTotal.WithLabelValues(string(req.Action), "conflict").Inc()
	return nil, ErrConcurrentReview
}

func (w *Workflow) validate(req ReviewRequest) error {
	if _, ok := ParseAction(string(req.Action)); !ok {
		return ErrUnknownAction
	}
	if req.ModeratorID <= 0 {
		return ErrInvalidModerator
	}
	if req.ThrottleSeverity != 0 && (req.ThrottleSeverity < 1 || req.ThrottleSeverity > 5) {
		return ErrInvalidSeverity
	}
	if req.ThrottleDurationHours < 0 {
		return ErrInvalidDuration
	}
	return nil
}

func (w *Workflow) reviewOnce(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	var result *ReviewResult

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		detections := repositories.NewDetectionRepository(tx)

		detection, err := detections.FindByID(ctx, req.DetectionID)
		if err != nil {
			return err
		}

		current := StateOf(detection)
		next, ok := Next(current, req.Action)
		if !ok {
			return &InvalidStateError{DetectionID: detection.ID, Current: current, Action: req.Action}
		}

		attachThrottle := req.Action == ActionConfirm && req.ApplyThrottle && !detection.ThrottleApplied
		now := w.now()
		if next == current && !attachThrottle {
			if req.Reason == "" || req.Reason == detection.ReviewReason {
				result = &ReviewResult{Detection: detection, State: current}
				return nil
			}
			// Repeat decisions only refresh the reason; the outcome and audit trail stay as they were
			if err := w.refreshReason(ctx, detections, detection, req, now); err != nil {
				return err
			}
			result = &ReviewResult{Detection: detection, State: current}
			return nil
		}

		reason := req.Reason
		if reason == "" {
			reason = detection.ReviewReason
		}

		applied, err := detections.ApplyReview(ctx, repositories.ReviewUpdate{
			ID:              detection.ID,
			ExpectedVersion: detection.Version,
			State:           string(next),
			Confirmed:       next == StateConfirmed,
			Reason:          reason,
			ReviewedBy:      req.ModeratorID,
			ReviewedAt:      now,
			ThrottleApplied: detection.ThrottleApplied || attachThrottle,
		})
		if err != nil {
			return err
		}
		if !applied {
			return errStaleVersion
		}

		var throttle *models.Throttle
		if attachThrottle {
			throttle = w.newThrottle(detection.UserID, req, now)
			if err := repositories.NewThrottleRepository(tx).Create(ctx, throttle); err != nil {
				return err
			}
		}

		action := &models.ModerationAction{
			ModeratorID:  req.ModeratorID,
			TargetUserID: detection.UserID,
			ActionType:   models.ActionGeoSpoofConfirm,
			Reason:       req.Reason,
			Metadata: models.JSONMap{
				"detection_id":     detection.ID,
				"suspicion_score":  detection.SuspicionScore,
				"throttle_applied": attachThrottle,
			},
		}
		if next == StateDismissed {
			action.ActionType = models.ActionGeoSpoofDismiss
		}
		if throttle != nil {
			action.Metadata["throttle_id"] = throttle.ID
			action.Metadata["throttle_severity"] = throttle.Severity
		}
		if err := repositories.NewModerationActionRepository(tx).Create(ctx, action); err != nil {
			return err
		}

		detection.ReviewState = string(next)
		detection.IsConfirmedSpoof = next == StateConfirmed
		detection.ReviewReason = reason
		detection.ReviewedBy = &req.ModeratorID
		detection.ReviewedAt = &now
		detection.ThrottleApplied = detection.ThrottleApplied || attachThrottle
		detection.Version++

		result = &ReviewResult{Detection: detection, State: next, Throttle: throttle, Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (w *Workflow) refreshReason(ctx context.Context, detections repositories.DetectionRepository, detection *models.GeoSpoofDetection, req ReviewRequest, now time.Time) error {
	applied, err := detections.ApplyReview(ctx, repositories.ReviewUpdate{
		ID:              detection.ID,
		ExpectedVersion: detection.Version,
		State:           detection.ReviewState,
		Confirmed:       detection.IsConfirmedSpoof,
		Reason:          req.Reason,
		ReviewedBy:      req.ModeratorID,
		ReviewedAt:      now,
		ThrottleApplied: detection.ThrottleApplied,
	})
	if err != nil {
		return err
	}
	if !applied {
		return errStaleVersion
	}

	detection.ReviewReason = req.Reason
	detection.ReviewedBy = &req.ModeratorID
	detection.ReviewedAt = &now
	detection.Version++
	return nil
}

func (w *Workflow) newThrottle(userID int64, req ReviewRequest, now time.Time) *models.Throttle {
	severity := req.ThrottleSeverity
	if severity == 0 {
		severity = w.defaults.Severity
	}
	duration := w.defaults.Duration
	if req.ThrottleDurationHours > 0 {
		duration = time.Duration(req.ThrottleDurationHours) * time.Hour
	}
	expiresAt := now.Add(duration)
	createdBy := req.ModeratorID

	return &models.Throttle{
		UserID:              userID,
		Severity:            severity,
		Reason:              w.defaults.Reason,
		VisibilityReduction: models.VisibilityForSeverity(severity),
		Notes:               "Geo-spoofing confirmed: " + req.Reason,
		CreatedBy:           &createdBy,
		StartedAt:           now,
		ExpiresAt:           &expiresAt,
	}
}

// RemoveThrottle deletes a throttle and records who lifted it. Detections are left untouched.
func (w *Workflow) RemoveThrottle(ctx context.Context, throttleID uint, moderatorID int64, reason string) error {
	if moderatorID <= 0 {
		return ErrInvalidModerator
	}

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		throttles := repositories.NewThrottleRepository(tx)

		throttle, err := throttles.FindByID(ctx, throttleID)
		if err != nil {
			return err
		}
		if err := throttles.Delete(ctx, throttle.ID); err != nil {
			return err
		}

		return repositories.NewModerationActionRepository(tx).Create(ctx, &models.ModerationAction{
			ModeratorID:  moderatorID,
			TargetUserID: throttle.UserID,
			ActionType:   models.ActionThrottleRemoved,
			Reason:       reason,
			Metadata: models.JSONMap{
				"throttle_id":     throttle.ID,
				"severity":        throttle.Severity,
				"throttle_reason": throttle.Reason,
			},
		})
	})
	if err != nil {
		return fmt.Errorf("remove throttle %d: %w", throttleID, err)
	}

	metrics.ThrottlesRemoved.Inc()
	w.logger.Info("Throttle removed",
		w.logger.Args("throttle_id", throttleID, "moderator_id", moderatorID))
	return nil
}

// ListPending returns the review queue, newest first.
func (w *Workflow) ListPending(ctx context.Context, page repositories.Page, minScore int) (repositories.PageResult[models.GeoSpoofDetection], error) {
	return w.detections.ListPending(ctx, page, minScore)
}

// Detection returns one detection with the user's recent history and stats.
func (w *Workflow) Detection(ctx context.Context, id uint) (*DetectionDetail, error) {
	detection, err := w.detections.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := w.detections.ListForUser(ctx, detection.UserID, 10)
	if err != nil {
		return nil, err
	}
	userStats, err := w.StatsFor(ctx, detection.UserID)
	if err != nil {
		return nil, err
	}
	throttleStats, err := w.ThrottleStatsFor(ctx, detection.UserID)
	if err != nil {
		return nil, err
	}

	return &DetectionDetail{
		Detection:     detection,
		State:         StateOf(detection),
		UserStats:     userStats,
		ThrottleStats: throttleStats,
		History:       history,
	}, nil
}

// ListThrottles returns throttles in force now, most severe first.
func (w *Workflow) ListThrottles(ctx context.Context, page repositories.Page) (repositories.PageResult[models.Throttle], error) {
	return w.throttles.ListActive(ctx, page, w.now())
}

func (w *Workflow) StatsFor(ctx context.Context, userID int64) (*repositories.DetectionStats, error) {
	return w.detections.StatsFor(ctx, userID, w.highRiskScore)
}

func (w *Workflow) ThrottleStatsFor(ctx context.Context, userID int64) (*repositories.ThrottleStats, error) {
	return w.throttles.StatsFor(ctx, userID, w.now())
}

// ListActions returns the audit trail, optionally for one user.
func (w *Workflow) ListActions(ctx context.Context, page repositories.Page, targetUserID int64) (repositories.PageResult[models.ModerationAction], error) {
	return w.actions.List(ctx, page, targetUserID)
}

// QueueOverview sizes the moderation backlog for status reporting.
type QueueOverview struct {
	PendingDetections int64 `json:"pending_detections"`
	ActiveThrottles   int64 `json:"active_throttles"`
	AuditEntries      int64 `json:"audit_entries"`
}

func (w *Workflow) Overview(ctx context.Context) (*QueueOverview, error) {
	firstRow := repositories.NewPage(1, 1)

	pending, err := w.detections.ListPending(ctx, firstRow, 0)
	if err != nil {
		return nil, err
	}
	throttles, err := w.throttles.ListActive(ctx, firstRow, w.now())
	if err != nil {
		return nil, err
	}
	actions, err := w.actions.List(ctx, firstRow, 0)
	if err != nil {
		return nil, err
	}

	return &QueueOverview{
		PendingDetections: pending.Total,
		ActiveThrottles:   throttles.Total,
		AuditEntries:      actions.Total,
	}, nil
}
