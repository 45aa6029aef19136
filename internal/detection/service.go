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
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geowarden/internal/database/models"
	"geowarden/internal/geo"
	"geowarden/internal/intelligence"
	"geowarden/internal/metrics"

	"github.com/pterm/pterm"
)

// Claim is a self-reported location update.
type Claim struct {
	UserID    int64
	Latitude  float64
	Longitude float64
	IPAddress string
	// Zero means "now" on the service clock
	ObservedAt time.Time
}

// Store is the slice of the detection repository the service needs.
type Store interface {
	Create(ctx context.Context, detection *models.GeoSpoofDetection) error
	MostRecentFor(ctx context.Context, userID int64) (*models.GeoSpoofDetection, error)
	CountSince(ctx context.Context, userID int64, since time.Time) (int64, error)
}

// UserDirectory confirms that a claimant exists. Account storage lives elsewhere.
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// AllowAllUsers accepts every positive user id.
type AllowAllUsers struct{}

func (AllowAllUsers) Exists(_ context.Context, userID int64) (bool, error) {
	return userID > 0, nil
}

// Service runs the detection pipeline: lookup, history, evaluation, scoring and persistence.
type Service struct {
	store  Store
	intel  intelligence.Provider
	users  UserDirectory
	cfg    Config
	now    func() time.Time
	logger *pterm.Logger
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg.clone() }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithUserDirectory(users UserDirectory) Option {
	return func(s *Service) { s.users = users }
}

func NewService(store Store, intel intelligence.Provider, logger *pterm.Logger, opts ...Option) *Service {
	if intel == nil {
		intel = intelligence.Noop{}
	}
	s := &Service{
		store:  store,
		intel:  intel,
		users:  AllowAllUsers{},
		cfg:    DefaultConfig(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns a copy of the active thresholds.
func (s *Service) Config() Config {
	return s.cfg.clone()
}

// Evaluate scores a claim and records a detection when the score clears the threshold.
// It returns nil, nil for clean claims. Only a failed insert surfaces as an error;
// intelligence and history failures degrade to "unknown" and "no history".
func (s *Service) Evaluate(ctx context.Context, claim Claim) (*models.GeoSpoofDetection, error) {
	start := time.Now()
	defer func() {
		metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.validate(ctx, claim); err != nil {
		return nil, err
	}

	now := claim.ObservedAt
	if now.IsZero() {
		now = s.now()
	}
	claimed := geo.Point{Latitude: claim.Latitude, Longitude: claim.Longitude}

	input := Input{
		Claimed:     claimed,
		Intel:       s.lookup(ctx, claim.IPAddress),
		Prior:       s.prior(ctx, claim.UserID),
		RecentCount: s.recentCount(ctx, claim.UserID, now),
		Now:         now,
	}

	signals := Evaluate(input, s.cfg)
	score := Score(signals.RawScore, s.cfg)

	metrics.SuspicionScore.Observe(float64(score))
	for _, flag := range signals.Flags {
		metrics.DetectionFlags.WithLabelValues(string(flag)).Inc()
	}

	if !ShouldPersist(score, s.cfg) {
		metrics.EvaluationsTotal.WithLabelValues("clean").Inc()
		s.logger.Trace("Location claim within tolerance",
			s.logger.Args("user_id", claim.UserID, "score", score))
		return nil, nil
	}

	flags := make(models.StringList, len(signals.Flags))
	for i, flag := range signals.Flags {
		flags[i] = string(flag)
	}

	detection := &models.GeoSpoofDetection{
		UserID:         claim.UserID,
		IPAddress:      claim.IPAddress,
		Latitude:       claim.Latitude,
		Longitude:      claim.Longitude,
		IPLatitude:     signals.IPPosition.Latitude,
		IPLongitude:    signals.IPPosition.Longitude,
		DistanceKm:     signals.DistanceKm,
		VelocityKmh:    signals.VelocityKmh,
		SuspicionScore: score,
		DetectionFlags: flags,
		ReviewState:    models.ReviewPending,
		Version:        1,
		DetectedAt:     now,
	}

	if err := s.store.Create(ctx, detection); err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		s.logger.WithCaller().Error("Failed to store geo-spoof detection",
			s.logger.Args("user_id", claim.UserID, "score", score, "error", err))
		return nil, fmt.Errorf("store detection: %w", err)
	}

	metrics.EvaluationsTotal.WithLabelValues("detected").Inc()
	s.logger.Info("Geo-spoofing suspected",
		s.logger.Args(
			"user_id", claim.UserID,
			"detection_id", detection.ID,
			"score", score,
			"flags", flags,
		))
	return detection, nil
}

func (s *Service) validate(ctx context.Context, claim Claim) error {
	if claim.UserID <= 0 {
		return &ValidationError{Field: "user_id", Message: "must be positive"}
	}
	if !geo.ValidCoordinates(claim.Latitude, claim.Longitude) {
		return &ValidationError{Field: "coordinates", Message: "latitude must be within [-90,90] and longitude within [-180,180]"}
	}

	exists, err := s.users.Exists(ctx, claim.UserID)
	if err != nil {
		return fmt.Errorf("user lookup: %w", err)
	}
	if !exists {
		return ErrUnknownUser
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, ip string) *intelligence.Result {
	if ip == "" {
		return nil
	}

	timeout := s.cfg.IntelTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.intel.Analyze(lookupCtx, ip)
	if err != nil {
		level := s.logger.Warn
		if errors.Is(err, intelligence.ErrUnavailable) {
			level = s.logger.Debug
		}
		level("IP intelligence lookup failed, treating address as unknown",
			s.logger.Args("ip", ip, "error", err))
		return nil
	}
	return result
}

func (s *Service) prior(ctx context.Context, userID int64) *Sighting {
	prior, err := s.store.MostRecentFor(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load prior detection, evaluating without history",
			s.logger.Args("user_id", userID, "error", err))
		return nil
	}
	if prior == nil {
		return nil
	}
	return &Sighting{
		Position:   geo.Point{Latitude: prior.Latitude, Longitude: prior.Longitude},
		DetectedAt: prior.DetectedAt,
	}
}

func (s *Service) recentCount(ctx context.Context, userID int64, now time.Time) int64 {
	count, err := s.store.CountSince(ctx, userID, now.Add(-s.cfg.FrequentChangeWindow))
	if err != nil {
		s.logger.Warn("Failed to count recent detections, assuming none",
			s.logger.Args("user_id", userID, "error", err))
		return 0
	}
	return count
}
