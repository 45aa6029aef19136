package database

import (
	"context"
	"errors"
	"sync"
	"time"

	"geowarden/internal/database/models"
	"geowarden/internal/database/repositories"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// CleanupService periodically removes expired throttles and stale intelligence cache rows
type CleanupService struct {
	db               *gorm.DB
	throttles        repositories.ThrottleRepository
	logger           *pterm.Logger
	interval         time.Duration
	reputationMaxAge time.Duration
	now              func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	running bool
	stats   CleanupStats
}

// CleanupStats holds statistics about cleanup operations
type CleanupStats struct {
	LastRunTime          time.Time     `json:"last_run_time"`
	ThrottlesPruned      int64         `json:"throttles_pruned"`
	ReputationsPruned    int64         `json:"reputations_pruned"`
	TotalThrottlesPruned int64         `json:"total_throttles_pruned"`
	CleanupDuration      time.Duration `json:"cleanup_duration"`
	NextScheduledRun     time.Time     `json:"next_scheduled_run"`
}

// NewCleanupService creates a new cleanup service. A zero reputationMaxAge keeps cache rows forever.
func NewCleanupService(db *gorm.DB, logger *pterm.Logger, interval, reputationMaxAge time.Duration) *CleanupService {
	return &CleanupService{
		db:               db,
		throttles:        repositories.NewThrottleRepository(db),
		logger:           logger,
		interval:         interval,
		reputationMaxAge: reputationMaxAge,
		now:              func() time.Time { return time.Now().UTC() },
		stopChan:         make(chan struct{}),
	}
}

// Enabled reports whether scheduled pruning is configured
func (s *CleanupService) Enabled() bool {
	return s.interval > 0
}

// Start begins the cleanup loop
func (s *CleanupService) Start() {
	if s.interval <= 0 {
		s.logger.Info("Throttle pruning disabled (THROTTLE_PRUNE_INTERVAL=0), cleanup service not started")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stats.NextScheduledRun = s.now().Add(s.interval)
	s.mu.Unlock()

	s.logger.Info("Starting database cleanup service",
		s.logger.Args("interval", s.interval, "reputation_max_age", s.reputationMaxAge))

	s.wg.Add(1)
	go s.scheduledCleanupLoop()
}

// Stop stops the cleanup service and waits for an in-flight run to finish
func (s *CleanupService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping database cleanup service")
	close(s.stopChan)
	s.wg.Wait()
}

func (s *CleanupService) scheduledCleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if err := s.RunOnce(ctx); err != nil {
				s.logger.WithCaller().Error("Scheduled cleanup failed", s.logger.Args("error", err))
			}
			cancel()
		}
	}
}

// RunOnce prunes expired throttles and stale cache rows immediately
func (s *CleanupService) RunOnce(ctx context.Context) error {
	startTime := s.now()

	pruned, err := s.throttles.PruneExpired(ctx, startTime, 500)
	if err != nil {
		return err
	}

	var reputations int64
	if s.reputationMaxAge > 0 {
		result := s.db.WithContext(ctx).
			Where("last_seen < ?", startTime.Add(-s.reputationMaxAge)).
			Delete(&models.IPReputation{})
		if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		reputations = result.RowsAffected
	}

	duration := time.Since(startTime)

	s.mu.Lock()
	s.stats.LastRunTime = startTime
	s.stats.ThrottlesPruned = pruned
	s.stats.ReputationsPruned = reputations
	s.stats.TotalThrottlesPruned += pruned
	s.stats.CleanupDuration = duration
	if s.interval > 0 {
		s.stats.NextScheduledRun = startTime.Add(s.interval)
	}
	s.mu.Unlock()

	if pruned > 0 || reputations > 0 {
		s.logger.Info("Cleanup completed",
			s.logger.Args(
				"throttles_pruned", pruned,
				"reputations_pruned", reputations,
				"duration", duration.Round(time.Millisecond),
			))
	} else {
		s.logger.Debug("Cleanup found nothing to remove")
	}
	return nil
}

// GetStats returns cleanup statistics
func (s *CleanupService) GetStats() CleanupStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
