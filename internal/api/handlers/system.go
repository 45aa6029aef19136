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
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"geowarden/internal/database"
	"geowarden/internal/moderation"
	"geowarden/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// QueueReporter sizes the moderation backlog
type QueueReporter interface {
	Overview(ctx context.Context) (*moderation.QueueOverview, error)
}

// IntelStatus reports on the intelligence lookup chain
type IntelStatus interface {
	State() string
}

// CacheSizer reports how many lookups are held in memory
type CacheSizer interface {
	Size() int
}

// SystemHandler handles system statistics requests
type SystemHandler struct {
	queue          QueueReporter
	cleanupService *database.CleanupService
	intel          IntelStatus
	cache          CacheSizer
	logger         *pterm.Logger
	startTime      time.Time
	dbPath         string
}

// SystemStats holds process, database and intelligence statistics
type SystemStats struct {
	// Process Info
	AppVersion    string  `json:"app_version"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	StartTime     string  `json:"start_time"`
	GoVersion     string  `json:"go_version"`
	NumCPU        int     `json:"num_cpu"`
	NumGoroutines int     `json:"num_goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemorySysMB   float64 `json:"memory_sys_mb"`

	// Moderation backlog
	PendingDetections int64 `json:"pending_detections"`
	ActiveThrottles   int64 `json:"active_throttles"`
	AuditEntries      int64 `json:"audit_entries"`

	// Database Info
	DatabaseSizeMB float64 `json:"database_size_mb"`
	DatabasePath   string  `json:"database_path,omitempty"`

	// Throttle pruning
	NextCleanupTime      string `json:"next_cleanup_time"`
	NextCleanupCountdown string `json:"next_cleanup_countdown"`
	LastCleanupTime      string `json:"last_cleanup_time"`
	ThrottlesPruned      int64  `json:"throttles_pruned"`

	// Intelligence
	IntelBreakerState string `json:"intel_breaker_state"`
	IntelCacheEntries int    `json:"intel_cache_entries"`
}

// NewSystemHandler creates a new system handler. intel, cache and cleanupService may be nil.
func NewSystemHandler(
	queue QueueReporter,
	cleanupService *database.CleanupService,
	intel IntelStatus,
	cache CacheSizer,
	logger *pterm.Logger,
	dbPath string,
) *SystemHandler {
	return &SystemHandler{
		queue:          queue,
		cleanupService: cleanupService,
		intel:          intel,
		cache:          cache,
		logger:         logger,
		startTime:      time.Now(),
		dbPath:         dbPath,
	}
}

// GetSystemStats returns comprehensive system statistics
func (h *SystemHandler) GetSystemStats(c *gin.Context) {
	stats, err := h.collectSystemStats(c.Request.Context())
	if err != nil {
		h.logger.WithCaller().Error("Failed to collect system stats", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect system stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Health answers liveness probes
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Version})
}

func (h *SystemHandler) collectSystemStats(ctx context.Context) (*SystemStats, error) {
	stats := &SystemStats{
		AppVersion:    version.Version,
		StartTime:     h.startTime.Format(time.RFC3339),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutines: runtime.NumGoroutine(),
		DatabasePath:  h.dbPath,
	}

	uptime := time.Since(h.startTime)
	stats.UptimeSeconds = int64(uptime.Seconds())
	stats.Uptime = formatDuration(uptime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.MemoryAllocMB = float64(m.Alloc) / 1024 / 1024
	stats.MemorySysMB = float64(m.Sys) / 1024 / 1024

	overview, err := h.queue.Overview(ctx)
	if err != nil {
		return nil, err
	}
	stats.PendingDetections = overview.PendingDetections
	stats.ActiveThrottles = overview.ActiveThrottles
	stats.AuditEntries = overview.AuditEntries

	// Postgres deployments have no local file
	if h.dbPath != "" {
		if fileInfo, err := os.Stat(h.dbPath); err == nil {
			stats.DatabaseSizeMB = float64(fileInfo.Size()) / 1024 / 1024
		}
	}

	if h.cleanupService != nil && h.cleanupService.Enabled() {
		cleanupStats := h.cleanupService.GetStats()
		stats.NextCleanupTime = cleanupStats.NextScheduledRun.Format(time.DateTime)
		stats.NextCleanupCountdown = formatDuration(time.Until(cleanupStats.NextScheduledRun))
		stats.ThrottlesPruned = cleanupStats.TotalThrottlesPruned

		if !cleanupStats.LastRunTime.IsZero() {
			stats.LastCleanupTime = cleanupStats.LastRunTime.Format(time.DateTime)
		} else {
			stats.LastCleanupTime = "Never"
		}
	} else {
		stats.NextCleanupTime = "Disabled"
		stats.NextCleanupCountdown = "N/A"
		stats.LastCleanupTime = "N/A"
	}

	stats.IntelBreakerState = "disabled"
	if h.intel != nil {
		stats.IntelBreakerState = h.intel.State()
	}
	if h.cache != nil {
		stats.IntelCacheEntries = h.cache.Size()
	}

	return stats, nil
}

// formatDuration formats a duration into a human-readable string
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return formatPlural(days, "day", hours, "hour")
	case hours > 0:
		return formatPlural(hours, "hour", minutes, "minute")
	case minutes > 0:
		return formatPlural(minutes, "minute", seconds, "second")
	}
	return formatPlural(seconds, "second", 0, "")
}

func formatPlural(n1 int, unit1 string, n2 int, unit2 string) string {
	result := formatSingle(n1, unit1)
	if n2 > 0 && unit2 != "" {
		result += ", " + formatSingle(n2, unit2)
	}
	return result
}

func formatSingle(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
