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
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geowarden/internal/api"
	"geowarden/internal/api/handlers"
	"geowarden/internal/banner"
	"geowarden/internal/config"
	"geowarden/internal/database"
	"geowarden/internal/database/repositories"
	"geowarden/internal/detection"
	"geowarden/internal/intelligence"
	"geowarden/internal/moderation"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// reputationMaxAge bounds how long cached lookups survive in the database.
const reputationMaxAge = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		pterm.Fatal.Printfln("Failed to load configuration: %v", err)
	}

	logger := pterm.DefaultLogger.WithLevel(parseLogLevel(cfg.LogLevel))
	banner.Print()

	db, err := database.NewConnection(&database.Config{
		Type:               string(cfg.Database.Type),
		Path:               cfg.Database.Path,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLife:        cfg.Database.ConnMaxLife,
		SlowQueryThreshold: 200 * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", logger.Args("error", err))
	}

	var vpnList *intelligence.VPNList
	if cfg.Intel.VPNListPath != "" {
		vpnList, err = intelligence.NewVPNList(cfg.Intel.VPNListPath, logger)
		if err != nil {
			logger.Fatal("Failed to load VPN list", logger.Args("path", cfg.Intel.VPNListPath, "error", err))
		}
		if err := vpnList.Watch(); err != nil {
			logger.Warn("VPN list hot reload unavailable", logger.Args("error", err))
		}
		defer vpnList.Close()
	}

	source, closeSource := buildIntelSource(cfg.Intel, logger)
	defer closeSource()

	var (
		intel       intelligence.Provider = intelligence.Noop{}
		intelStatus handlers.IntelStatus
		cacheSizer  handlers.CacheSizer
	)
	if source != nil {
		// The breaker guards only the upstream so cached answers keep flowing while it is open
		guarded := intelligence.NewGuarded(string(cfg.Intel.Provider), source, intelligence.BreakerSettings{}, logger)
		cached := intelligence.NewCachedProvider(guarded,
			repositories.NewIPReputationRepository(db),
			cfg.Intel.CacheTTL, cfg.Intel.CacheSize, logger)
		intel, intelStatus, cacheSizer = cached, guarded, cached
	}
	if vpnList != nil {
		intel = intelligence.NewListedProvider(intel, vpnList, logger)
	}

	detectionCfg := detection.DefaultConfig()
	detectionCfg.MinVelocityInterval = cfg.Detection.MinVelocityInterval
	detectionCfg.IntelTimeout = cfg.Intel.Timeout

	service := detection.NewService(repositories.NewDetectionRepository(db), intel, logger,
		detection.WithConfig(detectionCfg))

	workflow := moderation.NewWorkflow(db, logger,
		moderation.WithHighRiskScore(detectionCfg.HighRiskScore),
		moderation.WithThrottleDefaults(moderation.ThrottleDefaults{
			Severity: cfg.Throttle.DefaultSeverity,
			Duration: time.Duration(cfg.Throttle.DefaultHours) * time.Hour,
			Reason:   moderation.DefaultThrottleDefaults().Reason,
		}))

	cleanupService := database.NewCleanupService(db, logger, cfg.Throttle.PruneInterval, reputationMaxAge)
	cleanupService.Start()
	defer cleanupService.Stop()

	dbPath := ""
	if cfg.Database.Type == config.SQLite {
		dbPath = cfg.Database.Path
	}

	gin.SetMode(cfg.Server.GinMode)
	router, err := api.NewRouter(api.RouterConfig{
		Locations:      handlers.NewLocationHandler(service, logger),
		Moderation:     handlers.NewModerationHandler(workflow, logger),
		System:         handlers.NewSystemHandler(workflow, cleanupService, intelStatus, cacheSizer, logger, dbPath),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		MetricsEnabled: cfg.Server.MetricsEnabled,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Failed to build router", logger.Args("error", err))
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", logger.Args("addr", cfg.Server.Addr, "intel_provider", cfg.Intel.Provider))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", logger.Args("error", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	sig := <-stop
	logger.Info("Shutting down", logger.Args("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", logger.Args("error", err))
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// buildIntelSource opens the configured lookup backend. It returns nil when
// intelligence is disabled.
func buildIntelSource(cfg config.IntelConfig, logger *pterm.Logger) (intelligence.Provider, func()) {
	switch cfg.Provider {
	case config.IntelMaxMind:
		provider, err := intelligence.NewMaxMindProvider(cfg.GeoIPCityPath, cfg.GeoIPASNPath, logger)
		if err != nil {
			logger.Fatal("Failed to open GeoIP databases", logger.Args("error", err))
		}
		return provider, func() { provider.Close() }
	case config.IntelIPAPI:
		return intelligence.NewIPAPIProvider(cfg.IPAPIURL, cfg.IPAPIRatePerMin, cfg.Timeout, logger), func() {}
	default:
		logger.Warn("IP intelligence disabled, claims are scored on history only")
		return nil, func() {}
	}
}

func parseLogLevel(level string) pterm.LogLevel {
	switch level {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}
