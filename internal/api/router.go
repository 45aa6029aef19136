package api

import (
	"geowarden/internal/api/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
)

// RouterConfig wires handlers into the HTTP surface.
type RouterConfig struct {
	Locations      *handlers.LocationHandler
	Moderation     *handlers.ModerationHandler
	System         *handlers.SystemHandler
	AllowedOrigins []string
	TrustedProxies []string
	MetricsEnabled bool
	Logger         *pterm.Logger
}

// NewRouter fails only when a trusted proxy entry is not an address or CIDR.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	r := gin.New()
	// Client addresses feed detection, so forwarded headers count only from known proxies
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery(), requestID(), cors(cfg.AllowedOrigins), observe(cfg.Logger))

	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	r.GET("/health", cfg.System.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/locations", cfg.Locations.SubmitLocation)
		v1.GET("/system/stats", cfg.System.GetSystemStats)

		mod := v1.Group("/moderation")
		{
			mod.GET("/detections", cfg.Moderation.ListPending)
			mod.GET("/detections/:id", cfg.Moderation.GetDetection)
			mod.POST("/detections/:id/review", cfg.Moderation.Review)
			mod.GET("/throttles", cfg.Moderation.ListThrottles)
			mod.DELETE("/throttles/:id", cfg.Moderation.RemoveThrottle)
			mod.GET("/users/:id/stats", cfg.Moderation.UserStats)
			mod.GET("/actions", cfg.Moderation.ListActions)
		}
	}

	return r, nil
}
