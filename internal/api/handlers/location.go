package handlers

import (
	"context"
	"net/http"

	"geowarden/internal/database/models"
	"geowarden/internal/detection"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// Evaluator scores location claims.
type Evaluator interface {
	Evaluate(ctx context.Context, claim detection.Claim) (*models.GeoSpoofDetection, error)
}

// LocationHandler ingests location claims from clients.
type LocationHandler struct {
	evaluator Evaluator
	logger    *pterm.Logger
}

func NewLocationHandler(evaluator Evaluator, logger *pterm.Logger) *LocationHandler {
	return &LocationHandler{evaluator: evaluator, logger: logger}
}

type locationRequest struct {
	UserID    int64    `json:"user_id" binding:"required,gt=0"`
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	// Falls back to the connection's client IP
	IPAddress string `json:"ip_address" binding:"omitempty,ip"`
}

// SubmitLocation evaluates a claim. A suspicious claim answers 201 with the stored
// detection, a clean one 200.
func (h *LocationHandler) SubmitLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ip := req.IPAddress
	if ip == "" {
		ip = c.ClientIP()
	}

	result, err := h.evaluator.Evaluate(c.Request.Context(), detection.Claim{
		UserID:    req.UserID,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		IPAddress: ip,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to evaluate location")
		return
	}

	if result == nil {
		c.JSON(http.StatusOK, gin.H{"detected": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"detected": true, "detection": result})
}
