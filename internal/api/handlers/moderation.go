package handlers

import (
	"net/http"
	"strconv"

	"geowarden/internal/moderation"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// ModerationHandler exposes the review queue, throttles and audit trail.
type ModerationHandler struct {
	workflow *moderation.Workflow
	logger   *pterm.Logger
}

func NewModerationHandler(workflow *moderation.Workflow, logger *pterm.Logger) *ModerationHandler {
	return &ModerationHandler{workflow: workflow, logger: logger}
}

type reviewRequest struct {
	Action                string `json:"action" binding:"required,oneof=confirm dismiss"`
	Reason                string `json:"reason" binding:"required,max=500"`
	ApplyThrottle         bool   `json:"apply_throttle"`
	ThrottleSeverity      int    `json:"throttle_severity" binding:"omitempty,min=1,max=5"`
	ThrottleDurationHours int    `json:"throttle_duration_hours" binding:"omitempty,gt=0"`
}

// ListPending returns unreviewed detections, optionally filtered by min_score.
func (h *ModerationHandler) ListPending(c *gin.Context) {
	minScore, _ := strconv.Atoi(c.DefaultQuery("min_score", "0"))

	result, err := h.workflow.ListPending(c.Request.Context(), pageFromQuery(c), minScore)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list pending detections")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ModerationHandler) GetDetection(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.workflow.Detection(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to load detection")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Review confirms or dismisses a detection.
func (h *ModerationHandler) Review(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	moderator, ok := moderatorID(c)
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.workflow.Review(c.Request.Context(), moderation.ReviewRequest{
		DetectionID:           id,
		Action:                moderation.Action(req.Action),
		Reason:                req.Reason,
		ModeratorID:           moderator,
		ApplyThrottle:         req.ApplyThrottle,
		ThrottleSeverity:      req.ThrottleSeverity,
		ThrottleDurationHours: req.ThrottleDurationHours,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to review detection")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ModerationHandler) ListThrottles(c *gin.Context) {
	result, err := h.workflow.ListThrottles(c.Request.Context(), pageFromQuery(c))
	if err != nil {
		respondError(c, h.logger, err, "Failed to list throttles")
		return
	}
	c.JSON(http.StatusOK, result)
}

// RemoveThrottle lifts a throttle early. The optional reason query parameter lands in the audit trail.
func (h *ModerationHandler) RemoveThrottle(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	moderator, ok := moderatorID(c)
	if !ok {
		return
	}

	if err := h.workflow.RemoveThrottle(c.Request.Context(), id, moderator, c.Query("reason")); err != nil {
		respondError(c, h.logger, err, "Failed to remove throttle")
		return
	}
	c.Status(http.StatusNoContent)
}

// UserStats combines detection history and throttle state for one user.
func (h *ModerationHandler) UserStats(c *gin.Context) {
	userID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	detections, err := h.workflow.StatsFor(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to load detection stats")
		return
	}
	throttles, err := h.workflow.ThrottleStatsFor(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to load throttle stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    userID,
		"detections": detections,
		"throttles":  throttles,
	})
}

// ListActions returns the audit trail, filtered by user_id when given.
func (h *ModerationHandler) ListActions(c *gin.Context) {
	userID, _ := strconv.ParseInt(c.Query("user_id"), 10, 64)

	result, err := h.workflow.ListActions(c.Request.Context(), pageFromQuery(c), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list moderation actions")
		return
	}
	c.JSON(http.StatusOK, result)
}
