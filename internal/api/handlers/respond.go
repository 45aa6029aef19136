package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"geowarden/internal/database/repositories"
	"geowarden/internal/detection"
	"geowarden/internal/moderation"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pterm/pterm"
)

// ModeratorHeader carries the acting moderator's user id.
const ModeratorHeader = "X-Moderator-ID"

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		validationErr *detection.ValidationError
		stateErr      *moderation.InvalidStateError
		persistErr    *repositories.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, moderation.ErrUnknownAction),
		errors.Is(err, moderation.ErrInvalidSeverity),
		errors.Is(err, moderation.ErrInvalidDuration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, moderation.ErrInvalidModerator):
		return http.StatusUnauthorized
	case errors.Is(err, detection.ErrUnknownUser), errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &stateErr), errors.Is(err, moderation.ErrConcurrentReview):
		return http.StatusConflict
	case errors.As(err, &persistErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Server-side failures are logged
// and their details withheld from the client.
func respondError(c *gin.Context, logger *pterm.Logger, err error, message string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithCaller().Error(message, logger.Args("error", err, "path", c.FullPath()))
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondBindError separates malformed JSON from payloads that fail validation.
func respondBindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make(map[string]string, len(validationErrs))
		for _, fe := range validationErrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

func pageFromQuery(c *gin.Context) repositories.Page {
	number, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(repositories.DefaultPerPage)))
	return repositories.NewPage(number, size)
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || value <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return value, true
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || value == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(value), true
}

func moderatorID(c *gin.Context) (int64, bool) {
	value, err := strconv.ParseInt(c.GetHeader(ModeratorHeader), 10, 64)
	if err != nil || value <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + ModeratorHeader + " header"})
		return 0, false
	}
	return value, true
}
