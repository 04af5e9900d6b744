// Package respond maps billing errors onto HTTP responses.
package respond

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/http/api/middleware"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// StatusForError returns the HTTP status for a billing error.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, billing.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, billing.ErrNotFound), errors.Is(err, billing.ErrOrphanCallback):
		return http.StatusNotFound
	case errors.Is(err, billing.ErrDuplicateRequestID), errors.Is(err, billing.ErrAlreadyTerminal):
		return http.StatusConflict
	case errors.Is(err, billing.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, billing.ErrExternalService):
		return http.StatusBadGateway
	case errors.Is(err, billing.ErrConcurrencyConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error writes {"error": ...} for err. Server-side failures are logged and answered with
// a generic message instead of the raw error.
func Error(c *gin.Context, err error, fallback string) {
	status := StatusForError(err)
	if status < http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": strings.TrimPrefix(err.Error(), "billing: ")})
		return
	}

	log.WithError(err).
		WithField("request_id", middleware.RequestIDFromContext(c.Request.Context())).
		Error(fallback)
	switch status {
	case http.StatusBadGateway:
		c.JSON(status, gin.H{"error": "payment gateway unavailable"})
	case http.StatusServiceUnavailable:
		c.JSON(status, gin.H{"error": "request conflicted with another update, retry"})
	default:
		c.JSON(status, gin.H{"error": fallback})
	}
}
