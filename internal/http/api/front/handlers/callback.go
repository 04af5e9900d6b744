package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/http/api/middleware"
	"github.com/fitflow/billing/internal/mpesa"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const maxCallbackBody = 1 << 20

// CallbackHandler receives M-PESA STK push results.
type CallbackHandler struct {
	svc *billing.Service
	now func() time.Time
}

// NewCallbackHandler constructs a CallbackHandler.
func NewCallbackHandler(svc *billing.Service) *CallbackHandler {
	return &CallbackHandler{svc: svc, now: time.Now}
}

// Handle reconciles one callback. Every callback that was understood is acknowledged with
// ResultCode 0 so the provider stops retrying, including duplicates and unknown requests.
func (h *CallbackHandler) Handle(c *gin.Context) {
	body, errRead := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "unreadable body"})
		return
	}

	result, errParse := mpesa.ParseCallback(body, h.now().UTC())
	if errParse != nil {
		log.WithError(errParse).Warn("mpesa callback: rejected payload")
		c.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "invalid callback"})
		return
	}

	outcome, errReconcile := h.svc.Reconcile(c.Request.Context(), result)
	fields := log.Fields{
		"provider_request_id": result.ProviderRequestID,
		"request_id":          middleware.RequestIDFromContext(c.Request.Context()),
	}
	switch {
	case errReconcile == nil:
		log.WithFields(fields).WithField("outcome", outcome.String()).Info("mpesa callback: processed")
	case errors.Is(errReconcile, billing.ErrOrphanCallback):
		// Logged by Reconcile.
	case errors.Is(errReconcile, billing.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "invalid callback"})
		return
	default:
		log.WithFields(fields).WithError(errReconcile).Error("mpesa callback: reconcile failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ResultCode": 1, "ResultDesc": "temporary failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}
