package handlers

import (
	"github.com/fitflow/billing/internal/models"
	"github.com/gin-gonic/gin"
)

// ClientIDKey is the gin context key set by the client auth middleware.
const ClientIDKey = "clientID"

func getClientID(c *gin.Context) uint64 {
	v, ok := c.Get(ClientIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(uint64)
	return id
}

func formatPlan(plan *models.Plan) gin.H {
	return gin.H{
		"id":            plan.ID,
		"name":          plan.Name,
		"price":         plan.Price,
		"duration_days": plan.DurationDays,
	}
}

func formatPayment(payment *models.Payment) gin.H {
	return gin.H{
		"id":                  payment.ID,
		"plan":                payment.Plan.Name,
		"amount":              payment.Amount,
		"method":              payment.Method.String(),
		"status":              payment.Status.String(),
		"phone_number":        payment.PhoneNumber,
		"provider_request_id": payment.ProviderRequestID,
		"provider_receipt":    payment.ProviderReceipt,
		"result_desc":         payment.ResultDesc,
		"reconciled_at":       payment.ReconciledAt,
		"created_at":          payment.CreatedAt,
	}
}
