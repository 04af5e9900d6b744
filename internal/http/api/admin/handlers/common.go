package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/models"
	"github.com/gin-gonic/gin"
)

// Gin context keys set by the admin auth middleware.
const (
	AdminIDKey    = "adminID"
	AdminEmailKey = "adminEmail"
)

const dateLayout = "2006-01-02"

// parseDate accepts RFC3339 or a bare YYYY-MM-DD date.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, errParse := time.Parse(time.RFC3339, raw); errParse == nil {
		return t.UTC(), true
	}
	if t, errParse := time.Parse(dateLayout, raw); errParse == nil {
		return t, true
	}
	return time.Time{}, false
}

func queryUint(c *gin.Context, key string) (uint64, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return 0, false
	}
	id, errParse := strconv.ParseUint(v, 10, 64)
	if errParse != nil {
		return 0, false
	}
	return id, true
}

func formatClient(client *models.Client) gin.H {
	var planName string
	if client.Plan != nil {
		planName = client.Plan.Name
	}
	return gin.H{
		"id":                  client.ID,
		"first_name":          client.FirstName,
		"last_name":           client.LastName,
		"email":               client.Email,
		"phone":               client.Phone,
		"plan_id":             client.PlanID,
		"plan":                planName,
		"expiry":              client.Expiry,
		"status":              client.Status.String(),
		"last_payment_date":   client.LastPaymentDate,
		"last_payment_amount": client.LastPaymentAmount,
		"created_at":          client.CreatedAt,
	}
}

func formatPayment(payment *models.Payment) gin.H {
	return gin.H{
		"id":                  payment.ID,
		"client_id":           payment.ClientID,
		"client":              payment.Client.FullName(),
		"plan_id":             payment.PlanID,
		"plan":                payment.Plan.Name,
		"amount":              payment.Amount,
		"method":              payment.Method.String(),
		"status":              payment.Status.String(),
		"phone_number":        payment.PhoneNumber,
		"provider_request_id": payment.ProviderRequestID,
		"merchant_request_id": payment.MerchantRequestID,
		"provider_receipt":    payment.ProviderReceipt,
		"result_code":         payment.ResultCode,
		"result_desc":         payment.ResultDesc,
		"reconciled_at":       payment.ReconciledAt,
		"created_at":          payment.CreatedAt,
	}
}
