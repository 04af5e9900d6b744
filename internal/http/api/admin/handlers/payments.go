package handlers

import (
	"net/http"
	"strings"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/http/api/respond"
	"github.com/fitflow/billing/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PaymentHandler serves admin payment endpoints.
type PaymentHandler struct {
	svc *billing.Service
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(svc *billing.Service) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// recordCashRequest captures a front-desk cash payment.
type recordCashRequest struct {
	Phone         string           `json:"phone"`          // Client phone number.
	Subscription  string           `json:"subscription"`   // Plan name.
	PaymentStatus string           `json:"payment_status"` // Success, Failed or Pending.
	Amount        *decimal.Decimal `json:"amount"`         // Optional; defaults to the plan price.
	PaymentDate   string           `json:"payment_date"`   // Optional RFC3339 or YYYY-MM-DD.
}

// RecordCash records a cash payment and extends the subscription when it succeeded.
func (h *PaymentHandler) RecordCash(c *gin.Context) {
	var body recordCashRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Phone) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}
	if strings.TrimSpace(body.Subscription) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subscription is required"})
		return
	}

	status := models.PaymentStatusSuccess
	if strings.TrimSpace(body.PaymentStatus) != "" {
		parsed, errStatus := models.ParsePaymentStatus(body.PaymentStatus)
		if errStatus != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payment_status must be Success, Failed or Pending"})
			return
		}
		status = parsed
	}
	if body.Amount != nil && !body.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	in := billing.CashPaymentInput{
		Phone:    body.Phone,
		PlanName: body.Subscription,
		Status:   status,
		Amount:   body.Amount,
	}
	if strings.TrimSpace(body.PaymentDate) != "" {
		date, ok := parseDate(body.PaymentDate)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment_date format, use RFC3339 or YYYY-MM-DD"})
			return
		}
		in.PaymentDate = &date
	}

	result, errRecord := h.svc.RecordCash(c.Request.Context(), in)
	if errRecord != nil {
		respond.Error(c, errRecord, "record cash payment failed")
		return
	}

	out := gin.H{
		"payment_id": result.Payment.ID,
		"status":     result.Payment.Status.String(),
		"amount":     result.Payment.Amount,
	}
	if result.Client != nil {
		out["client"] = gin.H{
			"id":              result.Client.ClientID,
			"name":            result.Client.Name,
			"plan":            result.Client.PlanName,
			"previous_expiry": result.Client.PreviousExpiry,
			"expiry":          result.Client.Expiry,
			"status":          result.Client.Status.String(),
		}
	}
	c.JSON(http.StatusCreated, out)
}

// initiateForClientRequest captures an STK push started by staff.
type initiateForClientRequest struct {
	ClientID    uint64 `json:"client_id"`    // Paying client.
	PlanName    string `json:"plan_name"`    // Plan to buy.
	PhoneNumber string `json:"phone_number"` // Phone to prompt.
}

// Initiate pushes a payment prompt on a client's behalf.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var body initiateForClientRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ClientID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id is required"})
		return
	}

	payment, resp, errInitiate := h.svc.InitiateMobileMoney(c.Request.Context(), billing.InitiationInput{
		ClientID:    body.ClientID,
		PlanName:    body.PlanName,
		PhoneNumber: body.PhoneNumber,
	})
	if errInitiate != nil {
		respond.Error(c, errInitiate, "initiate payment failed")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"payment_id":          payment.ID,
		"status":              payment.Status.String(),
		"provider_request_id": resp.ProviderRequestID,
		"customer_message":    resp.CustomerMessage,
	})
}

// List returns payments filtered by client, status, method and date range.
func (h *PaymentHandler) List(c *gin.Context) {
	var filter billing.PaymentFilter
	if id, ok := queryUint(c, "client_id"); ok {
		filter.ClientID = &id
	}
	if statusQ := strings.TrimSpace(c.Query("status")); statusQ != "" {
		status, errStatus := models.ParsePaymentStatus(statusQ)
		if errStatus != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		filter.Status = &status
	}
	if methodQ := strings.ToLower(strings.TrimSpace(c.Query("method"))); methodQ != "" {
		var method models.PaymentMethod
		switch methodQ {
		case "cash":
			method = models.PaymentMethodCash
		case "mpesa", "m-pesa":
			method = models.PaymentMethodMobileMoney
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "method must be cash or mpesa"})
			return
		}
		filter.Method = &method
	}
	if from, ok := parseDate(c.Query("from")); ok {
		filter.From = &from
	}
	if to, ok := parseDate(c.Query("to")); ok {
		filter.To = &to
	}
	if limit, ok := queryUint(c, "limit"); ok && limit <= 1000 {
		filter.Limit = int(limit)
	}

	payments, errList := h.svc.Ledger().List(c.Request.Context(), filter)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list payments failed"})
		return
	}
	out := make([]gin.H, 0, len(payments))
	for i := range payments {
		out = append(out, formatPayment(&payments[i]))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}
