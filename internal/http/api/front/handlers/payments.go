package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/http/api/respond"
	"github.com/fitflow/billing/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PaymentFrontHandler serves a client's own payments.
type PaymentFrontHandler struct {
	db  *gorm.DB
	svc *billing.Service
}

// NewPaymentFrontHandler constructs a PaymentFrontHandler.
func NewPaymentFrontHandler(db *gorm.DB, svc *billing.Service) *PaymentFrontHandler {
	return &PaymentFrontHandler{db: db, svc: svc}
}

// initiatePaymentRequest captures the payload for an STK push.
type initiatePaymentRequest struct {
	PlanName    string `json:"plan_name"`    // Plan to buy.
	PhoneNumber string `json:"phone_number"` // Optional; defaults to the client's phone.
}

// Initiate pushes a payment prompt to the client's phone.
func (h *PaymentFrontHandler) Initiate(c *gin.Context) {
	clientID := getClientID(c)
	if clientID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body initiatePaymentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.PlanName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_name is required"})
		return
	}

	phone := strings.TrimSpace(body.PhoneNumber)
	if phone == "" {
		var client models.Client
		if errFind := h.db.WithContext(c.Request.Context()).Select("id", "phone").Take(&client, clientID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query client failed"})
			return
		}
		phone = client.Phone
	}

	payment, resp, errInitiate := h.svc.InitiateMobileMoney(c.Request.Context(), billing.InitiationInput{
		ClientID:    clientID,
		PlanName:    body.PlanName,
		PhoneNumber: phone,
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

// List returns the client's payments, newest first.
func (h *PaymentFrontHandler) List(c *gin.Context) {
	clientID := getClientID(c)
	if clientID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	payments, errList := h.svc.Ledger().ListForClient(c.Request.Context(), clientID)
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
