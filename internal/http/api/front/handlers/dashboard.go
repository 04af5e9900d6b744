package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/fitflow/billing/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DashboardFrontHandler shows a client's own subscription state.
type DashboardFrontHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDashboardFrontHandler constructs a DashboardFrontHandler.
func NewDashboardFrontHandler(db *gorm.DB) *DashboardFrontHandler {
	return &DashboardFrontHandler{db: db, now: time.Now}
}

// Get returns the client's plan, expiry and days remaining.
func (h *DashboardFrontHandler) Get(c *gin.Context) {
	clientID := getClientID(c)
	if clientID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var client models.Client
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Plan").Take(&client, clientID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query client failed"})
		return
	}

	daysRemaining := 0
	if client.Expiry != nil {
		today := h.now().UTC().Truncate(24 * time.Hour)
		if remaining := int(client.Expiry.UTC().Sub(today).Hours() / 24); remaining > 0 {
			daysRemaining = remaining
		}
	}
	var plan gin.H
	if client.Plan != nil {
		plan = formatPlan(client.Plan)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                  client.ID,
		"name":                client.FullName(),
		"email":               client.Email,
		"phone":               client.Phone,
		"plan":                plan,
		"status":              client.Status.String(),
		"expiry":              client.Expiry,
		"days_remaining":      daysRemaining,
		"last_payment_date":   client.LastPaymentDate,
		"last_payment_amount": client.LastPaymentAmount,
	})
}
