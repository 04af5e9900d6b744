package handlers

import (
	"net/http"

	"github.com/fitflow/billing/internal/billing"
	"github.com/gin-gonic/gin"
)

// PlanFrontHandler serves the public plan catalog.
type PlanFrontHandler struct {
	catalog *billing.PlanCatalog
}

// NewPlanFrontHandler constructs a PlanFrontHandler.
func NewPlanFrontHandler(catalog *billing.PlanCatalog) *PlanFrontHandler {
	return &PlanFrontHandler{catalog: catalog}
}

// List returns all plans ordered by duration.
func (h *PlanFrontHandler) List(c *gin.Context) {
	plans, errList := h.catalog.List(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}

	out := make([]gin.H, 0, len(plans))
	for i := range plans {
		out = append(out, formatPlan(&plans[i]))
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}
