package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpenseHandler records and lists operating costs.
type ExpenseHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewExpenseHandler constructs an ExpenseHandler.
func NewExpenseHandler(db *gorm.DB) *ExpenseHandler {
	return &ExpenseHandler{db: db, now: time.Now}
}

// createExpenseRequest captures the payload for an expense.
type createExpenseRequest struct {
	Name      string          `json:"name"`       // Expense description.
	Cost      decimal.Decimal `json:"cost"`       // Expense amount.
	CreatedAt string          `json:"created_at"` // Optional RFC3339 or YYYY-MM-DD date.
}

// Create stores an expense.
func (h *ExpenseHandler) Create(c *gin.Context) {
	var body createExpenseRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if !body.Cost.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cost must be positive"})
		return
	}
	createdAt := h.now().UTC()
	if strings.TrimSpace(body.CreatedAt) != "" {
		parsed, ok := parseDate(body.CreatedAt)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid created_at format, use RFC3339 or YYYY-MM-DD"})
			return
		}
		createdAt = parsed
	}

	expense := models.Expense{Name: name, Cost: body.Cost, CreatedAt: createdAt}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&expense).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create expense failed"})
		return
	}
	c.JSON(http.StatusCreated, formatExpense(&expense))
}

// List returns the expenses of a month, or of a whole year when month is omitted, with
// their total.
func (h *ExpenseHandler) List(c *gin.Context) {
	now := h.now().UTC()
	year := now.Year()
	if y, ok := queryUint(c, "year"); ok {
		year = int(y)
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	if strings.TrimSpace(c.Query("month")) != "" {
		m, ok := queryUint(c, "month")
		if !ok || m < 1 || m > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "month must be 1-12"})
			return
		}
		start, end = report.MonthRange(year, time.Month(m))
	}

	var rows []models.Expense
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list expenses failed"})
		return
	}

	total := decimal.Zero
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		total = total.Add(rows[i].Cost)
		out = append(out, formatExpense(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"expenses": out, "total": total, "count": len(rows)})
}

func formatExpense(expense *models.Expense) gin.H {
	return gin.H{
		"id":         expense.ID,
		"name":       expense.Name,
		"cost":       expense.Cost,
		"created_at": expense.CreatedAt,
	}
}
