package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/report"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves the monthly report and the admin dashboard.
type ReportHandler struct {
	agg *report.Aggregator
	now func() time.Time
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(agg *report.Aggregator) *ReportHandler {
	return &ReportHandler{agg: agg, now: time.Now}
}

// Monthly returns the report for ?year=&month=, defaulting to the current month.
func (h *ReportHandler) Monthly(c *gin.Context) {
	year, month, ok := h.period(c)
	if !ok {
		return
	}
	r, errReport := h.agg.MonthlyReport(c.Request.Context(), year, month)
	if errReport != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build report failed"})
		return
	}

	expiring := make([]gin.H, 0, len(r.ExpiringSoon))
	for i := range r.ExpiringSoon {
		expiring = append(expiring, formatClient(&r.ExpiringSoon[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"year":           r.Year,
		"month":          int(r.Month),
		"total_expenses": r.TotalExpenses,
		"total_earnings": r.TotalEarnings,
		"net":            r.TotalEarnings.Sub(r.TotalExpenses),
		"expiring_soon":  expiring,
	})
}

// Export streams the monthly report and the month's successful payments as XLSX.
func (h *ReportHandler) Export(c *gin.Context) {
	year, month, ok := h.period(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	r, errReport := h.agg.MonthlyReport(ctx, year, month)
	if errReport != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build report failed"})
		return
	}
	start, end := report.MonthRange(year, month)
	payments, errPayments := h.agg.SuccessfulPayments(ctx, start, end)
	if errPayments != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list payments failed"})
		return
	}

	var buf bytes.Buffer
	if errWrite := report.WriteMonthlyWorkbook(&buf, r, payments); errWrite != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export report failed"})
		return
	}
	filename := fmt.Sprintf("fitflow-report-%04d-%02d.xlsx", year, int(month))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Dashboard returns the current month's business figures.
func (h *ReportHandler) Dashboard(c *gin.Context) {
	stats, errStats := h.agg.Dashboard(c.Request.Context())
	if errStats != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build dashboard failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ReportHandler) period(c *gin.Context) (int, time.Month, bool) {
	now := h.now().UTC()
	year, month := now.Year(), now.Month()
	if strings.TrimSpace(c.Query("year")) != "" {
		y, ok := queryUint(c, "year")
		if !ok || y < 1970 || y > 9999 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return 0, 0, false
		}
		year = int(y)
	}
	if strings.TrimSpace(c.Query("month")) != "" {
		m, ok := queryUint(c, "month")
		if !ok || m < 1 || m > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "month must be 1-12"})
			return 0, 0, false
		}
		month = time.Month(m)
	}
	return year, month, true
}
