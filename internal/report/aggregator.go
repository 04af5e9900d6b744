// Package report computes read-only monthly aggregates and runs the periodic notification jobs.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/notify"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Aggregator reads ledger, client and expense data and notifies recipients.
type Aggregator struct {
	db       *gorm.DB
	notifier notify.Notifier
	now      func() time.Time
}

// NewAggregator constructs an Aggregator.
func NewAggregator(db *gorm.DB, notifier notify.Notifier) *Aggregator {
	return &Aggregator{db: db, notifier: notifier, now: time.Now}
}

// MonthlyReport holds the totals for one calendar month.
type MonthlyReport struct {
	Year          int             `json:"year"`
	Month         time.Month      `json:"month"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	ExpiringSoon  []models.Client `json:"expiring_soon"`
}

// MonthRange returns [start, end) of the UTC calendar month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// MonthlyReport sums the month's expenses and the earnings attributed to clients whose
// current expiry falls in the month. Earnings take each such client's latest successful
// payment amount, or the plan price when the client has none on record. Custom cash amounts
// therefore make earnings differ from a plain sum of plan prices.
func (a *Aggregator) MonthlyReport(ctx context.Context, year int, month time.Month) (MonthlyReport, error) {
	if month < time.January || month > time.December {
		return MonthlyReport{}, fmt.Errorf("report: invalid month %d", int(month))
	}
	start, end := MonthRange(year, month)

	totalExpenses, errExpenses := a.sumExpenses(ctx, start, end)
	if errExpenses != nil {
		return MonthlyReport{}, errExpenses
	}

	var clients []models.Client
	if errFind := a.db.WithContext(ctx).
		Preload("Plan").
		Where("expiry >= ? AND expiry < ?", start, end).
		Order("expiry ASC, id ASC").
		Find(&clients).Error; errFind != nil {
		return MonthlyReport{}, fmt.Errorf("report: list expiring clients: %w", errFind)
	}

	earnings := decimal.Zero
	for _, client := range clients {
		switch {
		case client.LastPaymentAmount.Valid:
			earnings = earnings.Add(client.LastPaymentAmount.Decimal)
		case client.Plan != nil:
			earnings = earnings.Add(client.Plan.Price)
		}
	}

	return MonthlyReport{
		Year:          year,
		Month:         month,
		TotalExpenses: totalExpenses,
		TotalEarnings: earnings,
		ExpiringSoon:  clients,
	}, nil
}

func (a *Aggregator) sumExpenses(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	var expenses []models.Expense
	if errFind := a.db.WithContext(ctx).
		Select("cost").
		Where("created_at >= ? AND created_at < ?", start, end).
		Find(&expenses).Error; errFind != nil {
		return decimal.Zero, fmt.Errorf("report: list expenses: %w", errFind)
	}
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Cost)
	}
	return total, nil
}

// SendMonthlyReport emails the current month's report to every active admin.
func (a *Aggregator) SendMonthlyReport(ctx context.Context) error {
	now := a.now().UTC()
	report, errReport := a.MonthlyReport(ctx, now.Year(), now.Month())
	if errReport != nil {
		return errReport
	}

	var admins []models.Admin
	if errFind := a.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&admins).Error; errFind != nil {
		return fmt.Errorf("report: list admins: %w", errFind)
	}
	if len(admins) == 0 {
		log.Info("report: no active admins for monthly report")
		return nil
	}

	subject := fmt.Sprintf("Monthly Report - %s %d", report.Month, report.Year)
	body := FormatMonthlyReport(report)
	delivered := 0
	for _, admin := range admins {
		if a.notifier != nil && a.notifier.Notify(ctx, admin.Email, subject, body) {
			delivered++
			continue
		}
		log.WithField("admin_id", admin.ID).Warn("report: monthly report not delivered")
	}
	log.WithFields(log.Fields{
		"year":      report.Year,
		"month":     int(report.Month),
		"delivered": delivered,
		"admins":    len(admins),
	}).Info("report: monthly report sent")
	return nil
}

// FormatMonthlyReport renders the report as plain text.
func FormatMonthlyReport(r MonthlyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Monthly report for %s %d\n\n", r.Month, r.Year)
	fmt.Fprintf(&b, "Total expenses: KES %s\n", r.TotalExpenses.StringFixed(2))
	fmt.Fprintf(&b, "Total earnings: KES %s\n", r.TotalEarnings.StringFixed(2))
	fmt.Fprintf(&b, "Net: KES %s\n\n", r.TotalEarnings.Sub(r.TotalExpenses).StringFixed(2))
	if len(r.ExpiringSoon) == 0 {
		b.WriteString("No subscriptions expire this month.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Subscriptions expiring this month (%d):\n", len(r.ExpiringSoon))
	for _, c := range r.ExpiringSoon {
		expiry := ""
		if c.Expiry != nil {
			expiry = c.Expiry.UTC().Format("2006-01-02")
		}
		fmt.Fprintf(&b, "- %s <%s> %s\n", c.FullName(), c.Email, expiry)
	}
	return b.String()
}

// ExpirySweep notifies every client whose expiry date is today or earlier. Client status is
// left untouched; expiry is authoritative.
func (a *Aggregator) ExpirySweep(ctx context.Context) (int, error) {
	now := a.now().UTC()
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	var clients []models.Client
	if errFind := a.db.WithContext(ctx).
		Where("expiry IS NOT NULL AND expiry < ?", tomorrow).
		Order("expiry ASC, id ASC").
		Find(&clients).Error; errFind != nil {
		return 0, fmt.Errorf("report: list expired clients: %w", errFind)
	}

	notified := 0
	for _, client := range clients {
		if a.notifier == nil || strings.TrimSpace(client.Email) == "" {
			continue
		}
		message := fmt.Sprintf(
			"Dear %s,\n\nYour FitFlow subscription expired on %s. Renew your plan to keep training with us.",
			client.FullName(),
			client.Expiry.UTC().Format("January 2, 2006"),
		)
		if a.notifier.Notify(ctx, client.Email, "Subscription Expiry Notification", message) {
			notified++
			continue
		}
		log.WithField("client_id", client.ID).Warn("report: expiry notification not delivered")
	}
	log.WithFields(log.Fields{"expired": len(clients), "notified": notified}).Info("report: expiry sweep finished")
	return notified, nil
}
