package report

import (
	"context"
	"fmt"
	"time"

	"github.com/fitflow/billing/internal/models"
	"github.com/shopspring/decimal"
)

// PlanCount is a plan with the number of clients currently on it.
type PlanCount struct {
	PlanID  uint64 `json:"plan_id"`
	Name    string `json:"name"`
	Clients int64  `json:"clients"`
}

// DashboardStats summarises the business for the current month.
type DashboardStats struct {
	Clients           int64           `json:"clients"`
	ActiveClients     int64           `json:"active_clients"`
	MonthExpenses     decimal.Decimal `json:"month_expenses"`
	MonthPayments     decimal.Decimal `json:"month_payments"`
	MonthPaymentCount int             `json:"month_payment_count"`
	Plans             []PlanCount     `json:"plans"`
}

// Dashboard computes the admin dashboard figures for the current month.
func (a *Aggregator) Dashboard(ctx context.Context) (DashboardStats, error) {
	now := a.now().UTC()
	start, end := MonthRange(now.Year(), now.Month())
	var stats DashboardStats

	if errCount := a.db.WithContext(ctx).Model(&models.Client{}).Count(&stats.Clients).Error; errCount != nil {
		return DashboardStats{}, fmt.Errorf("report: count clients: %w", errCount)
	}
	if errCount := a.db.WithContext(ctx).Model(&models.Client{}).
		Where("expiry >= ?", now).
		Count(&stats.ActiveClients).Error; errCount != nil {
		return DashboardStats{}, fmt.Errorf("report: count active clients: %w", errCount)
	}

	expenses, errExpenses := a.sumExpenses(ctx, start, end)
	if errExpenses != nil {
		return DashboardStats{}, errExpenses
	}
	stats.MonthExpenses = expenses

	payments, errPayments := a.SuccessfulPayments(ctx, start, end)
	if errPayments != nil {
		return DashboardStats{}, errPayments
	}
	stats.MonthPayments = decimal.Zero
	for _, p := range payments {
		stats.MonthPayments = stats.MonthPayments.Add(p.Amount)
	}
	stats.MonthPaymentCount = len(payments)

	if errScan := a.db.WithContext(ctx).Model(&models.Plan{}).
		Select("plans.id AS plan_id, plans.name AS name, COUNT(clients.id) AS clients").
		Joins("LEFT JOIN clients ON clients.plan_id = plans.id").
		Group("plans.id, plans.name").
		Order("plans.id ASC").
		Scan(&stats.Plans).Error; errScan != nil {
		return DashboardStats{}, fmt.Errorf("report: count plan clients: %w", errScan)
	}
	return stats, nil
}

// SuccessfulPayments lists successful payments created in [start, end), oldest first.
func (a *Aggregator) SuccessfulPayments(ctx context.Context, start, end time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	if errFind := a.db.WithContext(ctx).
		Preload("Client").
		Preload("Plan").
		Where("status = ? AND created_at >= ? AND created_at < ?", models.PaymentStatusSuccess, start, end).
		Order("created_at ASC, id ASC").
		Find(&payments).Error; errFind != nil {
		return nil, fmt.Errorf("report: list payments: %w", errFind)
	}
	return payments, nil
}
