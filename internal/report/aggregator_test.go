package report

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dbutil "github.com/fitflow/billing/internal/db"
	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupReportDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := dbutil.Open(dbutil.BuildSQLiteDSN(filepath.Join(t.TempDir(), "report.db")))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := dbutil.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func planByName(t *testing.T, conn *gorm.DB, name string) models.Plan {
	t.Helper()
	var plan models.Plan
	if err := conn.Where("name = ?", name).Take(&plan).Error; err != nil {
		t.Fatalf("load plan %s: %v", name, err)
	}
	return plan
}

func addClient(t *testing.T, conn *gorm.DB, email string, plan *models.Plan, expiry *time.Time, lastAmount *decimal.Decimal) models.Client {
	t.Helper()
	client := models.Client{
		FirstName: "Client",
		LastName:  email,
		Email:     email,
		Phone:     "07" + email[:8],
		Expiry:    expiry,
	}
	if plan != nil {
		client.PlanID = &plan.ID
	}
	if lastAmount != nil {
		client.LastPaymentAmount = decimal.NullDecimal{Decimal: *lastAmount, Valid: true}
	}
	if err := conn.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}

func addExpense(t *testing.T, conn *gorm.DB, name string, cost int64, at time.Time) {
	t.Helper()
	if err := conn.Create(&models.Expense{Name: name, Cost: decimal.NewFromInt(cost), CreatedAt: at}).Error; err != nil {
		t.Fatalf("create expense: %v", err)
	}
}

func seedFebruary(t *testing.T, conn *gorm.DB) {
	t.Helper()
	monthly := planByName(t, conn, "Monthly")
	quarterly := planByName(t, conn, "Quarterly")

	feb10 := day(2024, 2, 10)
	feb29 := time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)
	mar01 := day(2024, 3, 1)
	jan31 := time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)
	paid := decimal.NewFromInt(2500)

	addClient(t, conn, "aaaaaaaa@example.com", &monthly, &feb10, &paid)
	addClient(t, conn, "bbbbbbbb@example.com", &quarterly, &feb29, nil)
	addClient(t, conn, "cccccccc@example.com", &monthly, &mar01, &paid)
	addClient(t, conn, "dddddddd@example.com", &monthly, &jan31, &paid)
	addClient(t, conn, "eeeeeeee@example.com", nil, nil, nil)

	addExpense(t, conn, "Rent", 10000, day(2024, 2, 1))
	addExpense(t, conn, "Water", 500, time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC))
	addExpense(t, conn, "January power", 700, time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC))
	addExpense(t, conn, "March power", 800, day(2024, 3, 1))
}

func TestMonthlyReport_February(t *testing.T) {
	conn := setupReportDB(t)
	seedFebruary(t, conn)
	agg := NewAggregator(conn, nil)

	r, err := agg.MonthlyReport(context.Background(), 2024, time.February)
	if err != nil {
		t.Fatalf("monthly report: %v", err)
	}
	if !r.TotalExpenses.Equal(decimal.NewFromInt(10500)) {
		t.Fatalf("expected expenses 10500, got %s", r.TotalExpenses)
	}
	// 2500 from the last payment plus the Quarterly price for the client without one.
	if !r.TotalEarnings.Equal(decimal.NewFromInt(10500)) {
		t.Fatalf("expected earnings 10500, got %s", r.TotalEarnings)
	}
	if len(r.ExpiringSoon) != 2 {
		t.Fatalf("expected 2 expiring clients, got %d", len(r.ExpiringSoon))
	}
	if r.ExpiringSoon[0].Email != "aaaaaaaa@example.com" || r.ExpiringSoon[1].Email != "bbbbbbbb@example.com" {
		t.Fatalf("unexpected expiring order: %s, %s", r.ExpiringSoon[0].Email, r.ExpiringSoon[1].Email)
	}

	if _, err := agg.MonthlyReport(context.Background(), 2024, 13); err == nil {
		t.Fatalf("expected invalid month error")
	}
}

func TestSendMonthlyReport_ActiveAdminsOnly(t *testing.T) {
	conn := setupReportDB(t)
	seedFebruary(t, conn)
	admins := []models.Admin{
		{Name: "Owner", Email: "owner@example.com", Active: true},
		{Name: "Former", Email: "former@example.com", Active: true},
	}
	if err := conn.Create(&admins).Error; err != nil {
		t.Fatalf("create admins: %v", err)
	}
	if err := conn.Model(&models.Admin{}).Where("email = ?", "former@example.com").Update("active", false).Error; err != nil {
		t.Fatalf("deactivate admin: %v", err)
	}

	rec := &notify.Recorder{}
	agg := NewAggregator(conn, rec)
	agg.now = func() time.Time { return time.Date(2024, 2, 1, 6, 0, 0, 0, time.UTC) }

	if err := agg.SendMonthlyReport(context.Background()); err != nil {
		t.Fatalf("send report: %v", err)
	}
	msgs := rec.Messages()
	if len(msgs) != 1 || msgs[0].Recipient != "owner@example.com" {
		t.Fatalf("expected one report to owner, got %+v", msgs)
	}
	if msgs[0].Subject != "Monthly Report - February 2024" {
		t.Fatalf("unexpected subject %q", msgs[0].Subject)
	}
	if !strings.Contains(msgs[0].Body, "Total expenses: KES 10500.00") || !strings.Contains(msgs[0].Body, "aaaaaaaa@example.com") {
		t.Fatalf("unexpected body %q", msgs[0].Body)
	}
}

func TestExpirySweep_NotifiesWithoutStatusChange(t *testing.T) {
	conn := setupReportDB(t)
	monthly := planByName(t, conn, "Monthly")
	today := time.Date(2024, 2, 10, 23, 30, 0, 0, time.UTC)
	yesterday := day(2024, 2, 9)
	tomorrow := day(2024, 2, 11)

	expired := addClient(t, conn, "expired1@example.com", &monthly, &yesterday, nil)
	if err := conn.Model(&models.Client{}).Where("id = ?", expired.ID).Update("status", models.ClientStatusActive).Error; err != nil {
		t.Fatalf("set status: %v", err)
	}
	addClient(t, conn, "expiring@example.com", &monthly, &today, nil)
	addClient(t, conn, "renewed1@example.com", &monthly, &tomorrow, nil)
	addClient(t, conn, "noexpiry@example.com", nil, nil, nil)

	rec := &notify.Recorder{}
	agg := NewAggregator(conn, rec)
	agg.now = func() time.Time { return day(2024, 2, 10).Add(time.Hour) }

	notified, err := agg.ExpirySweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if notified != 2 {
		t.Fatalf("expected 2 notifications, got %d", notified)
	}
	for _, m := range rec.Messages() {
		if m.Recipient == "renewed1@example.com" || m.Recipient == "noexpiry@example.com" {
			t.Fatalf("unexpected recipient %s", m.Recipient)
		}
	}
	var after models.Client
	if err := conn.Take(&after, expired.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.Status != models.ClientStatusActive {
		t.Fatalf("expected status to be left untouched, got %s", after.Status)
	}
}

func TestDashboardAndWorkbook(t *testing.T) {
	conn := setupReportDB(t)
	seedFebruary(t, conn)
	monthly := planByName(t, conn, "Monthly")

	var client models.Client
	if err := conn.Where("email = ?", "aaaaaaaa@example.com").Take(&client).Error; err != nil {
		t.Fatalf("load client: %v", err)
	}
	receipt := "NLJ7RT61SV"
	payments := []models.Payment{
		{ClientID: client.ID, PlanID: monthly.ID, Amount: decimal.NewFromInt(3000), Method: models.PaymentMethodMobileMoney, PhoneNumber: "254700000000", ProviderReceipt: &receipt, Status: models.PaymentStatusSuccess, CreatedAt: day(2024, 2, 3)},
		{ClientID: client.ID, PlanID: monthly.ID, Amount: decimal.NewFromInt(3000), Method: models.PaymentMethodCash, PhoneNumber: "0700000000", Status: models.PaymentStatusFailed, CreatedAt: day(2024, 2, 4)},
		{ClientID: client.ID, PlanID: monthly.ID, Amount: decimal.NewFromInt(2000), Method: models.PaymentMethodCash, PhoneNumber: "0700000000", Status: models.PaymentStatusSuccess, CreatedAt: day(2024, 1, 4)},
	}
	if err := conn.Create(&payments).Error; err != nil {
		t.Fatalf("create payments: %v", err)
	}

	agg := NewAggregator(conn, nil)
	agg.now = func() time.Time { return day(2024, 2, 15) }

	stats, err := agg.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.Clients != 5 || stats.ActiveClients != 2 {
		t.Fatalf("unexpected client counts %+v", stats)
	}
	if !stats.MonthPayments.Equal(decimal.NewFromInt(3000)) || stats.MonthPaymentCount != 1 {
		t.Fatalf("unexpected month payments %s (%d)", stats.MonthPayments, stats.MonthPaymentCount)
	}
	if !stats.MonthExpenses.Equal(decimal.NewFromInt(10500)) {
		t.Fatalf("unexpected month expenses %s", stats.MonthExpenses)
	}
	if len(stats.Plans) != 3 || stats.Plans[0].Name != "Monthly" || stats.Plans[0].Clients != 3 {
		t.Fatalf("unexpected plan counts %+v", stats.Plans)
	}

	r, err := agg.MonthlyReport(context.Background(), 2024, time.February)
	if err != nil {
		t.Fatalf("monthly report: %v", err)
	}
	start, end := MonthRange(2024, time.February)
	monthPayments, err := agg.SuccessfulPayments(context.Background(), start, end)
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteMonthlyWorkbook(&buf, r, monthPayments); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue(summarySheet, "B4"); v != "10500" {
		t.Fatalf("expected earnings cell 10500, got %q", v)
	}
	if v, _ := f.GetCellValue(paymentsSheet, "F2"); v != receipt {
		t.Fatalf("expected receipt in payments sheet, got %q", v)
	}
	if v, _ := f.GetCellValue(paymentsSheet, "A3"); v != "" {
		t.Fatalf("expected a single payment row, got %q", v)
	}
	if v, _ := f.GetCellValue(expiringSheet, "B3"); v != "bbbbbbbb@example.com" {
		t.Fatalf("unexpected expiring row %q", v)
	}
}
