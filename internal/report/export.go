package report

import (
	"fmt"
	"io"

	"github.com/fitflow/billing/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	paymentsSheet = "Payments"
	expiringSheet = "Expiring"
)

// WriteMonthlyWorkbook writes the report and the month's successful payments as an XLSX workbook.
func WriteMonthlyWorkbook(w io.Writer, r MonthlyReport, payments []models.Payment) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if errRename := f.SetSheetName("Sheet1", summarySheet); errRename != nil {
		return fmt.Errorf("report: rename sheet: %w", errRename)
	}
	summary := [][]any{
		{"Year", r.Year},
		{"Month", r.Month.String()},
		{"Total expenses", r.TotalExpenses.InexactFloat64()},
		{"Total earnings", r.TotalEarnings.InexactFloat64()},
		{"Net", r.TotalEarnings.Sub(r.TotalExpenses).InexactFloat64()},
		{"Expiring subscriptions", len(r.ExpiringSoon)},
	}
	for i, row := range summary {
		if errRow := setRow(f, summarySheet, i+1, row); errRow != nil {
			return errRow
		}
	}

	if _, errSheet := f.NewSheet(paymentsSheet); errSheet != nil {
		return fmt.Errorf("report: create sheet: %w", errSheet)
	}
	if errRow := setRow(f, paymentsSheet, 1, []any{"Date", "Client", "Plan", "Method", "Phone", "Receipt", "Amount"}); errRow != nil {
		return errRow
	}
	for i, p := range payments {
		receipt := ""
		if p.ProviderReceipt != nil {
			receipt = *p.ProviderReceipt
		}
		row := []any{
			p.CreatedAt.UTC().Format("2006-01-02 15:04"),
			p.Client.FullName(),
			p.Plan.Name,
			p.Method.String(),
			p.PhoneNumber,
			receipt,
			p.Amount.InexactFloat64(),
		}
		if errRow := setRow(f, paymentsSheet, i+2, row); errRow != nil {
			return errRow
		}
	}

	if _, errSheet := f.NewSheet(expiringSheet); errSheet != nil {
		return fmt.Errorf("report: create sheet: %w", errSheet)
	}
	if errRow := setRow(f, expiringSheet, 1, []any{"Client", "Email", "Phone", "Expiry"}); errRow != nil {
		return errRow
	}
	for i, c := range r.ExpiringSoon {
		expiry := ""
		if c.Expiry != nil {
			expiry = c.Expiry.UTC().Format("2006-01-02")
		}
		if errRow := setRow(f, expiringSheet, i+2, []any{c.FullName(), c.Email, c.Phone, expiry}); errRow != nil {
			return errRow
		}
	}

	if errWrite := f.Write(w); errWrite != nil {
		return fmt.Errorf("report: write workbook: %w", errWrite)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, errCell := excelize.CoordinatesToCellName(col+1, row)
		if errCell != nil {
			return fmt.Errorf("report: cell name: %w", errCell)
		}
		if errSet := f.SetCellValue(sheet, cell, v); errSet != nil {
			return fmt.Errorf("report: set %s!%s: %w", sheet, cell, errSet)
		}
	}
	return nil
}
