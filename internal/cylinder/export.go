package cylinder

import (
	"bytes"
	"fmt"

	"cylinder-backend/internal/config"
	"cylinder-backend/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "summary"
	rowsSheet    = "ledger"
	formatXLSX   = "xlsx"
)

var rowHeaders = []string{
	"Date", "Customer", "Cylinder", "Unit Price", "Quantity", "Amount", "Delivered By",
	"Received Cylinders", "Remaining Cylinders", "Payment", "Payment Type", "Received By",
	"Grand Total", "Remaining Amount", "Verified",
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// BuildLedgerXLSX renders the full report: one summary sheet and every balanced row.
func BuildLedgerXLSX(r Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(rowsSheet); err != nil {
		return nil, err
	}

	s := r.Summary
	summary := [][2]any{
		{"Cylinder Ledger", ""},
		{"Customer ID", r.CustomerID},
		{"Month", r.Period.Month},
		{"Year", r.Period.Year},
		{"Delivered Transactions", s.DeliveredTransactions},
		{"Received Transactions", s.ReceivedTransactions},
		{"Total Quantity", s.TotalQuantity},
		{"Total Received Quantity", s.TotalReceivedQuantity},
		{"Total Amount", s.TotalAmount.InexactFloat64()},
		{"Total Payment Amount", s.TotalPaymentAmount.InexactFloat64()},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(summarySheet, cell(1, i+1), kv[0])
		_ = f.SetCellValue(summarySheet, cell(2, i+1), kv[1])
	}

	for i, h := range rowHeaders {
		_ = f.SetCellValue(rowsSheet, cell(i+1, 1), h)
	}
	for i, row := range r.Rows {
		n := i + 2
		date := ""
		if row.DeliveryDate != nil {
			date = *row.DeliveryDate
		}
		label := ""
		if row.CylinderLabel != nil {
			label = *row.CylinderLabel
		}
		values := []any{
			date, row.CustomerName, label, row.UnitPrice.InexactFloat64(), row.Quantity,
			row.Amount.InexactFloat64(), row.DeliveredBy, row.ReceivedCylinders, "",
			row.PaymentAmount.InexactFloat64(), row.PaymentType, row.PaymentReceivedBy,
			"", row.RemainingAmount, row.Verified,
		}
		if row.RemainingCylinders != nil {
			values[8] = *row.RemainingCylinders
		}
		if row.Cumulative != nil {
			values[12] = row.Cumulative.InexactFloat64()
		}
		for col, v := range values {
			_ = f.SetCellValue(rowsSheet, cell(col+1, n), v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GET /api/ledger/export?customer_id=1&month=ALL&year=2024
func ExportLedgerHandler(svc *LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, period, err := ledgerQuery(c)
		if err != nil {
			return err
		}

		report, err := svc.Report(c.UserContext(), customerID, period)
		if err != nil {
			metrics.IncLedgerExport(formatXLSX, metrics.ResultError)
			return reportError("ExportLedgerHandler", customerID, err)
		}

		data, err := BuildLedgerXLSX(report)
		if err != nil {
			metrics.IncLedgerExport(formatXLSX, metrics.ResultError)
			config.LogError("cylinder", "ExportLedgerHandler", "render xlsx", customerID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "ledger could not be exported")
		}
		metrics.IncLedgerExport(formatXLSX, metrics.ResultSuccess)

		filename := fmt.Sprintf("ledger-%d-%s-%s.xlsx", customerID, report.Period.Year, report.Period.Month)
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
		return c.Send(data)
	}
}
