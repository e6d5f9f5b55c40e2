package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// BuildStatementPDF renders a minimal PDF for an owner statement payout.
func BuildStatementPDF(stmt *payouts.Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Owner Statement Payout")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Statement: %s", stmt.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Owner: %s", stmt.OwnerName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Property: %s", stmt.PropertyName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s", stmt.Period()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", stmt.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Payout Status: %s", stmt.PayoutStatus))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Line", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	rows := []struct {
		label  string
		amount float64
	}{
		{"Owner Payout", stmt.OwnerPayout},
		{"Processing Fee", stmt.StripeFee},
		{"Total Moved", stmt.TotalTransferAmount},
	}
	for _, row := range rows {
		pdf.CellFormat(70, 6, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.2f %s", row.amount, stmt.Currency), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	if stmt.PayoutTransferID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Transfer: %s", stmt.PayoutTransferID))
		pdf.Ln(5)
	}
	if !stmt.PaidAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Settled: %s", stmt.PaidAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	if stmt.PayoutError != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Last Error: %s", stmt.PayoutError))
		pdf.Ln(5)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatementXLSX renders a minimal XLSX for an owner statement payout.
func BuildStatementXLSX(stmt *payouts.Statement) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "payout"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Owner Statement Payout")
	_ = f.SetCellValue(sheet, "A3", "Statement")
	_ = f.SetCellValue(sheet, "B3", stmt.ID)
	_ = f.SetCellValue(sheet, "A4", "Owner")
	_ = f.SetCellValue(sheet, "B4", stmt.OwnerName)
	_ = f.SetCellValue(sheet, "A5", "Property")
	_ = f.SetCellValue(sheet, "B5", stmt.PropertyName)
	_ = f.SetCellValue(sheet, "A6", "Period")
	_ = f.SetCellValue(sheet, "B6", stmt.Period())
	_ = f.SetCellValue(sheet, "A7", "Status")
	_ = f.SetCellValue(sheet, "B7", stmt.Status)
	_ = f.SetCellValue(sheet, "A8", "Payout Status")
	_ = f.SetCellValue(sheet, "B8", stmt.PayoutStatus)
	_ = f.SetCellValue(sheet, "A9", "Owner Payout")
	_ = f.SetCellValue(sheet, "B9", stmt.OwnerPayout)
	_ = f.SetCellValue(sheet, "A10", "Processing Fee")
	_ = f.SetCellValue(sheet, "B10", stmt.StripeFee)
	_ = f.SetCellValue(sheet, "A11", "Total Moved")
	_ = f.SetCellValue(sheet, "B11", stmt.TotalTransferAmount)
	_ = f.SetCellValue(sheet, "A12", "Currency")
	_ = f.SetCellValue(sheet, "B12", stmt.Currency)
	_ = f.SetCellValue(sheet, "A13", "Transfer")
	_ = f.SetCellValue(sheet, "B13", stmt.PayoutTransferID)
	if !stmt.PaidAt.IsZero() {
		_ = f.SetCellValue(sheet, "A14", "Settled")
		_ = f.SetCellValue(sheet, "B14", stmt.PaidAt.Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
