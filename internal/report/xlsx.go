package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"rentbook/internal/core"
)

// XLSXContentType is the media type of workbooks written by WriteXLSX.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Report"

// WriteXLSX writes the report as a single-sheet workbook: a label column
// and a value column, amounts as numbers.
func WriteXLSX(w io.Writer, rep core.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	rows := [][2]any{
		{rep.Settings.BusinessName, "Monthly statement"},
		{"Month", rep.Month.Label()},
		{"Property", rep.Property.Name},
		{"Tenant", rep.Property.Tenant},
		{"Rental date", rep.Property.RentalDate.String()},
		{"Payment day", int(rep.Property.PaymentDate)},
		{"Status", string(rep.Property.Status)},
		{},
		{"Currency", rep.Settings.Currency},
		{"Monthly rent", rep.Property.MonthlyRent.Float()},
		{"Electricity", rep.Expense.Electricity.Float()},
		{"Water", rep.Expense.Water.Float()},
		{"Other", rep.Expense.Other.Float()},
		{"Total expenses", rep.Total.Float()},
		{"Net", rep.Net.Float()},
		{},
		{"Issued", rep.IssuedAt.Format("2006-01-02")},
	}
	for i, row := range rows {
		if row[0] == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &[]any{row[0], row[1]}); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "B10", "B15", money); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A14", "B15", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "A", "A", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "B", "B", 24); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
