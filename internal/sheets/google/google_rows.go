package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rentbook/internal/core"
	ports "rentbook/internal/sheets"
)

var headers = []string{
	"Month", "Property ID", "Property", "Tenant", "Rent",
	"Electricity", "Water", "Other", "Expenses", "Net", "Currency", "Issued",
}

const (
	colMonth      = 0
	colPropertyID = 1
)

func headerRow() []any {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

// reportRow renders r in the column order of headers. Amounts are plain
// numbers so the sheet can sum them.
func reportRow(r core.Report) []any {
	return []any{
		string(r.Month),
		strconv.FormatInt(int64(r.Property.ID), 10),
		r.Property.Name,
		r.Property.Tenant,
		r.Property.MonthlyRent.Float(),
		r.Expense.Electricity.Float(),
		r.Expense.Water.Float(),
		r.Expense.Other.Float(),
		r.Total.Float(),
		r.Net.Float(),
		r.Settings.Currency,
		r.IssuedAt.UTC().Format(time.RFC3339),
	}
}

// publishedKeys collects the (property, month) pairs present in a values
// matrix as returned by the Sheets API. Rows that do not parse, including
// the header, are ignored.
func publishedKeys(values [][]any) map[ports.ReportKey]struct{} {
	keys := map[ports.ReportKey]struct{}{}
	for _, raw := range values {
		row := toStrings(raw)
		month, err := core.ParseMonth(safeGet(row, colMonth))
		if err != nil {
			continue
		}
		id, err := strconv.ParseInt(safeGet(row, colPropertyID), 10, 64)
		if err != nil {
			continue
		}
		keys[ports.ReportKey{PropertyID: core.ID(id), Month: month}] = struct{}{}
	}
	return keys
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(row []string, idx int) string {
	if idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}
