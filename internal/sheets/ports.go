package sheets

import (
	"context"

	"rentbook/internal/core"
)

// ReportWriter is the outbound port for publishing monthly reports.
type ReportWriter interface {
	// AppendReports writes the reports whose (property, month) pair is not
	// published yet and returns how many rows were added.
	AppendReports(ctx context.Context, reports []core.Report) (int, error)
}

// ReportKey identifies one published row.
type ReportKey struct {
	PropertyID core.ID
	Month      core.Month
}

// KeyOf returns the key of r.
func KeyOf(r core.Report) ReportKey {
	return ReportKey{PropertyID: r.Property.ID, Month: r.Month}
}
