package core

import (
	"time"
)

// Statistics is a point-in-time summary of the whole portfolio.
type Statistics struct {
	TotalProperties  int   `json:"totalProperties"`
	RentedProperties int   `json:"rentedProperties"`
	VacantProperties int   `json:"vacantProperties"`
	MonthlyIncome    Money `json:"monthlyIncome"`
	MonthlyExpenses  Money `json:"monthlyExpenses"`
	NetProfit        Money `json:"netProfit"`
	// Month is the calendar month MonthlyExpenses was computed for.
	Month Month `json:"month"`
}

// ComputeStatistics derives the dashboard figures. Only rented properties
// contribute income, and only expenses recorded for month count as costs.
func ComputeStatistics(properties []Property, expenses []Expense, month Month) Statistics {
	st := Statistics{TotalProperties: len(properties), Month: month}
	for _, p := range properties {
		if p.IsRented() {
			st.RentedProperties++
			st.MonthlyIncome = st.MonthlyIncome.Add(p.MonthlyRent)
		}
	}
	st.VacantProperties = st.TotalProperties - st.RentedProperties
	for _, e := range expenses {
		if e.Month == month {
			st.MonthlyExpenses = st.MonthlyExpenses.Add(e.Total())
		}
	}
	st.NetProfit = st.MonthlyIncome.Sub(st.MonthlyExpenses)
	return st
}

// Report is the printable monthly statement of one property.
type Report struct {
	Property Property `json:"property"`
	Month    Month    `json:"month"`
	// Expense is the recorded expense for the month, or a zero-valued one
	// when HasExpense is false.
	Expense    Expense   `json:"expense"`
	HasExpense bool      `json:"hasExpense"`
	Settings   Settings  `json:"settings"`
	Total      Money     `json:"expenseTotal"`
	Net        Money     `json:"net"`
	IssuedAt   time.Time `json:"issuedAt"`
}

// NewReport assembles a report. A nil expense yields the zero default.
func NewReport(p Property, month Month, e *Expense, s Settings, issuedAt time.Time) Report {
	r := Report{
		Property: p,
		Month:    month,
		Expense:  Expense{PropertyID: p.ID, Month: month},
		Settings: s,
		IssuedAt: issuedAt,
	}
	if e != nil {
		r.Expense = *e
		r.HasExpense = true
	}
	r.Total = r.Expense.Total()
	r.Net = p.MonthlyRent.Sub(r.Total)
	return r
}

// ExpenseRow is an expense joined with the name of its property.
type ExpenseRow struct {
	Expense
	PropertyName string `json:"propertyName"`
	// Resolved is false when the property reference is dangling.
	Resolved bool  `json:"resolved"`
	Amount   Money `json:"total"`
}

// Change describes one persisted mutation.
type Change struct {
	Operation string    `json:"operation"`
	Keys      []string  `json:"keys"`
	Timestamp time.Time `json:"timestamp"`
}
