package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	StatusRented PropertyStatus = "rented"
	StatusVacant PropertyStatus = "vacant"
)

const (
	DefaultCurrency     = "UM"
	DefaultBusinessName = "Mi Negocio"

	// UnknownPropertyLabel names the property of an expense whose reference
	// no longer resolves.
	UnknownPropertyLabel = "Unknown property"

	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

type (
	// ID identifies a record within its own collection.
	ID int64

	// PropertyStatus is the occupancy of a property.
	PropertyStatus string

	// Date is a calendar date without time of day.
	Date struct {
		time.Time
	}

	// Month is a calendar month in the form YYYY-MM.
	Month string

	// DayOfMonth is the day (1-31) on which rent is due.
	DayOfMonth int

	Property struct {
		ID          ID             `json:"id"`
		Name        string         `json:"name"`
		Tenant      string         `json:"tenant"`
		MonthlyRent Money          `json:"monthlyRent"`
		RentalDate  Date           `json:"rentalDate"`
		PaymentDate DayOfMonth     `json:"paymentDate"`
		Status      PropertyStatus `json:"status"`
		Notes       string         `json:"notes,omitempty"`
	}

	// PropertyPatch carries a partial update; nil fields are left untouched.
	PropertyPatch struct {
		Name        *string         `json:"name,omitempty"`
		Tenant      *string         `json:"tenant,omitempty"`
		MonthlyRent *Money          `json:"monthlyRent,omitempty"`
		RentalDate  *Date           `json:"rentalDate,omitempty"`
		PaymentDate *DayOfMonth     `json:"paymentDate,omitempty"`
		Status      *PropertyStatus `json:"status,omitempty"`
		Notes       *string         `json:"notes,omitempty"`
	}

	Expense struct {
		ID          ID    `json:"id"`
		PropertyID  ID    `json:"propertyId"`
		Month       Month `json:"month"`
		Electricity Money `json:"electricity"`
		Water       Money `json:"water"`
		Other       Money `json:"other"`
	}

	Settings struct {
		Currency     string `json:"currency"`
		BusinessName string `json:"businessName"`
	}

	SettingsPatch struct {
		Currency     *string `json:"currency,omitempty"`
		BusinessName *string `json:"businessName,omitempty"`
	}
)

var (
	ErrEmptyName       = errors.New("empty property name")
	ErrEmptyTenant     = errors.New("empty tenant")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidDay      = errors.New("invalid payment day")
	ErrInvalidStatus   = errors.New("invalid property status")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidProperty = errors.New("invalid property reference")
	ErrEmptyCurrency   = errors.New("empty currency")
)

// DefaultSettings returns the built-in display settings.
func DefaultSettings() Settings {
	return Settings{Currency: DefaultCurrency, BusinessName: DefaultBusinessName}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String returns the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts YYYY-MM-DD and RFC 3339 strings. Unparseable values
// decode to the zero date.
func (d *Date) UnmarshalJSON(data []byte) error {
	d.Time = time.Time{}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
	} else if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t.UTC()
	}
	return nil
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month(t.Format(monthLayout))
}

// ParseMonth validates a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", ErrInvalidMonth
	}
	return Month(s), nil
}

// Validate checks the YYYY-MM form.
func (m Month) Validate() error {
	_, err := ParseMonth(string(m))
	return err
}

// Label renders the month for humans, e.g. "March 2024". Invalid months are
// returned verbatim.
func (m Month) Label() string {
	t, err := time.Parse(monthLayout, string(m))
	if err != nil {
		return string(m)
	}
	return t.Format("January 2006")
}

// UnmarshalJSON accepts a number or a numeric string; anything else is 0.
func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ID(lenientInt(data))
	return nil
}

// UnmarshalJSON accepts a number or a numeric string; anything else is 0.
func (d *DayOfMonth) UnmarshalJSON(data []byte) error {
	*d = DayOfMonth(lenientInt(data))
	return nil
}

func lenientInt(data []byte) int64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0
		}
		raw = strings.TrimSpace(s)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && inInt64Range(f) {
		return int64(f)
	}
	return 0
}

// Valid reports whether s is a known status.
func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusRented, StatusVacant:
		return true
	default:
		return false
	}
}

func (p Property) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > 200 {
		return errors.New("property name too long (max 200 characters)")
	}
	if strings.TrimSpace(p.Tenant) == "" {
		return ErrEmptyTenant
	}
	if p.MonthlyRent.IsNegative() {
		return ErrInvalidAmount
	}
	if p.RentalDate.IsZero() {
		return ErrInvalidDate
	}
	if p.PaymentDate < 1 || p.PaymentDate > 31 {
		return ErrInvalidDay
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// IsRented reports whether the property currently produces income.
func (p Property) IsRented() bool {
	return p.Status == StatusRented
}

// Apply returns p with every non-nil patch field written over it. The id is
// never touched.
func (pp PropertyPatch) Apply(p Property) Property {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Tenant != nil {
		p.Tenant = *pp.Tenant
	}
	if pp.MonthlyRent != nil {
		p.MonthlyRent = *pp.MonthlyRent
	}
	if pp.RentalDate != nil {
		p.RentalDate = *pp.RentalDate
	}
	if pp.PaymentDate != nil {
		p.PaymentDate = *pp.PaymentDate
	}
	if pp.Status != nil {
		p.Status = *pp.Status
	}
	if pp.Notes != nil {
		p.Notes = *pp.Notes
	}
	return p
}

func (e Expense) Validate() error {
	if e.PropertyID <= 0 {
		return ErrInvalidProperty
	}
	if err := e.Month.Validate(); err != nil {
		return err
	}
	if e.Electricity.IsNegative() || e.Water.IsNegative() || e.Other.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Total is the sum of every expense component.
func (e Expense) Total() Money {
	return e.Electricity.Add(e.Water).Add(e.Other)
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.Currency) == "" {
		return ErrEmptyCurrency
	}
	if len(s.Currency) > 10 {
		return errors.New("currency label too long (max 10 characters)")
	}
	if len(s.BusinessName) > 200 {
		return errors.New("business name too long (max 200 characters)")
	}
	return nil
}

// Apply returns s with every non-nil patch field written over it.
func (sp SettingsPatch) Apply(s Settings) Settings {
	if sp.Currency != nil {
		s.Currency = *sp.Currency
	}
	if sp.BusinessName != nil {
		s.BusinessName = *sp.BusinessName
	}
	return s
}
