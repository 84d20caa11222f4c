// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Persisted and exported documents carry
// them as plain decimal numbers, and decoding is lenient so that hand-edited
// or foreign backups degrade to zero instead of failing the whole import.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Money is an amount expressed in cents.
type Money struct {
	Cents int64
}

// ParseAmount converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Zero is a
// valid amount (an expense component that did not occur); negative values and
// malformed input return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
//	ParseAmount("0")      -> 0 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	cents, ok := parseCents(s)
	if !ok {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// parseCents parses an unsigned decimal string into cents, rounding half-up
// on the third fractional digit.
func parseCents(s string) (int64, bool) {
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, false
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, false
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, false
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64-1 {
		return 0, false
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, true
}

// Add returns the sum of m and o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m minus o.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Cents < 0
}

// Float returns the amount in whole units for display and spreadsheets.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two decimals, e.g. "1234.50".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + twoDigits(cents%100)
}

// Format prefixes the amount with a currency label, e.g. "UM 1234.50".
func (m Money) Format(currency string) string {
	if currency == "" {
		return m.String()
	}
	return currency + " " + m.String()
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// MarshalJSON writes the amount as a decimal number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Float(), 'f', -1, 64)), nil
}

// ParseAmountJSON is the strict counterpart of UnmarshalJSON for user input:
// a JSON number or numeric string parsed by ParseAmount. null means zero.
func ParseAmountJSON(data []byte) (Money, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Money{}, nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Money{}, ErrInvalidAmount
		}
		raw = s
	}
	return ParseAmount(raw)
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else
// decodes to zero rather than failing.
func (m *Money) UnmarshalJSON(data []byte) error {
	m.Cents = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	}
	m.Cents = lenientCents(raw)
	return nil
}

func lenientCents(raw string) int64 {
	neg := strings.HasPrefix(raw, "-")
	unsigned := strings.TrimPrefix(strings.TrimPrefix(raw, "-"), "+")
	if cents, ok := parseCents(unsigned); ok {
		if neg {
			return -cents
		}
		return cents
	}
	// Exponent notation and other float spellings
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	cents := math.Round(f * 100)
	if !inInt64Range(cents) {
		return 0
	}
	return int64(cents)
}

// inInt64Range reports whether f converts to int64 without overflow. NaN is
// out of range.
func inInt64Range(f float64) bool {
	return f > -(1<<63) && f < 1<<63
}
