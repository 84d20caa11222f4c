// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: JSON bodies, path ids and month parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"rentbook/internal/core"
)

const (
	// maxJSONBody bounds ordinary API request bodies.
	maxJSONBody = 1 << 20
	// maxImportBody bounds uploaded backup documents.
	maxImportBody = 32 << 20
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
	errInvalidID    = errors.New("invalid id")
)

// decodeJSON reads a single JSON document from the request body into dst.
// Money decodes leniently, so every top-level amountFields member present in
// the body is also checked with core.ParseAmountJSON; a bad amount returns an
// error wrapping core.ErrInvalidAmount.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, amountFields ...string) error {
	body, err := readBody(w, r, maxJSONBody)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if len(amountFields) == 0 {
		return nil
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	for _, field := range amountFields {
		raw, ok := members[field]
		if !ok {
			continue
		}
		if _, err := core.ParseAmountJSON(raw); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}

var (
	propertyAmountFields = []string{"monthlyRent"}
	expenseAmountFields  = []string{"electricity", "water", "other"}
)

// readBody reads the whole request body, failing past limit bytes.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// parseID parses a positive id from a path or query value.
func parseID(raw string) (core.ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, errInvalidID
	}
	return core.ID(n), nil
}

// pathID extracts the named id wildcard of the matched route.
func pathID(r *http.Request, name string) (core.ID, error) {
	return parseID(r.PathValue(name))
}

// pathMonth extracts and validates the named YYYY-MM wildcard.
func pathMonth(r *http.Request, name string) (core.Month, error) {
	return core.ParseMonth(r.PathValue(name))
}

// expenseFilter holds the optional propertyId/month query filter.
type expenseFilter struct {
	PropertyID core.ID
	Month      core.Month
	Set        bool
}

// parseExpenseFilter reads propertyId and month from the query. They must be
// given together or not at all.
func parseExpenseFilter(r *http.Request) (expenseFilter, error) {
	q := r.URL.Query()
	rawID := strings.TrimSpace(q.Get("propertyId"))
	rawMonth := strings.TrimSpace(q.Get("month"))
	if rawID == "" && rawMonth == "" {
		return expenseFilter{}, nil
	}
	if rawID == "" || rawMonth == "" {
		return expenseFilter{}, errors.New("propertyId and month must be given together")
	}
	id, err := parseID(rawID)
	if err != nil {
		return expenseFilter{}, fmt.Errorf("propertyId: %w", err)
	}
	month, err := core.ParseMonth(rawMonth)
	if err != nil {
		return expenseFilter{}, err
	}
	return expenseFilter{PropertyID: id, Month: month, Set: true}, nil
}

// sanitizeProperty cleans the free-text fields of a property.
func sanitizeProperty(p core.Property) core.Property {
	p.Name = sanitizeInput(p.Name)
	p.Tenant = sanitizeInput(p.Tenant)
	p.Notes = sanitizeInput(p.Notes)
	p.Status = core.PropertyStatus(strings.ToLower(sanitizeInput(string(p.Status))))
	return p
}

// sanitizePatch cleans the free-text fields present in a patch.
func sanitizePatch(pp core.PropertyPatch) core.PropertyPatch {
	clean := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := sanitizeInput(*s)
		return &v
	}
	pp.Name = clean(pp.Name)
	pp.Tenant = clean(pp.Tenant)
	pp.Notes = clean(pp.Notes)
	if pp.Status != nil {
		st := core.PropertyStatus(strings.ToLower(sanitizeInput(string(*pp.Status))))
		pp.Status = &st
	}
	return pp
}

// sanitizeSettings cleans the fields present in a settings patch.
func sanitizeSettings(sp core.SettingsPatch) core.SettingsPatch {
	if sp.Currency != nil {
		v := sanitizeInput(*sp.Currency)
		sp.Currency = &v
	}
	if sp.BusinessName != nil {
		v := sanitizeInput(*sp.BusinessName)
		sp.BusinessName = &v
	}
	return sp
}
