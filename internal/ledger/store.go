// Package ledger owns the properties, expenses and settings of one rental
// business and keeps them persisted in a blob store.
//
// Every mutation computes the next state, writes all three keys, and only
// then replaces the in-memory state. A write failure is returned and leaves
// the Store exactly as it was.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"rentbook/internal/blob"
	"rentbook/internal/core"
	"rentbook/internal/log"
	"rentbook/internal/metrics"
)

// Blob keys of the persisted layout.
const (
	KeyProperties = "properties"
	KeyExpenses   = "expenses"
	KeySettings   = "settings"
)

// ErrInvalidBackup wraps parse failures of an imported backup document.
var ErrInvalidBackup = errors.New("invalid backup document")

var allKeys = []string{KeyProperties, KeyExpenses, KeySettings}

type state struct {
	properties []core.Property
	expenses   []core.Expense
	settings   core.Settings
}

func (st state) clone() state {
	return state{
		properties: append([]core.Property{}, st.properties...),
		expenses:   append([]core.Expense{}, st.expenses...),
		settings:   st.settings,
	}
}

type Store struct {
	mu    sync.RWMutex
	blobs blob.Store
	state state

	propertyIDs idAllocator
	expenseIDs  idAllocator

	now      func() time.Time
	logger   *log.Logger
	notifier Notifier
	metrics  *metrics.Recorder
}

// New loads the Store from blobs. Missing, unreadable or unparseable keys
// fall back to empty collections and default settings.
func New(ctx context.Context, blobs blob.Store, opts ...Option) *Store {
	s := &Store{
		blobs:  blobs,
		now:    time.Now,
		logger: log.FromSlog(nil, log.ComponentLedger),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = s.load(ctx)
	s.propertyIDs.observe(maxPropertyID(s.state.properties))
	s.expenseIDs.observe(maxExpenseID(s.state.expenses))
	s.metrics.SetSizes(len(s.state.properties), len(s.state.expenses))
	s.logger.InfoContext(ctx, "Store loaded",
		log.FieldOperation, log.OpLoad,
		"properties", len(s.state.properties),
		"expenses", len(s.state.expenses))
	return s
}

func (s *Store) load(ctx context.Context) state {
	st := state{
		properties: []core.Property{},
		expenses:   []core.Expense{},
		settings:   core.DefaultSettings(),
	}
	var props []core.Property
	if s.readKey(ctx, KeyProperties, &props) && props != nil {
		st.properties = props
	}
	var exps []core.Expense
	if s.readKey(ctx, KeyExpenses, &exps) && exps != nil {
		st.expenses = exps
	}
	settings := core.DefaultSettings()
	if s.readKey(ctx, KeySettings, &settings) {
		st.settings = settings
	}
	return st
}

// readKey decodes key into dst and reports whether it succeeded.
func (s *Store) readKey(ctx context.Context, key string, dst any) bool {
	data, ok, err := s.blobs.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read key, using default", log.FieldKey, key, log.FieldError, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.WarnContext(ctx, "Failed to parse key, using default", log.FieldKey, key, log.FieldError, err)
		return false
	}
	return true
}

func (s *Store) persist(ctx context.Context, st state) error {
	values := map[string]any{
		KeyProperties: st.properties,
		KeyExpenses:   st.expenses,
		KeySettings:   st.settings,
	}
	for _, key := range allKeys {
		data, err := json.Marshal(values[key])
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if err := s.blobs.Put(ctx, key, data); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return nil
}

// commitLocked persists next and installs it. The caller holds s.mu.
func (s *Store) commitLocked(ctx context.Context, op string, next state) error {
	start := time.Now()
	err := s.persist(ctx, next)
	s.metrics.ObserveMutation(op, time.Since(start), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist state", log.FieldOperation, op, log.FieldError, err)
		return fmt.Errorf("%s: %w", op, err)
	}
	s.state = next
	s.metrics.SetSizes(len(next.properties), len(next.expenses))
	return nil
}

func (s *Store) notify(ctx context.Context, op string) {
	if s.notifier == nil {
		return
	}
	change := core.Change{
		Operation: op,
		Keys:      append([]string(nil), allKeys...),
		Timestamp: s.now().UTC(),
	}
	err := s.notifier.NotifyChange(ctx, change)
	s.metrics.ObserveNotification(err)
	if err != nil {
		s.logger.WarnContext(ctx, "Change notification failed", log.FieldOperation, op, log.FieldError, err)
	}
}

// AddProperty stores p under a fresh id and returns the stored record.
func (s *Store) AddProperty(ctx context.Context, p core.Property) (core.Property, error) {
	s.mu.Lock()
	next := s.state.clone()
	p.ID = s.propertyIDs.peek(s.now())
	next.properties = append(next.properties, p)
	err := s.commitLocked(ctx, log.OpAddProperty, next)
	if err == nil {
		s.propertyIDs.observe(p.ID)
	}
	s.mu.Unlock()
	if err != nil {
		return core.Property{}, err
	}
	s.notify(ctx, log.OpAddProperty)
	return p, nil
}

// UpdateProperty merges patch over the property with the given id. found is
// false when no such property exists; nothing is persisted in that case.
func (s *Store) UpdateProperty(ctx context.Context, id core.ID, patch core.PropertyPatch) (core.Property, bool, error) {
	s.mu.Lock()
	idx := indexOfProperty(s.state.properties, id)
	if idx < 0 {
		s.mu.Unlock()
		return core.Property{}, false, nil
	}
	next := s.state.clone()
	updated := patch.Apply(next.properties[idx])
	updated.ID = id
	next.properties[idx] = updated
	err := s.commitLocked(ctx, log.OpUpdateProperty, next)
	s.mu.Unlock()
	if err != nil {
		return core.Property{}, true, err
	}
	s.notify(ctx, log.OpUpdateProperty)
	return updated, true, nil
}

// DeleteProperty removes the property and every expense that references it.
// Deleting an unknown id still removes its orphaned expenses and persists.
func (s *Store) DeleteProperty(ctx context.Context, id core.ID) error {
	s.mu.Lock()
	next := s.state.clone()
	next.properties = next.properties[:0]
	for _, p := range s.state.properties {
		if p.ID != id {
			next.properties = append(next.properties, p)
		}
	}
	next.expenses = next.expenses[:0]
	for _, e := range s.state.expenses {
		if e.PropertyID != id {
			next.expenses = append(next.expenses, e)
		}
	}
	err := s.commitLocked(ctx, log.OpDeleteProperty, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(ctx, log.OpDeleteProperty)
	return nil
}

// Properties returns a copy of every property in insertion order.
func (s *Store) Properties() []core.Property {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Property{}, s.state.properties...)
}

func (s *Store) PropertyByID(id core.ID) (core.Property, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := indexOfProperty(s.state.properties, id); idx >= 0 {
		return s.state.properties[idx], true
	}
	return core.Property{}, false
}

// AddExpense stores e under a fresh id. The property reference is not
// checked.
func (s *Store) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	next := s.state.clone()
	e.ID = s.expenseIDs.peek(s.now())
	next.expenses = append(next.expenses, e)
	err := s.commitLocked(ctx, log.OpAddExpense, next)
	if err == nil {
		s.expenseIDs.observe(e.ID)
	}
	s.mu.Unlock()
	if err != nil {
		return core.Expense{}, err
	}
	s.notify(ctx, log.OpAddExpense)
	return e, nil
}

// Expenses returns every expense of propertyID recorded for month,
// duplicates included.
func (s *Store) Expenses(propertyID core.ID, month core.Month) []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Expense{}
	for _, e := range s.state.expenses {
		if e.PropertyID == propertyID && e.Month == month {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) AllExpenses() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Expense{}, s.state.expenses...)
}

// DeleteExpense removes the expense with the given id, if any, and persists.
func (s *Store) DeleteExpense(ctx context.Context, id core.ID) error {
	s.mu.Lock()
	next := s.state.clone()
	next.expenses = next.expenses[:0]
	for _, e := range s.state.expenses {
		if e.ID != id {
			next.expenses = append(next.expenses, e)
		}
	}
	err := s.commitLocked(ctx, log.OpDeleteExpense, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(ctx, log.OpDeleteExpense)
	return nil
}

// ExpenseRows joins every expense with the name of its property.
func (s *Store) ExpenseRows() []core.ExpenseRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make(map[core.ID]string, len(s.state.properties))
	for _, p := range s.state.properties {
		names[p.ID] = p.Name
	}
	rows := make([]core.ExpenseRow, 0, len(s.state.expenses))
	for _, e := range s.state.expenses {
		name, ok := names[e.PropertyID]
		if !ok {
			name = core.UnknownPropertyLabel
		}
		rows = append(rows, core.ExpenseRow{Expense: e, PropertyName: name, Resolved: ok, Amount: e.Total()})
	}
	return rows
}

// Statistics recomputes the dashboard figures for the current month.
func (s *Store) Statistics() core.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.ComputeStatistics(s.state.properties, s.state.expenses, core.MonthOf(s.now()))
}

func (s *Store) Settings() core.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.settings
}

// UpdateSettings overwrites the settings fields set in patch.
func (s *Store) UpdateSettings(ctx context.Context, patch core.SettingsPatch) (core.Settings, error) {
	s.mu.Lock()
	next := s.state.clone()
	next.settings = patch.Apply(next.settings)
	err := s.commitLocked(ctx, log.OpUpdateSettings, next)
	s.mu.Unlock()
	if err != nil {
		return core.Settings{}, err
	}
	s.notify(ctx, log.OpUpdateSettings)
	return next.settings, nil
}

// MonthlyReport builds the statement of one property for month, using the
// first expense recorded for that month or a zero expense when none exists.
func (s *Store) MonthlyReport(propertyID core.ID, month core.Month) (core.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := indexOfProperty(s.state.properties, propertyID)
	if idx < 0 {
		return core.Report{}, false
	}
	match := firstExpense(s.state.expenses, propertyID, month)
	return core.NewReport(s.state.properties[idx], month, match, s.state.settings, s.now()), true
}

// MonthlyReports builds the statement of every property for month, in
// property order.
func (s *Store) MonthlyReports(month core.Month) []core.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	reports := make([]core.Report, 0, len(s.state.properties))
	for _, p := range s.state.properties {
		match := firstExpense(s.state.expenses, p.ID, month)
		reports = append(reports, core.NewReport(p, month, match, s.state.settings, now))
	}
	return reports
}

// Export returns an independent snapshot of the whole dataset.
func (s *Store) Export() core.Backup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state.clone()
	return core.Backup{
		Properties: st.properties,
		Expenses:   st.expenses,
		Settings:   st.settings,
		ExportDate: s.now().UTC(),
	}
}

// Import replaces every collection present in payload. Records are taken as
// they are, without validation.
func (s *Store) Import(ctx context.Context, payload core.ImportPayload) error {
	s.mu.Lock()
	next := s.state.clone()
	if payload.Properties != nil {
		next.properties = append([]core.Property{}, (*payload.Properties)...)
	}
	if payload.Expenses != nil {
		next.expenses = append([]core.Expense{}, (*payload.Expenses)...)
	}
	if payload.Settings != nil {
		next.settings = *payload.Settings
	}
	err := s.commitLocked(ctx, log.OpImport, next)
	if err == nil {
		s.propertyIDs.observe(maxPropertyID(next.properties))
		s.expenseIDs.observe(maxExpenseID(next.expenses))
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Backup imported",
		"properties", len(next.properties),
		"expenses", len(next.expenses))
	s.notify(ctx, log.OpImport)
	return nil
}

// ImportJSON parses a backup document and imports it. The document is fully
// parsed before anything is replaced, so a malformed document changes
// nothing and returns an error wrapping ErrInvalidBackup.
func (s *Store) ImportJSON(ctx context.Context, data []byte) error {
	payload, err := DecodeBackup(data)
	if err != nil {
		return err
	}
	return s.Import(ctx, payload)
}

// DecodeBackup parses a backup document. A section that is not an array (or
// object, for settings) makes the document invalid. Records are decoded one
// by one and a record of the wrong shape is kept with whatever fields did
// decode, the zero value if none. A settings section is decoded over the
// default settings so missing fields keep their defaults.
func DecodeBackup(data []byte) (core.ImportPayload, error) {
	var doc struct {
		Properties *[]json.RawMessage `json:"properties"`
		Expenses   *[]json.RawMessage `json:"expenses"`
		Settings   json.RawMessage    `json:"settings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.ImportPayload{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	payload := core.ImportPayload{
		Properties: decodeRecords[core.Property](doc.Properties),
		Expenses:   decodeRecords[core.Expense](doc.Expenses),
	}
	if len(doc.Settings) > 0 && string(doc.Settings) != "null" {
		settings := core.DefaultSettings()
		if err := json.Unmarshal(doc.Settings, &settings); err != nil {
			return core.ImportPayload{}, fmt.Errorf("%w: settings: %v", ErrInvalidBackup, err)
		}
		payload.Settings = &settings
	}
	return payload, nil
}

// decodeRecords decodes each element on its own, ignoring type errors. A nil
// section stays nil.
func decodeRecords[T any](raw *[]json.RawMessage) *[]T {
	if raw == nil {
		return nil
	}
	out := make([]T, 0, len(*raw))
	for _, elem := range *raw {
		var rec T
		_ = json.Unmarshal(elem, &rec)
		out = append(out, rec)
	}
	return &out
}

// Clear empties both collections and restores the default settings.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	next := state{
		properties: []core.Property{},
		expenses:   []core.Expense{},
		settings:   core.DefaultSettings(),
	}
	err := s.commitLocked(ctx, log.OpClear, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "All data cleared")
	s.notify(ctx, log.OpClear)
	return nil
}

func indexOfProperty(ps []core.Property, id core.ID) int {
	for i, p := range ps {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func firstExpense(es []core.Expense, propertyID core.ID, month core.Month) *core.Expense {
	for i := range es {
		if es[i].PropertyID == propertyID && es[i].Month == month {
			e := es[i]
			return &e
		}
	}
	return nil
}
