// Package memory is an in-process ReportWriter for tests and for running
// without Google credentials.
package memory

import (
	"context"
	"sync"

	"rentbook/internal/core"
	"rentbook/internal/sheets"
)

var _ sheets.ReportWriter = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	seen  map[sheets.ReportKey]struct{}
	items []core.Report
}

func New() *Store {
	return &Store{seen: map[sheets.ReportKey]struct{}{}}
}

// AppendReports stores the reports not seen before.
func (s *Store) AppendReports(_ context.Context, reports []core.Report) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, r := range reports {
		key := sheets.KeyOf(r)
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.items = append(s.items, r)
		added++
	}
	return added, nil
}

// Reports returns a copy of everything appended so far.
func (s *Store) Reports() []core.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Report(nil), s.items...)
}
