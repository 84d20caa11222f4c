package ledger

import (
	"context"
	"time"

	"rentbook/internal/core"
	"rentbook/internal/log"
	"rentbook/internal/metrics"
)

// Notifier is told about every persisted mutation.
type Notifier interface {
	NotifyChange(ctx context.Context, change core.Change) error
}

type Option func(*Store)

// WithClock overrides the time source used for ids, export dates and the
// current month of Statistics.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentLedger)
		}
	}
}

// WithNotifier publishes a change after each successful persist. Failures
// are logged and never fail the mutation.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Store) { s.metrics = r }
}
