package ledger

import (
	"time"

	"rentbook/internal/core"
)

// idAllocator hands out ids derived from the clock in milliseconds, bumped
// past the last issued id so two records created in the same millisecond
// never share one. last only moves forward.
type idAllocator struct {
	last core.ID
}

func (a *idAllocator) peek(now time.Time) core.ID {
	id := core.ID(now.UnixMilli())
	if id <= a.last {
		id = a.last + 1
	}
	return id
}

func (a *idAllocator) observe(id core.ID) {
	if id > a.last {
		a.last = id
	}
}

func maxPropertyID(ps []core.Property) core.ID {
	var m core.ID
	for _, p := range ps {
		if p.ID > m {
			m = p.ID
		}
	}
	return m
}

func maxExpenseID(es []core.Expense) core.ID {
	var m core.ID
	for _, e := range es {
		if e.ID > m {
			m = e.ID
		}
	}
	return m
}
