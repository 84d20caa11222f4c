package http

import (
	"net/http"

	"rentbook/internal/core"
	"rentbook/internal/log"
)

// handleListExpenses returns every expense joined with its property name,
// or the raw expenses of one property and month when both filters are set.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseExpenseFilter(r)
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	if filter.Set {
		NewResponse().JSON(s.store.Expenses(filter.PropertyID, filter.Month)).Write(w)
		return
	}
	NewResponse().JSON(s.store.ExpenseRows()).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var e core.Expense
	if err := decodeJSON(w, r, &e, expenseAmountFields...); err != nil {
		writeBodyError(w, r, err)
		return
	}
	e.ID = 0
	if err := e.Validate(); err != nil {
		UnprocessableEntityError(r, err.Error()).Write(w)
		return
	}
	// The Store keeps weak references, but new expenses must point at an
	// existing property.
	if _, ok := s.store.PropertyByID(e.PropertyID); !ok {
		UnprocessableEntityError(r, core.ErrInvalidProperty.Error()).Write(w)
		return
	}

	stored, err := s.store.AddExpense(r.Context(), e)
	if err != nil {
		writeStoreError(w, r, log.OpAddExpense, err)
		return
	}
	requestLogger(r).InfoContext(r.Context(), "Expense recorded",
		log.FieldExpenseID, stored.ID,
		log.FieldPropertyID, stored.PropertyID,
		log.FieldMonth, stored.Month,
		"total_cents", stored.Total().Cents)

	NewResponse().Status(http.StatusCreated).JSON(stored).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	if err := s.store.DeleteExpense(r.Context(), id); err != nil {
		writeStoreError(w, r, log.OpDeleteExpense, err)
		return
	}
	requestLogger(r).InfoContext(r.Context(), "Expense deleted", log.FieldExpenseID, id)
	NoContent().Write(w)
}
