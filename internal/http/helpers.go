package http

import (
	"errors"
	"net/http"
	"strings"

	"rentbook/internal/core"
	"rentbook/internal/log"
	"rentbook/internal/middleware/trace"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

func requestLogger(r *http.Request) *log.Logger {
	return log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
}

// writeBodyError answers a request whose body could not be decoded.
func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		ErrorResponse(r, http.StatusRequestEntityTooLarge, err.Error()).Write(w)
		return
	}
	if errors.Is(err, core.ErrInvalidAmount) {
		UnprocessableEntityError(r, err.Error()).Write(w)
		return
	}
	BadRequestError(r, err.Error()).Write(w)
}

// writeStoreError logs a failed Store mutation and answers 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	requestLogger(r).ErrorContext(r.Context(), "Store operation failed",
		log.FieldOperation, op,
		log.FieldError, err)
	InternalServerError(r, "failed to save data").Write(w)
}
