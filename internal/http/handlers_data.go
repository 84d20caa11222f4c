package http

import (
	"errors"
	"net/http"

	"rentbook/internal/core"
	"rentbook/internal/ledger"
	"rentbook/internal/log"
)

// importResult summarizes the dataset after an import.
type importResult struct {
	Properties int `json:"properties"`
	Expenses   int `json:"expenses"`
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.store.Statistics()).Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.store.Settings()).Write(w)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch core.SettingsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeBodyError(w, r, err)
		return
	}
	patch = sanitizeSettings(patch)
	if err := patch.Apply(s.store.Settings()).Validate(); err != nil {
		UnprocessableEntityError(r, err.Error()).Write(w)
		return
	}

	settings, err := s.store.UpdateSettings(r.Context(), patch)
	if err != nil {
		writeStoreError(w, r, log.OpUpdateSettings, err)
		return
	}
	NewResponse().JSON(settings).Write(w)
}

// handleExport downloads the whole dataset as backup_<date>.json.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	backup := s.store.Export()
	requestLogger(r).InfoContext(r.Context(), "Backup exported",
		log.FieldOperation, log.OpExport,
		"properties", len(backup.Properties),
		"expenses", len(backup.Expenses))
	NewResponse().
		Attachment(core.BackupFileName(backup.ExportDate)).
		IndentedJSON(backup).
		Write(w)
}

// handleImport replaces every collection present in the uploaded backup.
// A document that does not parse changes nothing and is answered with 400.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxImportBody)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	if err := s.store.ImportJSON(r.Context(), body); err != nil {
		if errors.Is(err, ledger.ErrInvalidBackup) {
			requestLogger(r).WarnContext(r.Context(), "Rejected backup document", log.FieldError, err)
			BadRequestError(r, err.Error()).Write(w)
			return
		}
		writeStoreError(w, r, log.OpImport, err)
		return
	}
	NewResponse().JSON(importResult{
		Properties: len(s.store.Properties()),
		Expenses:   len(s.store.AllExpenses()),
	}).Write(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		writeStoreError(w, r, log.OpClear, err)
		return
	}
	requestLogger(r).WarnContext(r.Context(), "All data cleared", log.FieldOperation, log.OpClear)
	NoContent().Write(w)
}
