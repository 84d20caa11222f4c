package http

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"rentbook/internal/log"
	"rentbook/internal/report"
)

// publishResult reports the outcome of publishing one month.
type publishResult struct {
	Month    string `json:"month"`
	Reports  int    `json:"reports"`
	Appended int    `json:"appended"`
}

// handleReport renders the monthly statement of one property as a printable
// page, or as a workbook with ?format=xlsx.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "propertyId")
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	month, err := pathMonth(r, "month")
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	rep, ok := s.store.MonthlyReport(id, month)
	if !ok {
		NotFoundError(r, "property not found").Write(w)
		return
	}

	var buf bytes.Buffer
	switch format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))); format {
	case "", "html":
		if err := s.renderer.RenderHTML(&buf, rep); err != nil {
			s.renderFailed(w, r, err)
			return
		}
		NewResponse().Body("text/html; charset=utf-8", buf.Bytes()).Write(w)
	case "xlsx":
		if err := report.WriteXLSX(&buf, rep); err != nil {
			s.renderFailed(w, r, err)
			return
		}
		NewResponse().
			Attachment(report.FileName(rep)+".xlsx").
			Body(report.XLSXContentType, buf.Bytes()).
			Write(w)
	case "json":
		NewResponse().JSON(rep).Write(w)
	default:
		BadRequestError(r, "unsupported report format "+format).Write(w)
	}
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, err error) {
	requestLogger(r).WithComponent(log.ComponentReport).ErrorContext(r.Context(), "Report rendering failed",
		log.FieldOperation, log.OpRender,
		log.FieldError, err)
	InternalServerError(r, "failed to render report").Write(w)
}

// handlePublishReports appends the statements of every property for one
// month to the configured spreadsheet.
func (s *Server) handlePublishReports(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r, "month")
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	if s.publisher == nil {
		ErrorResponse(r, http.StatusNotImplemented, "report publishing is not configured").Write(w)
		return
	}

	reports := s.store.MonthlyReports(month)
	result := publishResult{Month: string(month), Reports: len(reports)}
	if len(reports) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), s.publishTimeout)
		defer cancel()
		n, err := s.publisher.AppendReports(ctx, reports)
		if err != nil {
			requestLogger(r).WithComponent(log.ComponentSheets).ErrorContext(r.Context(), "Publishing reports failed",
				log.FieldOperation, log.OpPublish,
				log.FieldMonth, month,
				log.FieldError, err)
			ErrorResponse(r, http.StatusBadGateway, "failed to publish reports").Write(w)
			return
		}
		result.Appended = n
	}

	requestLogger(r).InfoContext(r.Context(), "Reports published",
		log.FieldOperation, log.OpPublish,
		log.FieldMonth, month,
		log.FieldCount, result.Appended)
	NewResponse().JSON(result).Write(w)
}
