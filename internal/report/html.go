// Package report renders the monthly statement of a property as printable
// HTML and as an XLSX workbook.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"rentbook/internal/core"
	"rentbook/web"
)

// Renderer holds the parsed HTML template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded report template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("report.html").Funcs(template.FuncMap{
		"monthLabel": func(m core.Month) string { return m.Label() },
		"money":      func(currency string, m core.Money) string { return m.Format(currency) },
	}).ParseFS(web.TemplatesFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// RenderHTML writes the report page. The output is buffered so a template
// error never leaves a half-written page behind.
func (r *Renderer) RenderHTML(w io.Writer, rep core.Report) error {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, rep); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// FileName is the download name of a report, without extension, e.g.
// "report_main-street-4_2024-03".
func FileName(rep core.Report) string {
	return "report_" + slug(rep.Property.Name) + "_" + string(rep.Month)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "property"
	}
	return out
}
