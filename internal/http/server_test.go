package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"rentbook/internal/blob/memory"
	"rentbook/internal/core"
	"rentbook/internal/ledger"
	"rentbook/internal/log"
	"rentbook/internal/metrics"
	"rentbook/internal/middleware/ratelimit"
	"rentbook/internal/report"
	sheetsmem "rentbook/internal/sheets/memory"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type testServer struct {
	srv   *Server
	store *ledger.Store
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	store := ledger.New(context.Background(), memory.New(),
		ledger.WithClock(func() time.Time { return testNow }),
		ledger.WithLogger(log.Discard()))
	cfg := Config{
		Addr:      ":0",
		Store:     store,
		Logger:    log.Discard(),
		RateLimit: ratelimit.Config{RequestsPerMinute: 1000},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{srv: srv, store: store}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

const propertyA = `{"name":"A","tenant":"T","monthlyRent":1000,"rentalDate":"2024-01-01","paymentDate":5,"status":"rented"}`

func (ts *testServer) createProperty(t *testing.T, body string) core.Property {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/properties", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create property status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decode[core.Property](t, rr)
}

func TestHealthAndHeaders(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.do(t, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz status=%d body=%q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers")
	}
}

func TestCreateProperty(t *testing.T) {
	ts := newTestServer(t, nil)

	p := ts.createProperty(t, propertyA)
	if p.ID == 0 || p.Name != "A" || p.MonthlyRent.Cents != 100000 {
		t.Fatalf("unexpected property %+v", p)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty name", `{"name":"  ","tenant":"T","monthlyRent":1,"rentalDate":"2024-01-01","paymentDate":5,"status":"rented"}`, http.StatusUnprocessableEntity},
		{"bad status", `{"name":"B","tenant":"T","monthlyRent":1,"rentalDate":"2024-01-01","paymentDate":5,"status":"sold"}`, http.StatusUnprocessableEntity},
		{"negative rent", `{"name":"B","tenant":"T","monthlyRent":-1,"rentalDate":"2024-01-01","paymentDate":5,"status":"vacant"}`, http.StatusUnprocessableEntity},
		{"non-numeric rent", `{"name":"B","tenant":"T","monthlyRent":"abc","rentalDate":"2024-01-01","paymentDate":5,"status":"rented"}`, http.StatusUnprocessableEntity},
		{"rent as object", `{"name":"B","tenant":"T","monthlyRent":{},"rentalDate":"2024-01-01","paymentDate":5,"status":"rented"}`, http.StatusUnprocessableEntity},
		{"payment day out of range", `{"name":"B","tenant":"T","monthlyRent":1,"rentalDate":"2024-01-01","paymentDate":32,"status":"vacant"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"name":`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, "/api/properties", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want=%d body=%s", rr.Code, tt.want, rr.Body.String())
			}
			if body := decode[ErrorBody](t, rr); body.Error == "" {
				t.Fatalf("expected error message")
			}
		})
	}

	if got := len(ts.store.Properties()); got != 1 {
		t.Fatalf("rejected requests must not store anything, have %d", got)
	}
}

func TestGetAndUpdateProperty(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createProperty(t, propertyA)
	path := "/api/properties/" + strconv.FormatInt(int64(p.ID), 10)

	rr := ts.do(t, http.MethodGet, path, "")
	if rr.Code != http.StatusOK || decode[core.Property](t, rr).ID != p.ID {
		t.Fatalf("get status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodPatch, path, `{"status":"vacant","id":999}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decode[core.Property](t, rr)
	if updated.ID != p.ID || updated.Status != core.StatusVacant || updated.Tenant != "T" {
		t.Fatalf("unexpected update %+v", updated)
	}

	if rr := ts.do(t, http.MethodPatch, path, `{"tenant":""}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid patch status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodPatch, path, `{"monthlyRent":"abc"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("non-numeric rent patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got, _ := ts.store.PropertyByID(p.ID); got.MonthlyRent.Cents != 100000 {
		t.Fatalf("rejected patch changed rent to %s", got.MonthlyRent)
	}
	if rr := ts.do(t, http.MethodPatch, path, `{"monthlyRent":"1250,50"}`); rr.Code != http.StatusOK {
		t.Fatalf("numeric string rent patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := ts.do(t, http.MethodPatch, "/api/properties/42", `{"tenant":"X"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown patch status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/api/properties/42", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown get status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/api/properties/abc", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", rr.Code)
	}
}

func TestDeletePropertyCascades(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.createProperty(t, propertyA)
	b := ts.createProperty(t, strings.Replace(propertyA, `"A"`, `"B"`, 1))
	for _, id := range []core.ID{a.ID, b.ID} {
		body := `{"propertyId":` + strconv.FormatInt(int64(id), 10) + `,"month":"2024-03","water":10}`
		if rr := ts.do(t, http.MethodPost, "/api/expenses", body); rr.Code != http.StatusCreated {
			t.Fatalf("create expense status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := ts.do(t, http.MethodDelete, "/api/properties/"+strconv.FormatInt(int64(a.ID), 10), "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	exps := ts.store.AllExpenses()
	if len(exps) != 1 || exps[0].PropertyID != b.ID {
		t.Fatalf("expected only B's expense to remain, got %+v", exps)
	}
	if rr := ts.do(t, http.MethodDelete, "/api/properties/42", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("deleting an unknown id status=%d", rr.Code)
	}
}

func TestExpenses(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.createProperty(t, propertyA)
	aID := strconv.FormatInt(int64(a.ID), 10)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"propertyId":` + aID + `,"month":"2024-03","electricity":"12.50","water":3}`, http.StatusCreated},
		{"duplicate month is allowed", `{"propertyId":` + aID + `,"month":"2024-03","other":1}`, http.StatusCreated},
		{"unknown property", `{"propertyId":42,"month":"2024-03"}`, http.StatusUnprocessableEntity},
		{"bad month", `{"propertyId":` + aID + `,"month":"March"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"propertyId":` + aID + `,"month":"2024-03","water":-1}`, http.StatusUnprocessableEntity},
		{"non-numeric amount", `{"propertyId":` + aID + `,"month":"2024-03","electricity":"lots"}`, http.StatusUnprocessableEntity},
		{"boolean amount", `{"propertyId":` + aID + `,"month":"2024-03","other":true}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := ts.do(t, http.MethodPost, "/api/expenses", tt.body); rr.Code != tt.want {
				t.Fatalf("status=%d want=%d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr := ts.do(t, http.MethodGet, "/api/expenses?propertyId="+aID+"&month=2024-03", "")
	filtered := decode[[]core.Expense](t, rr)
	if len(filtered) != 2 || filtered[0].Electricity.Cents != 1250 {
		t.Fatalf("filtered = %+v", filtered)
	}

	rr = ts.do(t, http.MethodGet, "/api/expenses?propertyId="+aID+"&month=2024-04", "")
	if rr.Body.String() != "[]\n" {
		t.Fatalf("empty filter must encode as [], got %q", rr.Body.String())
	}

	if rr := ts.do(t, http.MethodGet, "/api/expenses?month=2024-03", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("half filter status=%d", rr.Code)
	}

	rows := decode[[]core.ExpenseRow](t, ts.do(t, http.MethodGet, "/api/expenses", ""))
	if len(rows) != 2 || rows[0].PropertyName != "A" || rows[0].Amount.Cents != 1550 {
		t.Fatalf("rows = %+v", rows)
	}

	rr = ts.do(t, http.MethodDelete, "/api/expenses/"+strconv.FormatInt(int64(filtered[0].ID), 10), "")
	if rr.Code != http.StatusNoContent || len(ts.store.AllExpenses()) != 1 {
		t.Fatalf("delete expense status=%d left=%d", rr.Code, len(ts.store.AllExpenses()))
	}
}

func TestStatisticsAndSettings(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.createProperty(t, propertyA)
	ts.createProperty(t, `{"name":"B","tenant":"U","monthlyRent":700,"rentalDate":"2024-01-01","paymentDate":1,"status":"vacant"}`)
	body := `{"propertyId":` + strconv.FormatInt(int64(a.ID), 10) + `,"month":"2024-03","electricity":50,"water":30,"other":20}`
	ts.do(t, http.MethodPost, "/api/expenses", body)

	st := decode[core.Statistics](t, ts.do(t, http.MethodGet, "/api/statistics", ""))
	if st.TotalProperties != 2 || st.RentedProperties != 1 || st.VacantProperties != 1 {
		t.Fatalf("counts = %+v", st)
	}
	if st.MonthlyIncome.Cents != 100000 || st.MonthlyExpenses.Cents != 10000 || st.NetProfit.Cents != 90000 {
		t.Fatalf("amounts = %+v", st)
	}

	settings := decode[core.Settings](t, ts.do(t, http.MethodGet, "/api/settings", ""))
	if settings != core.DefaultSettings() {
		t.Fatalf("settings = %+v", settings)
	}
	rr := ts.do(t, http.MethodPut, "/api/settings", `{"currency":"EUR"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put settings status=%d", rr.Code)
	}
	if got := ts.store.Settings(); got.Currency != "EUR" || got.BusinessName != core.DefaultBusinessName {
		t.Fatalf("settings = %+v", got)
	}
	if rr := ts.do(t, http.MethodPut, "/api/settings", `{"currency":" "}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty currency status=%d", rr.Code)
	}
}

func TestExportImportReset(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createProperty(t, propertyA)

	rr := ts.do(t, http.MethodGet, "/api/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="backup_2024-03-15.json"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("export must not be cached")
	}
	exported := rr.Body.String()

	if rr := ts.do(t, http.MethodPost, "/api/reset", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("reset status=%d", rr.Code)
	}
	if len(ts.store.Properties()) != 0 {
		t.Fatalf("reset left properties behind")
	}

	rr = ts.do(t, http.MethodPost, "/api/import", exported)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	if res := decode[importResult](t, rr); res.Properties != 1 || res.Expenses != 0 {
		t.Fatalf("import result = %+v", res)
	}

	rr = ts.do(t, http.MethodPost, "/api/import", `{"properties": [`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid import status=%d", rr.Code)
	}
	if !strings.Contains(decode[ErrorBody](t, rr).Error, "invalid backup") {
		t.Fatalf("error message = %s", rr.Body.String())
	}
	if len(ts.store.Properties()) != 1 {
		t.Fatalf("invalid import must not replace anything")
	}
}

func TestReports(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.createProperty(t, propertyA)
	base := "/reports/" + strconv.FormatInt(int64(a.ID), 10) + "/2024-03"

	rr := ts.do(t, http.MethodGet, base, "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("html status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Body.String(), "March 2024") {
		t.Fatalf("report missing month label")
	}

	rr = ts.do(t, http.MethodGet, base+"?format=xlsx", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != report.XLSXContentType {
		t.Fatalf("xlsx status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "report_a_2024-03.xlsx") {
		t.Fatalf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}

	rep := decode[core.Report](t, ts.do(t, http.MethodGet, base+"?format=json", ""))
	if rep.HasExpense || rep.Net.Cents != 100000 {
		t.Fatalf("report = %+v", rep)
	}

	for target, want := range map[string]int{
		base + "?format=pdf":    http.StatusBadRequest,
		"/reports/42/2024-03":   http.StatusNotFound,
		"/reports/x/2024-03":    http.StatusBadRequest,
		"/reports/1/March-2024": http.StatusBadRequest,
	} {
		if rr := ts.do(t, http.MethodGet, target, ""); rr.Code != want {
			t.Fatalf("%s status=%d want=%d", target, rr.Code, want)
		}
	}
}

func TestPublishReports(t *testing.T) {
	ts := newTestServer(t, nil)
	if rr := ts.do(t, http.MethodPost, "/api/reports/2024-03/publish", ""); rr.Code != http.StatusNotImplemented {
		t.Fatalf("unconfigured publish status=%d", rr.Code)
	}

	pub := sheetsmem.New()
	ts = newTestServer(t, func(c *Config) { c.Publisher = pub })
	ts.createProperty(t, propertyA)
	ts.createProperty(t, strings.Replace(propertyA, `"A"`, `"B"`, 1))

	res := decode[publishResult](t, ts.do(t, http.MethodPost, "/api/reports/2024-03/publish", ""))
	if res.Reports != 2 || res.Appended != 2 {
		t.Fatalf("first publish = %+v", res)
	}
	res = decode[publishResult](t, ts.do(t, http.MethodPost, "/api/reports/2024-03/publish", ""))
	if res.Appended != 0 {
		t.Fatalf("republishing must not duplicate rows, got %+v", res)
	}
	if len(pub.Reports()) != 2 {
		t.Fatalf("published = %d", len(pub.Reports()))
	}
	if rr := ts.do(t, http.MethodPost, "/api/reports/bad/publish", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad month status=%d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.do(t, http.MethodDelete, "/api/statistics", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := metrics.New()
	ts := newTestServer(t, func(c *Config) { c.Metrics = rec })
	ts.do(t, http.MethodGet, "/api/properties", "")

	rr := ts.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `rentbook_http_requests_total{code="2xx",method="GET"} 1`) {
		t.Fatalf("missing request counter in:\n%s", rr.Body.String())
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.RateLimit = ratelimit.Config{RequestsPerMinute: 1} })
	ts.createProperty(t, propertyA)

	rr := ts.do(t, http.MethodPost, "/api/properties", propertyA)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second write status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if rr := ts.do(t, http.MethodGet, "/api/properties", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, status=%d", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.do(t, http.MethodGet, "/static/report.css", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Fatalf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}
