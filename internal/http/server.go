package http

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"rentbook/internal/ledger"
	"rentbook/internal/log"
	"rentbook/internal/metrics"
	"rentbook/internal/middleware/ratelimit"
	"rentbook/internal/middleware/security"
	"rentbook/internal/middleware/trace"
	"rentbook/internal/report"
	"rentbook/internal/sheets"
	appweb "rentbook/web"
)

// Config carries the dependencies of the server. Publisher and Metrics are
// optional.
type Config struct {
	Addr      string
	Store     *ledger.Store
	Publisher sheets.ReportWriter
	Metrics   *metrics.Recorder
	Logger    *log.Logger
	RateLimit ratelimit.Config
	// PublishTimeout bounds one call to the report publisher.
	PublishTimeout time.Duration
}

// Server is the JSON API and report server over a ledger Store.
type Server struct {
	http.Server

	store          *ledger.Store
	renderer       *report.Renderer
	publisher      sheets.ReportWriter
	metrics        *metrics.Recorder
	logger         *log.Logger
	limiter        *ratelimit.Limiter
	detector       *security.Detector
	tracer         *trace.Middleware
	publishTimeout time.Duration

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("http server requires a store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	renderer, err := report.NewRenderer()
	if err != nil {
		return nil, err
	}
	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = 30 * time.Second
	}

	s := &Server{
		store:          cfg.Store,
		renderer:       renderer,
		publisher:      cfg.Publisher,
		metrics:        cfg.Metrics,
		logger:         logger.WithComponent(log.ComponentHTTP),
		limiter:        ratelimit.NewLimiter(cfg.RateLimit),
		detector:       security.NewDetector(logger),
		publishTimeout: publishTimeout,
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP, func(r *http.Request, status int, _ time.Duration) {
		s.metrics.ObserveHTTP(r.Method, status)
	})

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		s.limiter.Stop()
		return nil, err
	}

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	mux.HandleFunc("GET /healthz", handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /api/properties", s.handleListProperties)
	mux.HandleFunc("POST /api/properties", s.handleCreateProperty)
	mux.HandleFunc("GET /api/properties/{id}", s.handleGetProperty)
	mux.HandleFunc("PATCH /api/properties/{id}", s.handleUpdateProperty)
	mux.HandleFunc("DELETE /api/properties/{id}", s.handleDeleteProperty)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/statistics", s.handleStatistics)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)

	mux.Handle("GET /api/export", security.NoStore(http.HandlerFunc(s.handleExport)))
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/reset", s.handleReset)

	mux.Handle("GET /reports/{propertyId}/{month}", security.NoStore(http.HandlerFunc(s.handleReport)))
	mux.HandleFunc("POST /api/reports/{month}/publish", s.handlePublishReports)
	return nil
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	requestLogger(r).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	ErrorResponse(r, http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Body("text/plain; charset=utf-8", []byte("ok")).Write(w)
}
