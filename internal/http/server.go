// Package http serves the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"spendings/internal/core"
	"spendings/internal/log"
	"spendings/internal/middleware/ratelimit"
	"spendings/internal/middleware/security"
	"spendings/internal/middleware/trace"
	"spendings/internal/report"
	"spendings/internal/services"
)

// Ledger is the part of services.LedgerService the API needs.
type Ledger interface {
	Restore(ctx context.Context) error
	Import(ctx context.Context, uri string) (core.ParseResult, error)
	Clear(ctx context.Context) error
	Snapshot() services.Snapshot
	Report(ctx context.Context) (report.Report, error)
}

// Config tunes the server. Zero values select defaults.
type Config struct {
	Addr              string
	RequestsPerMinute int
	// AllowLocalSources lets POST /api/import read local paths named in the
	// source query. The configured default source is always allowed.
	AllowLocalSources bool
	TrustedProxies    []string
}

type Server struct {
	http.Server
	ledger            Ledger
	logger            *log.Logger
	limiter           *ratelimit.Limiter
	detector          *security.Detector
	tracer            *trace.Middleware
	allowLocalSources bool

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, ledger Ledger, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	limiterCfg := ratelimit.DefaultConfig()
	if cfg.RequestsPerMinute > 0 {
		limiterCfg.RequestsPerMinute = cfg.RequestsPerMinute
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:            ledger,
		logger:            logger,
		limiter:           ratelimit.NewLimiter(limiterCfg),
		detector:          detector,
		tracer:            trace.NewMiddleware(logger, detector.ExtractClientIP),
		allowLocalSources: cfg.AllowLocalSources,
	}

	// Only mutating routes are rate limited.
	limited := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	})

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("GET /api/errors", s.handleErrors)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/series/daily", s.reportView(func(rep report.Report) any { return rep.Daily }))
	mux.HandleFunc("GET /api/series/monthly", s.reportView(func(rep report.Report) any { return rep.Monthly }))
	mux.HandleFunc("GET /api/series/categories", s.reportView(func(rep report.Report) any { return rep.Categories }))
	mux.HandleFunc("GET /api/totals", s.reportView(func(rep report.Report) any { return rep.Totals }))
	mux.Handle("POST /api/import", limited(http.HandlerFunc(s.handleImport)))
	mux.Handle("POST /api/restore", limited(http.HandlerFunc(s.handleRestore)))
	mux.Handle("DELETE /api/records", limited(http.HandlerFunc(s.handleClear)))

	var handler http.Handler = mux
	handler = s.tracer.Middleware(handler)
	handler = detector.Middleware(logger)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	s.Handler = handler

	return s, nil
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports request, rate limit and probe counters.
func (s *Server) Metrics() map[string]int64 {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	return map[string]int64{
		"requests_total":            tm.TotalRequests,
		"avg_response_time_us":      tm.AverageResponseTime,
		"rate_limited_total":        rm.TotalHits,
		"rate_limit_clients":        rm.ClientCount,
		"suspicious_requests_total": s.detector.GetMetrics().SuspiciousRequests,
	}
}
