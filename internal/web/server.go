// Package web provides the HTTP server and handlers for the IEF reporting
// dashboard.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/iefreport/internal/config"
	"github.com/JonMunkholm/iefreport/internal/core"
	"github.com/JonMunkholm/iefreport/internal/metrics"
	mw "github.com/JonMunkholm/iefreport/internal/web/middleware"
)

// Options carries the server dependencies besides the service.
type Options struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // served on /metrics; nil means the default gatherer
}

// Server is the HTTP server for the reporting dashboard.
type Server struct {
	service *core.Service
	cfg     *config.Config
	metrics *metrics.Metrics
	router  *chi.Mux
	server  *http.Server

	limiter       *rateLimiter
	exportLimiter *rateLimiter
	stopLimiters  context.CancelFunc
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		service:       service,
		cfg:           cfg,
		metrics:       m,
		router:        chi.NewRouter(),
		limiter:       newRateLimiter(ctx, "global", cfg.Rate.RequestsPerMinute),
		exportLimiter: newRateLimiter(ctx, "export", cfg.Rate.ExportLimit),
		stopLimiters:  cancel,
	}
	s.setupMiddleware()
	s.setupRoutes(opts.Gatherer)
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(mw.Instrument(s.metrics))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router.Group(func(r chi.Router) {
		if s.cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		}
		r.Use(s.rateLimit(s.limiter))

		// Pages
		r.Get("/", s.handleDashboard)

		r.Get("/etablissements", s.handleEstablishments)
		r.Get("/etablissements/analytics", s.handleEstablishmentAnalytics)
		r.Get("/etablissements/type/{type}", s.handleEstablishmentsByType)
		r.Get("/etablissements/{id}", s.handleEstablishmentDetail)
		r.Get("/etablissements/{id}/fiche", s.handleEstablishmentFiche)

		r.Get("/personnel", s.handlePersonnel)
		r.Get("/personnel/non-affectes", s.handleUnassigned)
		r.Get("/personnel/analytics", s.handlePersonnelAnalytics)
		r.Get("/personnel/{id}", s.handlePersonDetail)
		r.Get("/personnel/{id}/fiche", s.handlePersonFiche)

		r.Get("/communes", s.handleCommunes)

		r.Get("/rapports", s.handleReports)
		r.Get("/rapports/{kind}", s.handleReport)

		// API routes
		r.Route("/api", func(r chi.Router) {
			r.Get("/tables", s.handleListTables)
			r.Get("/dashboard", s.handleAPIDashboard)
			r.Get("/stats", s.handleAPIStats)

			r.Get("/etablissements", s.handleAPIEstablishments)
			r.Get("/etablissements/filters", s.handleAPIEstablishmentFilters)
			r.Get("/etablissements/analytics", s.handleAPIEstablishmentAnalytics)
			r.Get("/etablissements/{id}", s.handleAPIEstablishment)

			r.Get("/personnel", s.handleAPIPersonnel)
			r.Get("/personnel/filters", s.handleAPIPersonnelFilters)
			r.Get("/personnel/non-affectes", s.handleAPIUnassigned)
			r.Get("/personnel/analytics", s.handleAPIPersonnelAnalytics)
			r.Get("/personnel/{id}", s.handleAPIPerson)

			r.Get("/communes", s.handleAPICommunes)

			r.Get("/rapports", s.handleAPIReports)
			r.Get("/rapports/{kind}", s.handleAPIReport)
		})
	})

	// Exports stream past the request timeout and have their own limit.
	s.router.Group(func(r chi.Router) {
		r.Use(s.rateLimit(s.exportLimiter))
		r.Get("/api/export/complete", s.handleExportComplete)
		r.Get("/api/export/{tableKey}", s.handleExportTable)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server, then waits for running exports.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopLimiters()
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.service.Exports().WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

const contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'"

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			if enableCSP {
				w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
			}

			// Control referrer information
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// handleHealth reports whether the store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
