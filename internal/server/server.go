package server

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/export"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/pipeline"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/repository"
)

type Config struct {
	CORSOrigin     string  // empty disables CORS headers
	RateLimitRPS   float64 // <= 0 disables rate limiting
	RateLimitBurst int
	MaxBodyBytes   int64
}

// Server exposes the parse, record, audit and export operations over HTTP.
type Server struct {
	proc     *pipeline.Processor
	store    *repository.Store
	exporter *export.Service
	cfg      Config
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func New(proc *pipeline.Processor, store *repository.Store, exporter *export.Service, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 6 << 20
	}
	s := &Server{proc: proc, store: store, exporter: exporter, cfg: cfg, logger: logger}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.RateLimitRPS) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return s
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/parse", s.handleParse)
	mux.HandleFunc("POST /api/v1/records", s.handleCreateRecord)
	mux.HandleFunc("GET /api/v1/records", s.handleListRecords)
	mux.HandleFunc("GET /api/v1/records/{id}", s.handleGetRecord)
	mux.HandleFunc("POST /api/v1/audit", s.handleAudit)
	mux.HandleFunc("GET /api/v1/export.xlsx", s.handleExport)

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = s.cors(h)
	h = s.logRequests(h)
	h = s.recoverPanics(h)
	h = requestID(h)
	return h
}

// HTTPServer wraps Handler with the timeouts used in production.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
