// Package api provides the chordshift REST and WebSocket server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/FocuswithJustin/chordshift/internal/cache"
	"github.com/FocuswithJustin/chordshift/internal/catalog"
	"github.com/FocuswithJustin/chordshift/internal/chart"
	"github.com/FocuswithJustin/chordshift/internal/logging"
	"github.com/FocuswithJustin/chordshift/internal/server"
)

const (
	// JobRetention is how long finished jobs stay queryable.
	JobRetention = time.Hour
	janitorEvery = time.Minute
)

// Server holds the state shared by all handlers.
type Server struct {
	cfg        Config
	catalog    *catalog.Catalog
	transposer *chart.Transposer
	results    *cache.TTLCache[string, *chart.Result]
	jobs       *JobStore
	hub        *Hub
	limiter    *RateLimiter
	started    time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// NewServer builds a server for cfg. A nil catalog selects catalog.Default.
// The returned server's background goroutines run until Close.
func NewServer(cfg Config, cat *catalog.Catalog) *Server {
	if cat == nil {
		cat = catalog.Default()
	}

	s := &Server{
		cfg:     cfg,
		catalog: cat,
		transposer: &chart.Transposer{
			ParallelThreshold: cfg.ParallelThreshold,
			Workers:           cfg.Workers,
		},
		jobs:    NewJobStore(),
		hub:     NewHub(),
		started: time.Now(),
		stop:    make(chan struct{}),
	}
	if cfg.CacheTTL > 0 {
		s.results = cache.New[string, *chart.Result](cfg.CacheTTL, cfg.CacheEntries)
	}
	if cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		})
	}

	go s.hub.Run()
	go s.janitor()

	return s
}

// Close stops background goroutines and disconnects WebSocket clients.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.hub.Close()
		if s.limiter != nil {
			s.limiter.Stop()
		}
	})
}

// janitor prunes expired cache entries and old jobs.
func (s *Server) janitor() {
	ticker := time.NewTicker(janitorEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			pruned := 0
			if s.results != nil {
				pruned = s.results.Prune()
			}
			jobs := s.jobs.Prune(JobRetention)
			if pruned > 0 || jobs > 0 {
				logging.Debug("janitor pruned", "cache_entries", pruned, "jobs", jobs)
			}
		}
	}
}

// routes configures all HTTP routes.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/instruments", s.handleInstruments)
	mux.HandleFunc("/keys", s.handleKeys)
	mux.HandleFunc("/transpose", s.handleTranspose)
	mux.HandleFunc("/transpose/entry", s.handleTransposeEntry)
	mux.HandleFunc("/download", s.handleDownload)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// Handler returns the routes wrapped in the middleware chain, outermost
// first: logging, CORS, rate limiting, timing, security headers.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = server.SecurityHeadersWithCSP(server.APICSPConfig(), s.routes())
	handler = server.TimingMiddleware(handler)

	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}

	handler = server.CORSMiddlewareWithConfig(server.CORSConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
	}, handler)

	return logging.CombinedMiddleware(handler)
}

// Start serves the API until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, cfg Config, cat *catalog.Catalog) error {
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(cfg.TLS.CertFile); err != nil {
			return fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(cfg.TLS.KeyFile); err != nil {
			return fmt.Errorf("TLS key file not found: %w", err)
		}
	}

	s := NewServer(cfg, cat)
	defer s.Close()

	protocol, wsProtocol := "http", "ws"
	if cfg.TLS.Enabled {
		protocol, wsProtocol = "https", "wss"
		logging.Info("TLS enabled", "cert_file", cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}

	if s.limiter != nil {
		logging.Info("rate limiting enabled",
			"requests_per_minute", cfg.RateLimitRequests,
			"burst_size", s.limiter.config.BurstSize)
	}
	if len(cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "restricted",
			"allowed_origins_count", len(cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "permissive",
			"note", "allowing all origins (*) - consider restricting for production")
	}

	logging.ServerStartup("rest_api", protocol, cfg.Port,
		"websocket_protocol", wsProtocol,
		"instruments", len(s.catalog.Instruments()),
		"keys", len(s.catalog.Keys()))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			errCh <- srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
