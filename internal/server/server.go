// Package server provides the HTTP server and routing for posenv.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/posenv/internal/aggregator"
	"github.com/aristath/posenv/internal/cache"
	"github.com/aristath/posenv/internal/database"
	"github.com/aristath/posenv/internal/orchestrator"
	"github.com/aristath/posenv/internal/scheduler"
	"github.com/aristath/posenv/internal/status"
)

const (
	defaultRequestTimeout = 5 * time.Minute
	defaultStreamInterval = 5 * time.Second
)

// CacheStats reports cache occupancy.
type CacheStats interface {
	Stats() cache.Stats
}

// PoolStats reports worker pool usage.
type PoolStats interface {
	Stats() orchestrator.PoolStats
}

// JobLister lists scheduled maintenance jobs.
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

// Config holds server configuration
type Config struct {
	Log            zerolog.Logger
	Port           int
	DevMode        bool
	Service        *aggregator.Service
	Status         *status.Registry
	Cache          CacheStats
	Pool           PoolStats
	DB             *database.DB // optional
	Maintenance    JobLister    // optional
	RequestTimeout time.Duration
	StreamInterval time.Duration
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	devMode        bool
	service        *aggregator.Service
	status         *status.Registry
	cache          CacheStats
	pool           PoolStats
	db             *database.DB
	maintenance    JobLister
	requestTimeout time.Duration
	streamInterval time.Duration
	hostStats      func(ctx context.Context) *HostStats
	now            func() time.Time

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = defaultStreamInterval
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		devMode:        cfg.DevMode,
		service:        cfg.Service,
		status:         cfg.Status,
		cache:          cfg.Cache,
		pool:           cfg.Pool,
		db:             cfg.DB,
		maintenance:    cfg.Maintenance,
		requestTimeout: cfg.RequestTimeout,
		streamInterval: cfg.StreamInterval,
		hostStats:      sampleHost,
		now:            time.Now,
		done:           make(chan struct{}),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	// Long-lived stream, outside the request timeout
	s.router.Get("/ws/status", s.handleStatusStream)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))

		for _, path := range []string{"/pos_env", "/position-environment"} {
			r.Get(path, s.handlePositionEnvironment)
			r.Post(path, s.handlePositionEnvironment)
		}

		r.Get("/requests/{id}", s.handleGetRequest)
		r.Get("/status", s.handleStatus)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server. Open status streams are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.doneOnce.Do(func() { close(s.done) })
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
