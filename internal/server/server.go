// Package server exposes the health and status surface. It never serves
// data queries; the read API is a separate system consuming the cache
// files.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/writelock"
)

// Counters is what the status page reads off the ingest loop.
type Counters interface {
	EventCount() int64
	DroppedCount() int64
	DedupSize() int64
}

// Config holds server configuration
type Config struct {
	Port         int
	Version      string
	CacheControl string
	CacheDir     string
	Log          zerolog.Logger
	Lock         *writelock.Lock
	Counters     Counters
	Databases    map[string]*database.DB
}

// Server represents the HTTP server
type Server struct {
	router       *chi.Mux
	server       *http.Server
	log          zerolog.Logger
	version      string
	cacheControl string
	cacheDir     string
	lock         *writelock.Lock
	counters     Counters
	dbs          map[string]*database.DB
	started      time.Time

	degraded []string
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		version:      cfg.Version,
		cacheControl: cfg.CacheControl,
		cacheDir:     cfg.CacheDir,
		lock:         cfg.Lock,
		counters:     cfg.Counters,
		dbs:          cfg.Databases,
		started:      time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// MarkDegraded records a store that failed its integrity check. The store
// stays degraded until an operator restores it and restarts the process.
func (s *Server) MarkDegraded(store string) {
	s.degraded = append(s.degraded, store)
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(5 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Use(s.defaultHeaders)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleStatus)
	s.router.Get("/health", s.handleHealth)
}

// defaultHeaders applies the cache directive and service identity to every
// response, so the edge cache in front of this service behaves without
// per-route configuration.
func (s *Server) defaultHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cacheControl != "" {
			w.Header().Set("Cache-Control", s.cacheControl)
		}
		w.Header().Set("X-Service", "beacon/"+s.version)
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
