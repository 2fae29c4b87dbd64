// Package server provides the HTTP server and routing for Folio.
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

	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/scheduler"
)

// QuoteResolver is the resolver surface the HTTP layer exposes.
type QuoteResolver interface {
	ResolveQuote(ctx context.Context, identifier string) (*domain.Quote, error)
	ResolveBatch(ctx context.Context, identifiers []string, preferred map[string]string) (map[string]*domain.Quote, error)
	ResolveSearch(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Port       int
	DevMode    bool
	Resolver   QuoteResolver
	Portfolio  PortfolioValuer
	Cache      *cache.Store
	Limiter    *cache.RateLimiter
	Scheduler  *scheduler.Scheduler // optional
	SnapshotDB *database.DB         // optional
	Snapshots  SnapshotStore        // optional
	Sources    []string
}

// Server represents the HTTP server
type Server struct {
	router            *chi.Mux
	server            *http.Server
	log               zerolog.Logger
	port              int
	quoteHandlers     *QuoteHandlers
	portfolioHandlers *PortfolioHandlers
	systemHandlers    *SystemHandlers
	snapshotHandlers  *SnapshotHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		port:   cfg.Port,
	}

	s.quoteHandlers = NewQuoteHandlers(cfg.Resolver, cfg.Log)
	s.portfolioHandlers = NewPortfolioHandlers(cfg.Portfolio, cfg.Log)
	s.systemHandlers = NewSystemHandlers(SystemDeps{
		Cache:      cfg.Cache,
		Limiter:    cfg.Limiter,
		Scheduler:  cfg.Scheduler,
		SnapshotDB: cfg.SnapshotDB,
		Snapshots:  cfg.Snapshots,
		Sources:    cfg.Sources,
	}, cfg.Log)
	if cfg.Snapshots != nil {
		s.snapshotHandlers = NewSnapshotHandlers(cfg.Snapshots, cfg.Log)
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
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

	// Timeout
	s.router.Use(middleware.Timeout(45 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/quotes", func(r chi.Router) {
			r.Post("/batch", s.quoteHandlers.HandleBatch)
			r.Get("/{identifier}", s.quoteHandlers.HandleQuote)
		})
		r.Get("/search", s.quoteHandlers.HandleSearch)

		r.Post("/portfolio/positions", s.portfolioHandlers.HandlePositions)
		r.Post("/portfolio/lots/close", s.portfolioHandlers.HandleCloseLot)

		if s.snapshotHandlers != nil {
			r.Route("/snapshots/{identifier}", func(r chi.Router) {
				r.Get("/", s.snapshotHandlers.HandleLatest)
				r.Get("/history", s.snapshotHandlers.HandleHistory)
			})
		}

		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
	})
}

// ServeHTTP lets the server be mounted or driven directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

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
