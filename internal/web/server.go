// Package web serves the host API: per-account snapshots, bucket reads,
// runtime reconfiguration, and async export jobs.
package web

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-stats-tracker/internal/export"
	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// BulkClient is the fetch surface exports need. *spotify.Client satisfies
// it.
type BulkClient interface {
	export.ArtistFetcher
	export.LibraryFetcher
	export.PlaylistFetcher
	export.AudioFeaturesFetcher
}

// BulkClientFactory builds the export fetch surface from a bearer token.
type BulkClientFactory func(accessToken string) BulkClient

// Server is the host API server.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	log      zerolog.Logger
}

// NewServer creates the host API server over the given account registry.
func NewServer(addr string, registry *stats.Registry, exporter *export.Exporter, newBulkClient BulkClientFactory, logger zerolog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: NewHandlers(registry, exporter, newBulkClient, logger),
		log:      logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/users", s.handlers.Users)
	s.router.Route("/users/{username}", func(r chi.Router) {
		r.Get("/snapshot", s.handlers.Snapshot)
		r.Get("/status", s.handlers.Status)
		r.Get("/buckets/{bucket}", s.handlers.Bucket)
		r.Post("/intervals", s.handlers.SetIntervals)
		r.Post("/refresh", s.handlers.Refresh)
		r.Post("/export/{kind}", s.handlers.Export)
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("host API listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown when ctx is canceled
// or an interrupt arrives.
func (s *Server) Run(ctx context.Context) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.log.Info().Msg("shutting down host API")
	case <-ctx.Done():
		s.log.Info().Msg("shutting down host API")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// requestLogger logs one structured line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
