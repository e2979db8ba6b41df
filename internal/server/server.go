// Package server provides the HTTP server and routing for valuescope.
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

	"github.com/aristath/valuescope/internal/config"
	"github.com/aristath/valuescope/internal/di"
	leadinghandlers "github.com/aristath/valuescope/internal/modules/leading/handlers"
	reportshandlers "github.com/aristath/valuescope/internal/modules/reports/handlers"
	screeninghandlers "github.com/aristath/valuescope/internal/modules/screening/handlers"
	settingshandlers "github.com/aristath/valuescope/internal/modules/settings/handlers"
	universehandlers "github.com/aristath/valuescope/internal/modules/universe/handlers"
	"github.com/aristath/valuescope/internal/scheduler"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
	Jobs      *di.JobInstances
	Scheduler *scheduler.Scheduler // runs jobs triggered over the API, may be nil
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server. It only listens on the loopback interface.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
		systemHandlers: NewSystemHandlers(
			cfg.Container.SystemService,
			jobMap(cfg.Jobs),
			cfg.Scheduler,
			cfg.Log,
		),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func jobMap(jobs *di.JobInstances) map[string]scheduler.Job {
	m := make(map[string]scheduler.Job)
	if jobs == nil {
		return m
	}
	for _, job := range []scheduler.Job{jobs.IndicatorRefresh, jobs.OrphanCleanup, jobs.CheckDatabases, jobs.WALCheckpoint} {
		m[job.Name()] = job
	}
	return m
}

// Handler returns the root handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
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
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
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

	c := s.container
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/data", s.systemHandlers.HandleDataInfo)
			r.Delete("/data", s.systemHandlers.HandleClearData)
			r.Get("/jobs", s.systemHandlers.HandleListJobs)
			r.Post("/jobs/{name}", s.systemHandlers.HandleRunJob)
		})

		universehandlers.NewHandler(c.UniverseService, s.log).RegisterRoutes(r)
		leadinghandlers.NewHandler(c.LeadingService, s.log).RegisterRoutes(r)
		reportshandlers.NewHandler(c.ReportsService, s.log).RegisterRoutes(r)
		settingshandlers.NewHandler(c.SettingsService, s.log).RegisterRoutes(r)
		screeninghandlers.NewHandler(
			c.LeadingService,
			c.ReportsService,
			c.UniverseService,
			c.SettingsService,
			c.EvalOptions,
			s.log,
		).RegisterRoutes(r)
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
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
