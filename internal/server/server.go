// Package server provides the HTTP server and routing for the rebalancer.
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

	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/di"
	portfoliohandlers "github.com/aristath/rebalancer/internal/modules/portfolio/handlers"
	rebalancinghandlers "github.com/aristath/rebalancer/internal/modules/rebalancing/handlers"
	settingshandlers "github.com/aristath/rebalancer/internal/modules/settings/handlers"
	tradinghandlers "github.com/aristath/rebalancer/internal/modules/trading/handlers"
	"github.com/aristath/rebalancer/internal/scheduler"
)

// requestTimeout bounds every API request except the event stream
const requestTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
	Jobs      *di.JobInstances
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	c := cfg.Container

	jobs := []scheduler.Job{}
	if cfg.Jobs != nil {
		if cfg.Jobs.MarketCycle != nil {
			jobs = append(jobs, cfg.Jobs.MarketCycle)
		}
		if cfg.Jobs.DatabaseHealth != nil {
			jobs = append(jobs, cfg.Jobs.DatabaseHealth)
		}
		if cfg.Jobs.LedgerBackup != nil {
			jobs = append(jobs, cfg.Jobs.LedgerBackup)
		}
	}

	var connection ConnectionStatus
	if cfg.Jobs != nil && cfg.Jobs.MarketCycle != nil {
		connection = cfg.Jobs.MarketCycle
	}
	var backups BackupLister
	if c.BackupService != nil {
		backups = c.BackupService
	}

	systemHandlers := NewSystemHandlers(SystemDeps{
		DataDir:      cfg.Config.DataDir,
		Databases:    []*database.DB{c.ConfigDB, c.LedgerDB},
		Connection:   connection,
		Orchestrator: c.Orchestrator,
		Backups:      backups,
		Runner:       c.Scheduler,
		Jobs:         jobs,
	}, cfg.Log)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      c,
		systemHandlers: systemHandlers,
		statusMonitor:  NewStatusMonitor(systemHandlers, c.Metrics, cfg.Log),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes(cfg.Jobs)

	// No WriteTimeout: the event stream is long-lived; API routes are
	// bounded by the timeout middleware instead.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// CORS: anything goes in dev mode, local dashboards otherwise
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if devMode {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}
	s.router.Use(cors.Handler(corsOptions))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(jobs *di.JobInstances) {
	c := s.container

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", c.Metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// Event stream (SSE) stays outside the request timeout
		eventsStreamHandler := NewEventsStreamHandler(c.EventBus, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			var connection rebalancinghandlers.ConnectionStatus
			if jobs != nil && jobs.MarketCycle != nil {
				connection = jobs.MarketCycle
			}

			settingshandlers.NewHandler(c.SettingsService, s.log).RegisterRoutes(r)
			portfoliohandlers.NewHandler(c.Book, c.AssetRepo, c.EventManager, s.log).RegisterRoutes(r)
			rebalancinghandlers.NewHandler(c.Orchestrator, c.Book, c.SettingsService, connection, s.log).RegisterRoutes(r)
			tradinghandlers.NewHandler(c.TradeLogRepo, s.log).RegisterRoutes(r)

			s.systemHandlers.RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server and background monitors. The status monitor
// stops when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.statusMonitor.Start(ctx, 60*time.Second)
	s.log.Info().Msg("Status monitor started")

	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
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
