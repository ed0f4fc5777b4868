// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/api"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/catalog"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/config"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/db"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/events"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/metrics"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/middleware"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/streaming"
)

// Deps are the long-lived collaborators the caller owns and closes.
// Events and Metrics are optional.
type Deps struct {
	Segmenter streaming.Segmenter
	Runtime   streaming.Runtime
	Events    events.Publisher
	Metrics   *metrics.Metrics
}

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	db         *db.DB
	repos      *db.Repositories
	catalog    *catalog.Service
	pool       *streaming.StationPool
	inactivity *streaming.InactivityChecker
	runtime    streaming.Runtime
	metrics    *metrics.Metrics

	stopInactivity context.CancelFunc
	router         *gin.Engine
	server         *http.Server
}

// New wires the catalog, the station pool and the inactivity checker over
// database and deps.
func New(cfg *config.Config, database *db.DB, deps Deps) *Server {
	repos := db.NewRepositories(database)
	catalogService := catalog.NewService(repos)

	pool := streaming.NewStationPool(cfg.Broadcast, catalogService, streaming.ManagerDeps{
		Segmenter: deps.Segmenter,
		Supplier:  catalogService,
		Runtime:   deps.Runtime,
		Plays:     catalogService,
		Events:    deps.Events,
		Metrics:   deps.Metrics,
	})

	s := &Server{
		config:     cfg,
		db:         database,
		repos:      repos,
		catalog:    catalogService,
		pool:       pool,
		inactivity: streaming.NewInactivityChecker(pool, cfg.Inactivity),
		runtime:    deps.Runtime,
		metrics:    deps.Metrics,
	}
	s.setupRouter()
	return s
}

// Pool returns the running stations.
func (s *Server) Pool() *streaming.StationPool { return s.pool }

// Router returns the configured handler.
func (s *Server) Router() *gin.Engine { return s.router }

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default())
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler(s.updateGauges)))
	}

	api.SetupHealthRoutes(s.router.Group(""), s.db, s.pool.Len)

	apiGroup := s.router.Group("/api")
	api.SetupStationRoutes(apiGroup, s.pool, s.catalog, s.config.Segmenter.Timeout)

	api.SetupRadioRoutes(s.router, api.NewRadioHandler(s.pool, s.metrics))
}

func (s *Server) updateGauges() {
	running := s.pool.List()
	s.metrics.SetActiveStations(len(running))
	for _, m := range running {
		s.metrics.SetWindowSegments(m.Slug(), m.SegmentCount())
	}
}

// StartStations brings every slug on air. A station that fails to start is
// logged and skipped.
func (s *Server) StartStations(ctx context.Context, slugs []string) {
	for _, slug := range slugs {
		if _, err := s.pool.Start(ctx, slug); err != nil {
			logger.Log.Error().Err(err).Str("station", slug).Msg("Failed to start station")
		}
	}
}

// Start schedules the inactivity checker and serves HTTP until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	stop, err := s.inactivity.Schedule(s.runtime)
	if err != nil {
		return fmt.Errorf("failed to schedule inactivity checker: %w", err)
	}
	s.stopInactivity = stop

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then takes every station off air.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	var shutdownErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
	}

	if s.stopInactivity != nil {
		s.stopInactivity()
	}
	s.pool.StopAll(ctx)

	logger.Log.Info().Msg("Server stopped")
	return shutdownErr
}
