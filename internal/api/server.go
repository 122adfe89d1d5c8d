package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"cutwatch-worker-go/internal/api/handlers"
	"cutwatch-worker-go/internal/api/middleware"
	"cutwatch-worker-go/internal/config"
	"cutwatch-worker-go/internal/services/preview"
	"cutwatch-worker-go/internal/services/websocket"
)

// Dependencies are the services the HTTP layer talks to. Registry, Runs,
// Hub, Preview and Metrics may be nil; their routes then report
// unavailability or are not mounted.
type Dependencies struct {
	Analyzer        handlers.Analyzer
	Registry        handlers.Registry
	Runs            handlers.RunStore
	Hub             *websocket.Hub
	Preview         *preview.Publisher
	Metrics         http.Handler
	DetectorHealthy func() bool
}

type Server struct {
	config *config.Config
	deps   Dependencies
	router *gin.Engine
	server *http.Server

	healthHandler       *handlers.HealthHandler
	analysisHandler     *handlers.AnalysisHandler
	registrationHandler *handlers.RegistrationHandler
	artifactHandler     *handlers.ArtifactHandler
	runHandler          *handlers.RunHandler
	eventsHandler       *handlers.EventsHandler
	previewHandler      *handlers.PreviewHandler
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:              cfg,
		deps:                deps,
		router:              gin.New(),
		healthHandler:       handlers.NewHealthHandler(cfg.WorkerID, cfg.Version, deps.DetectorHealthy),
		analysisHandler:     handlers.NewAnalysisHandler(deps.Analyzer, cfg.UploadDir),
		registrationHandler: handlers.NewRegistrationHandler(deps.Registry),
		artifactHandler:     handlers.NewArtifactHandler(cfg.EvidenceDir, cfg.OutputDir),
	}
	if deps.Runs != nil {
		s.runHandler = handlers.NewRunHandler(deps.Runs)
	}
	if deps.Hub != nil {
		s.eventsHandler = handlers.NewEventsHandler(deps.Hub)
	}
	if deps.Preview != nil {
		s.previewHandler = handlers.NewPreviewHandler(deps.Preview)
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

// Start blocks until the server stops. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting CutWatch worker API")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping CutWatch worker API")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}
