package api

import (
	"github.com/gin-gonic/gin"

	"cutwatch-worker-go/internal/api/middleware"
)

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyses", middleware.BodyLimit(s.config.MaxUploadBytes), s.analysisHandler.Analyze)

		registrations := v1.Group("/registrations")
		{
			registrations.POST("", s.registrationHandler.Register)
			registrations.GET("/:handle", s.registrationHandler.Resolve)
		}

		runs := v1.Group("/runs")
		{
			if s.runHandler != nil {
				runs.GET("", s.runHandler.ListRuns)
				runs.GET("/:run_id", s.runHandler.GetRun)
			}
			runs.GET("/:run_id/evidence/:file", s.artifactHandler.Evidence)
			if s.previewHandler != nil {
				runs.GET("/:run_id/preview", s.previewHandler.Stream)
			}
		}

		if s.previewHandler != nil {
			v1.GET("/previews", s.previewHandler.ListActive)
		}

		v1.GET("/outputs/:file", s.artifactHandler.Output)
	}

	if s.eventsHandler != nil {
		s.router.GET("/ws/runs", s.eventsHandler.Stream)
	}
}
