package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"cutwatch-worker-go/internal/api"
	"cutwatch-worker-go/internal/config"
	"cutwatch-worker-go/internal/logging"
	"cutwatch-worker-go/internal/services"
)

// @title CutWatch Worker API
// @version 1.0.0
// @description Scans uploaded videos for sharp objects and alerts registered recipients over Telegram and email
// @BasePath /
func main() {
	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logdyURL := logging.Init(cfg)
	logger := logging.NewServiceLogger(cfg, "worker")

	logger.Info().
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("detector", cfg.DetectorBackend).
		Int("alert_cap", cfg.AlertCap).
		Bool("nats_enabled", cfg.NatsEnabled).
		Str("logdy", logdyURL).
		Msg("Starting CutWatch worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := services.NewServiceContainer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	deps := api.Dependencies{
		Analyzer:        container.Pipeline,
		Runs:            container.Runs,
		Hub:             container.Hub,
		Preview:         container.Preview,
		DetectorHealthy: container.DetectorHealthy,
	}
	if container.Directory != nil {
		deps.Registry = container.Directory
	}
	if container.Metrics != nil {
		deps.Metrics = container.Metrics.Handler()
	}

	server := api.NewServer(cfg, deps)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("Server failed")
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down services")
		os.Exit(1)
	}
	logger.Info().Msg("Shutdown complete")
}
