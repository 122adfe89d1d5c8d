package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cutwatch-worker-go/internal/config"
)

// Init configures the global logger: console output at LOG_LEVEL, teed to the
// Logdy UI when enabled. It returns the Logdy URL, if any.
func Init(cfg *config.Config) string {
	zerolog.TimeFieldFormat = time.RFC3339
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}

	logdyURL := ""
	if cfg.LogdyEnabled {
		if w, url, err := StartLogdy(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to start Logdy")
		} else {
			out = zerolog.MultiLevelWriter(out, w)
			logdyURL = url
		}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return logdyURL
}

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("worker_id", cfg.WorkerID).Str("service", service).Logger()
}

func WithRun(base zerolog.Logger, runID string) zerolog.Logger {
	return base.With().Str("run_id", runID).Logger()
}
