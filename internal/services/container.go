package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"cutwatch-worker-go/internal/config"
	"cutwatch-worker-go/internal/helpers"
	"cutwatch-worker-go/internal/repository/sqlite"
	"cutwatch-worker-go/internal/services/detection"
	"cutwatch-worker-go/internal/services/detection/onnx"
	"cutwatch-worker-go/internal/services/evidence"
	"cutwatch-worker-go/internal/services/messaging"
	"cutwatch-worker-go/internal/services/metrics"
	"cutwatch-worker-go/internal/services/notify"
	"cutwatch-worker-go/internal/services/pipeline"
	"cutwatch-worker-go/internal/services/postprocessing"
	"cutwatch-worker-go/internal/services/preview"
	"cutwatch-worker-go/internal/services/registration"
	"cutwatch-worker-go/internal/services/scanner"
	"cutwatch-worker-go/internal/services/telegram"
	"cutwatch-worker-go/internal/services/videoio"
	"cutwatch-worker-go/internal/services/websocket"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config *config.Config

	Detector     scanner.Detector
	DB           *sqlite.DB
	Runs         *sqlite.RunRepository
	Bot          *telegram.Client
	Directory    *registration.Directory
	Pipeline     *pipeline.Pipeline
	Messaging    *messaging.Service
	Hub          *websocket.Hub
	Metrics      *metrics.Metrics
	Preview      *preview.Publisher
	EvidenceSink *evidence.Archiver

	hubCancel context.CancelFunc
}

// NewServiceContainer wires every service from cfg. Optional services
// (NATS, S3, SMTP, Telegram) are skipped with a warning when unconfigured.
func NewServiceContainer(ctx context.Context, cfg *config.Config) (*ServiceContainer, error) {
	sc := &ServiceContainer{Config: cfg}

	detector, err := newDetector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	sc.Detector = detector

	db, err := sqlite.New(cfg.RegistrationDBPath)
	if err != nil {
		sc.closeDetector(ctx)
		return nil, fmt.Errorf("failed to open registration database: %w", err)
	}
	sc.DB = db
	sc.Runs = sqlite.NewRunRepository(db)
	registrations := sqlite.NewRegistrationRepository(db)

	deps := pipeline.Dependencies{
		Detector:   detector,
		Video:      newGocvBackend(helpers.ClampQuality(cfg.EvidenceQuality)),
		Dispatcher: postprocessing.NewService(),
		Runs:       sc.Runs,
	}

	sc.Bot = telegram.NewClient(cfg.TelegramBotToken, telegram.Options{
		BaseURL:      cfg.TelegramAPIURL,
		Timeout:      cfg.TelegramTimeout,
		PhotoTimeout: cfg.TelegramPhotoTimeout,
	})
	if sc.Bot.Configured() {
		sc.Directory = registration.NewDirectory(registrations, sc.Bot, registration.Options{
			Timeout: cfg.RegistrationTimeout,
			Order:   cfg.RegistrationOrder,
		})
		deps.Registry = sc.Directory
		deps.Telegram = notify.NewTelegram(sc.Bot, notify.TelegramOptions{
			MaxAttempts: cfg.TelegramMaxRetries,
			RetryDelay:  cfg.TelegramRetryDelay,
			Spacing:     cfg.TelegramMinSpacing,
		})
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, telegram alerts disabled")
	}

	if cfg.SMTPUsername != "" && cfg.SMTPFrom != "" {
		client, err := notify.NewSMTPClient(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Timeout:  cfg.EmailTimeout,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Email alerts disabled")
		} else {
			deps.Email = notify.NewEmail(client, cfg.SMTPFrom, cfg.EmailSendDelay)
		}
	} else {
		log.Warn().Msg("SMTP credentials not set, email alerts disabled")
	}

	if cfg.S3ArchiveBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load AWS config, evidence archive disabled")
		} else {
			sc.EvidenceSink = evidence.NewArchiver(s3.NewFromConfig(awsCfg), cfg.S3ArchiveBucket, cfg.S3ArchivePrefix)
			deps.Archiver = sc.EvidenceSink
			log.Info().Str("bucket", cfg.S3ArchiveBucket).Msg("Evidence archive enabled")
		}
	}

	sc.Hub = websocket.NewHub()
	hubCtx, cancel := context.WithCancel(context.Background())
	sc.hubCancel = cancel
	go sc.Hub.Run(hubCtx)
	deps.Publishers = append(deps.Publishers, sc.Hub)

	if cfg.NatsEnabled {
		msg, err := messaging.NewService(cfg)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NatsURL).Msg("NATS unavailable, run events stay local")
		} else {
			sc.Messaging = msg
			deps.Publishers = append(deps.Publishers, msg)
		}
	}

	if cfg.MetricsEnabled {
		sc.Metrics = metrics.New()
		deps.Observer = sc.Metrics
	}

	if cfg.PreviewEnabled {
		sc.Preview = preview.NewPublisher(preview.Encoder(videoio.JPEGEncoder(helpers.LowQuality)), cfg.PreviewEveryNFrame)
		deps.Preview = sc.Preview
	}

	p, err := pipeline.New(deps, pipeline.Settings{
		WorkerID:            cfg.WorkerID,
		EvidenceDir:         cfg.EvidenceDir,
		OutputDir:           cfg.OutputDir,
		CaptureEvidence:     cfg.CaptureEvidence,
		AlertCap:            cfg.AlertCap,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		AutoRegister:        cfg.AutoRegister,
		RunEventsSubject:    cfg.RunEventsSubject,
	})
	if err != nil {
		sc.Shutdown(ctx)
		return nil, err
	}
	sc.Pipeline = p

	return sc, nil
}

func newDetector(cfg *config.Config) (scanner.Detector, error) {
	switch strings.ToLower(cfg.DetectorBackend) {
	case "onnx":
		return onnx.NewDetector(cfg.ModelPath, cfg.ModelClasses, cfg.ModelInputSize, cfg.NMSThreshold)
	case "grpc", "":
		return detection.NewGRPCDetector(cfg.AIGRPCURL, cfg.AITimeout, videoio.JPEGEncoder(helpers.MediumQuality))
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}
}

// DetectorHealthy reports the detector state when the backend tracks one
func (sc *ServiceContainer) DetectorHealthy() bool {
	if hc, ok := sc.Detector.(detection.HealthChecker); ok {
		return hc.IsHealthy()
	}
	return sc.Detector != nil
}

func (sc *ServiceContainer) closeDetector(ctx context.Context) {
	switch d := sc.Detector.(type) {
	case *detection.GRPCDetector:
		if err := d.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Error shutting down detector")
		}
	case *onnx.Detector:
		if err := d.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing detector")
		}
	}
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error

	if sc.hubCancel != nil {
		sc.hubCancel()
	}

	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	sc.closeDetector(ctx)

	if sc.DB != nil {
		if err := sc.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
