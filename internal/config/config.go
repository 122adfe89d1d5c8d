package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Detector
	// "grpc" talks to a remote model server, "onnx" runs a local YOLO export through OpenCV DNN
	DetectorBackend     string
	AIGRPCURL           string
	AITimeout           time.Duration
	ModelPath           string
	ModelClasses        []string
	ModelInputSize      int
	NMSThreshold        float64
	ConfidenceThreshold float64

	// Paths
	UploadDir      string
	OutputDir      string
	EvidenceDir    string
	MaxUploadBytes int64

	// Evidence
	CaptureEvidence bool
	EvidenceQuality int // JPEG quality (1-100)

	// Alerting
	AlertCap int

	// Telegram
	TelegramBotToken     string
	TelegramAPIURL       string
	TelegramMaxRetries   int
	TelegramRetryDelay   time.Duration
	TelegramMinSpacing   time.Duration
	TelegramTimeout      time.Duration
	TelegramPhotoTimeout time.Duration

	// Email
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string
	EmailSendDelay time.Duration
	EmailTimeout   time.Duration

	// Registration directory
	RegistrationDBPath  string
	RegistrationTimeout time.Duration
	RegistrationOrder   string // poll_first | send_first
	AutoRegister        bool

	// NATS (run events)
	// Default: nats://localhost:4222 (works with Docker Compose setup)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	RunEventsSubject   string

	// Evidence archive (S3)
	S3ArchiveBucket string
	S3ArchivePrefix string
	AWSRegion       string

	// Metrics
	MetricsEnabled bool

	// Live preview (MJPEG)
	PreviewEnabled     bool
	PreviewEveryNFrame int

	// Swagger Configuration
	SwaggerHost string

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "worker-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Detector
		DetectorBackend:     getEnv("DETECTOR_BACKEND", "grpc"),
		AIGRPCURL:           getEnv("AI_GRPC_URL", "localhost:50052"),
		AITimeout:           getEnvDuration("AI_TIMEOUT", 5*time.Second),
		ModelPath:           getEnv("MODEL_PATH", "models/sharp_object.onnx"),
		ModelClasses:        getEnvList("MODEL_CLASSES", []string{"sharp_object"}),
		ModelInputSize:      getEnvInt("MODEL_INPUT_SIZE", 640),
		NMSThreshold:        getEnvFloat("NMS_THRESHOLD", 0.45),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.25),

		// Paths
		UploadDir:      getEnv("UPLOAD_DIR", "videos/input"),
		OutputDir:      getEnv("OUTPUT_DIR", "videos/output"),
		EvidenceDir:    getEnv("EVIDENCE_DIR", "evidence"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 512)) * 1024 * 1024,

		// Evidence
		CaptureEvidence: getEnvBool("CAPTURE_EVIDENCE", true),
		EvidenceQuality: getEnvInt("EVIDENCE_QUALITY", 90),

		// Alerting
		AlertCap: getEnvInt("ALERT_CAP", 10),

		// Telegram
		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIURL:       getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		TelegramMaxRetries:   getEnvInt("TELEGRAM_MAX_RETRIES", 3),
		TelegramRetryDelay:   getEnvDuration("TELEGRAM_RETRY_DELAY", 2*time.Second),
		TelegramMinSpacing:   getEnvDuration("TELEGRAM_MIN_SPACING", 1*time.Second),
		TelegramTimeout:      getEnvDuration("TELEGRAM_TIMEOUT", 30*time.Second),
		TelegramPhotoTimeout: getEnvDuration("TELEGRAM_PHOTO_TIMEOUT", 60*time.Second),

		// Email
		SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:       getEnvInt("SMTP_PORT", 587),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:       getEnv("SMTP_FROM", ""),
		EmailSendDelay: getEnvDuration("EMAIL_SEND_DELAY", 3*time.Second),
		EmailTimeout:   getEnvDuration("EMAIL_TIMEOUT", 30*time.Second),

		// Registration directory
		RegistrationDBPath:  getEnv("REGISTRATION_DB_PATH", "data/registrations.db"),
		RegistrationTimeout: getEnvDuration("REGISTRATION_TIMEOUT", 30*time.Second),
		RegistrationOrder:   getEnv("REGISTRATION_ORDER", "poll_first"),
		AutoRegister:        getEnvBool("AUTO_REGISTER", false),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		RunEventsSubject:   getEnv("RUN_EVENTS_SUBJECT", "cutwatch.runs.completed"),

		// Evidence archive
		S3ArchiveBucket: getEnv("S3_ARCHIVE_BUCKET", ""),
		S3ArchivePrefix: getEnv("S3_ARCHIVE_PREFIX", "evidence"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		// Metrics
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		// Live preview
		PreviewEnabled:     getEnvBool("PREVIEW_ENABLED", true),
		PreviewEveryNFrame: getEnvInt("PREVIEW_EVERY_N_FRAMES", 5),

		SwaggerHost: getEnv("SWAGGER_HOST", "localhost:8000"),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
