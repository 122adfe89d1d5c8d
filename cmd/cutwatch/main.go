package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"cutwatch-worker-go/internal/config"
	"cutwatch-worker-go/internal/logging"
	"cutwatch-worker-go/internal/models"
	"cutwatch-worker-go/internal/repository/sqlite"
	"cutwatch-worker-go/internal/services"
	"cutwatch-worker-go/internal/services/messaging"
	"cutwatch-worker-go/internal/services/registration"
	"cutwatch-worker-go/internal/services/telegram"
)

// CLI flags
var (
	telegramFlag      string
	emailFlag         string
	generateVideoFlag bool
	confidenceFlag    float64
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cutwatch",
	Short: "Scan videos for sharp objects and alert registered recipients",
	Long: `CutWatch runs the same analysis pipeline as the worker API from the command line.
Configuration is read from the environment and an optional .env file.

Examples:
  cutwatch analyze ./hall.mp4 --telegram alice --generate-video
  cutwatch analyze ./door.mp4 --email ops@example.com --confidence 0.4
  cutwatch register alice
  cutwatch resolve alice
  cutwatch watch`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logging.Init(cfg)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <video>",
	Short: "Analyze a local video file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var registerCmd = &cobra.Command{
	Use:   "register <handle>",
	Short: "Register a Telegram handle with the bot",
	Long: `Register runs the bot handshake for a handle. The user must have started a chat
with the bot before registering.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <handle>",
	Short: "Show the chat id stored for a Telegram handle",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print run events published on NATS",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	analyzeCmd.Flags().StringVar(&telegramFlag, "telegram", "", "Send Telegram alerts to this registered handle")
	analyzeCmd.Flags().StringVar(&emailFlag, "email", "", "Send email alerts to this address")
	analyzeCmd.Flags().BoolVar(&generateVideoFlag, "generate-video", false, "Write an annotated copy of the video to OUTPUT_DIR")
	analyzeCmd.Flags().Float64Var(&confidenceFlag, "confidence", 0, "Detection confidence threshold in (0, 1] (0 = CONFIDENCE_THRESHOLD)")

	rootCmd.AddCommand(analyzeCmd, registerCmd, resolveCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("video not found: %w", err)
	}

	container, err := services.NewServiceContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer container.Shutdown(context.Background())

	req := models.AnalysisRequest{
		VideoName:           filepath.Base(path),
		SourcePath:          path,
		AlertTelegram:       telegramFlag != "",
		TelegramHandle:      telegramFlag,
		AlertEmail:          emailFlag != "",
		EmailRecipient:      emailFlag,
		GenerateVideo:       generateVideoFlag,
		ConfidenceThreshold: confidenceFlag,
	}

	run, err := container.Pipeline.Analyze(ctx, req)
	if run != nil {
		printJSON(run)
	}
	if errors.Is(err, models.ErrNotRegistered) {
		fmt.Fprintf(os.Stderr, "Handle %q is not registered. Ask the user to message the bot, then run: cutwatch register %s\n", telegramFlag, telegramFlag)
	}
	return err
}

// openDirectory builds just the pieces the registration commands need
func openDirectory() (*registration.Directory, func(), error) {
	bot := telegram.NewClient(cfg.TelegramBotToken, telegram.Options{
		BaseURL: cfg.TelegramAPIURL,
		Timeout: cfg.TelegramTimeout,
	})
	if !bot.Configured() {
		return nil, nil, errors.New("TELEGRAM_BOT_TOKEN is not set")
	}

	db, err := sqlite.New(cfg.RegistrationDBPath)
	if err != nil {
		return nil, nil, err
	}
	dir := registration.NewDirectory(sqlite.NewRegistrationRepository(db), bot, registration.Options{
		Timeout: cfg.RegistrationTimeout,
		Order:   cfg.RegistrationOrder,
	})
	return dir, func() { db.Close() }, nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	dir, closeFn, err := openDirectory()
	if err != nil {
		return err
	}
	defer closeFn()

	identity, err := dir.Register(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printJSON(map[string]string{"handle": registration.NormalizeHandle(args[0]), "channel_identity": identity})
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	dir, closeFn, err := openDirectory()
	if err != nil {
		return err
	}
	defer closeFn()

	identity, err := dir.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printJSON(map[string]string{"handle": registration.NormalizeHandle(args[0]), "channel_identity": identity})
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	msg, err := messaging.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NatsURL, err)
	}
	defer msg.Shutdown(context.Background())

	sub, err := msg.SubscribeRunEvents(cfg.RunEventsSubject, func(event models.RunEvent) {
		printJSON(event)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	log.Info().Str("subject", cfg.RunEventsSubject).Msg("Watching run events")
	<-ctx.Done()
	return nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode output")
	}
}
