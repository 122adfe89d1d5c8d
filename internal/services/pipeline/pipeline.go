// Package pipeline runs one analysis request end to end: recipient
// resolution, scan, alert selection, dispatch and run bookkeeping.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cutwatch-worker-go/internal/logging"
	"cutwatch-worker-go/internal/models"
	"cutwatch-worker-go/internal/repository/sqlite"
	"cutwatch-worker-go/internal/services/evidence"
	"cutwatch-worker-go/internal/services/postprocessing"
	"cutwatch-worker-go/internal/services/preview"
	"cutwatch-worker-go/internal/services/scanner"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	RejectedNotRegistered = "not_registered"
)

// Source is an opened input video
type Source interface {
	scanner.Source
	Size() (int, int)
	Close() error
}

// Sink is an opened output video
type Sink interface {
	scanner.Sink
	Close() error
}

// VideoBackend opens videos and renders frames
type VideoBackend interface {
	OpenSource(path string) (Source, error)
	OpenSink(path string, fps float64, width, height int) (Sink, error)
	Annotator() scanner.Annotator
	Encoder() evidence.Encoder
}

// Registry resolves Telegram handles to chat ids
type Registry interface {
	Resolve(ctx context.Context, handle string) (string, error)
	Register(ctx context.Context, handle string) (string, error)
}

// RunRecorder keeps a history of finished runs
type RunRecorder interface {
	Insert(ctx context.Context, rec sqlite.RunRecord) error
}

// Archiver copies a run's evidence somewhere durable
type Archiver interface {
	Archive(ctx context.Context, store *evidence.Store) ([]string, error)
}

// Observer is told when runs start and finish
type Observer interface {
	RunStarted()
	RunFinished(run *models.VideoRun, err error)
}

type Dependencies struct {
	Detector   scanner.Detector
	Video      VideoBackend
	Registry   Registry
	Dispatcher *postprocessing.Service
	Telegram   postprocessing.Channel
	Email      postprocessing.Channel

	// optional
	Archiver   Archiver
	Runs       RunRecorder
	Publishers []models.MessagePublisher
	Observer   Observer
	Preview    *preview.Publisher
}

type Settings struct {
	WorkerID            string
	EvidenceDir         string
	OutputDir           string
	CaptureEvidence     bool
	AlertCap            int
	ConfidenceThreshold float64
	AutoRegister        bool
	RunEventsSubject    string
}

type Pipeline struct {
	deps     Dependencies
	settings Settings
	logger   zerolog.Logger
	now      func() time.Time
}

func New(deps Dependencies, settings Settings) (*Pipeline, error) {
	if deps.Detector == nil {
		return nil, errors.New("detector is required")
	}
	if deps.Video == nil {
		return nil, errors.New("video backend is required")
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = postprocessing.NewService()
	}
	if settings.AlertCap <= 0 {
		settings.AlertCap = postprocessing.DefaultAlertCap
	}
	if settings.ConfidenceThreshold <= 0 || settings.ConfidenceThreshold > 1 {
		settings.ConfidenceThreshold = 0.25
	}

	return &Pipeline{
		deps:     deps,
		settings: settings,
		logger:   log.With().Str("worker_id", settings.WorkerID).Str("service", "pipeline").Logger(),
		now:      time.Now,
	}, nil
}

// Analyze processes one video. On failure the returned run holds whatever
// was known when the run stopped; it is nil when the request was rejected
// before any work started.
func (p *Pipeline) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.VideoRun, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	targets, rejected, err := p.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	started := p.now()
	run := &models.VideoRun{
		ID:         evidence.NewRunID(started),
		VideoName:  req.VideoName,
		SourcePath: req.SourcePath,
		StartedAt:  started,
		Summaries:  make(map[models.Channel]models.ChannelSummary),
	}
	for ch, reason := range rejected {
		run.Summaries[ch] = models.ChannelSummary{Rejected: reason}
	}
	logger := logging.WithRun(p.logger, run.ID)

	if p.deps.Observer != nil {
		p.deps.Observer.RunStarted()
	}
	err = p.execute(ctx, req, run, targets, logger)
	run.FinishedAt = p.now()
	p.finish(ctx, run, err, logger)
	return run, err
}

func (p *Pipeline) validate(req models.AnalysisRequest) error {
	if req.SourcePath == "" {
		return fmt.Errorf("%w: video is required", models.ErrInvalidRequest)
	}
	if !req.AlertingRequested() && !req.GenerateVideo {
		return fmt.Errorf("%w: select at least one of telegram, email or generate_video", models.ErrInvalidRequest)
	}
	if req.AlertTelegram {
		if strings.TrimSpace(req.TelegramHandle) == "" {
			return fmt.Errorf("%w: telegram_username is required for telegram alerts", models.ErrInvalidRequest)
		}
		if p.deps.Telegram == nil || p.deps.Registry == nil {
			return fmt.Errorf("%w: telegram alerts are not configured", models.ErrInvalidRequest)
		}
	}
	if req.AlertEmail {
		if strings.TrimSpace(req.EmailRecipient) == "" {
			return fmt.Errorf("%w: email_recipient is required for email alerts", models.ErrInvalidRequest)
		}
		if p.deps.Email == nil {
			return fmt.Errorf("%w: email alerts are not configured", models.ErrInvalidRequest)
		}
	}
	return nil
}

// resolveTargets turns requested channels into dispatch targets. An
// unregistered handle fails the request unless an output video was also
// requested, in which case only the telegram channel is dropped.
func (p *Pipeline) resolveTargets(ctx context.Context, req models.AnalysisRequest) ([]postprocessing.Target, map[models.Channel]string, error) {
	var targets []postprocessing.Target
	rejected := make(map[models.Channel]string)

	if req.AlertTelegram {
		chatID, err := p.deps.Registry.Resolve(ctx, req.TelegramHandle)
		if errors.Is(err, models.ErrNotRegistered) && p.settings.AutoRegister {
			p.logger.Info().Str("handle", req.TelegramHandle).Msg("Handle not registered, attempting registration")
			chatID, err = p.deps.Registry.Register(ctx, req.TelegramHandle)
			if err != nil {
				p.logger.Warn().Err(err).Str("handle", req.TelegramHandle).Msg("Automatic registration failed")
				err = fmt.Errorf("%w: %v", models.ErrNotRegistered, err)
			}
		}
		switch {
		case err == nil:
			targets = append(targets, postprocessing.Target{Channel: p.deps.Telegram, Address: chatID})
		case errors.Is(err, models.ErrNotRegistered) && req.GenerateVideo:
			p.logger.Warn().Str("handle", req.TelegramHandle).Msg("Handle not registered, continuing without telegram alerts")
			rejected[models.ChannelTelegram] = RejectedNotRegistered
		case errors.Is(err, models.ErrNotRegistered):
			return nil, nil, fmt.Errorf("%w: @%s must start a chat with the bot and register first", models.ErrNotRegistered, strings.TrimPrefix(req.TelegramHandle, "@"))
		default:
			return nil, nil, fmt.Errorf("failed to resolve telegram handle: %w", err)
		}
	}

	if req.AlertEmail {
		targets = append(targets, postprocessing.Target{Channel: p.deps.Email, Address: strings.TrimSpace(req.EmailRecipient)})
	}
	return targets, rejected, nil
}

func (p *Pipeline) execute(ctx context.Context, req models.AnalysisRequest, run *models.VideoRun, targets []postprocessing.Target, logger zerolog.Logger) error {
	source, err := p.deps.Video.OpenSource(req.SourcePath)
	if err != nil {
		if !errors.Is(err, models.ErrSourceUnreadable) {
			err = fmt.Errorf("%w: %v", models.ErrSourceUnreadable, err)
		}
		return err
	}
	defer source.Close()

	opts := scanner.Options{
		Annotator: p.deps.Video.Annotator(),
		Logger:    &logger,
	}
	var sinks teeSink

	if req.GenerateVideo {
		width, height := source.Size()
		outPath := filepath.Join(p.settings.OutputDir, OutputName(run.StartedAt, run.ID, req.VideoName))
		sink, err := p.deps.Video.OpenSink(outPath, source.FPS(), width, height)
		if err != nil {
			return fmt.Errorf("failed to open output video: %w", err)
		}
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close output video")
			}
		}()
		sinks = append(sinks, sink)
		run.OutputVideoPath = outPath
	}

	if p.deps.Preview != nil {
		sinks = append(sinks, p.deps.Preview.Start(run.ID))
		defer p.deps.Preview.Finish(run.ID)
	}
	if len(sinks) > 0 {
		opts.Sink = sinks
	}

	var store *evidence.Store
	if p.settings.CaptureEvidence {
		store, err = evidence.NewRunStore(p.settings.EvidenceDir, run.ID, p.deps.Video.Encoder())
		if err != nil {
			logger.Warn().Err(err).Msg("Evidence store unavailable, continuing without evidence")
		} else {
			opts.CaptureEvidence = true
			opts.Evidence = store
			run.EvidenceDir = store.Dir()
		}
	}

	threshold := p.settings.ConfidenceThreshold
	if req.ConfidenceThreshold > 0 && req.ConfidenceThreshold <= 1 {
		threshold = req.ConfidenceThreshold
	}

	logger.Info().
		Str("video", req.VideoName).
		Float64("threshold", threshold).
		Bool("generate_video", req.GenerateVideo).
		Int("channels", len(targets)).
		Msg("Starting analysis")

	ledger, err := scanner.Scan(ctx, source, p.deps.Detector, threshold, opts)
	if store != nil {
		run.EvidenceFiles = store.Files()
	}
	if err != nil {
		var scanErr *models.ScanError
		if errors.As(err, &scanErr) {
			// partial results are reported but never dispatched
			run.Ledger.FramesScanned = scanErr.FramesScanned
			run.Ledger.FPS = scanErr.Ledger.FPS
		}
		return err
	}

	run.Ledger = ledger
	run.ScanComplete = true
	run.Selection = postprocessing.Select(ledger, p.settings.AlertCap)

	if len(targets) > 0 {
		report := p.deps.Dispatcher.WithLogger(logger).Dispatch(ctx, postprocessing.Batch{
			VideoName: req.VideoName,
			Selection: run.Selection,
			Targets:   targets,
			EvidencePath: func(ref models.EvidenceRef) string {
				if store == nil {
					return ""
				}
				return store.PathOf(ref)
			},
		})
		run.Outcomes = report.Outcomes
		for ch, summary := range report.Summaries {
			run.Summaries[ch] = summary
		}
	}

	if p.deps.Archiver != nil && store != nil && len(run.EvidenceFiles) > 0 {
		keys, err := p.deps.Archiver.Archive(ctx, store)
		if err != nil {
			logger.Warn().Err(err).Msg("Evidence archive incomplete")
		}
		run.ArchivedKeys = keys
	}
	return nil
}

// finish records the run and announces it; none of this can fail the run
func (p *Pipeline) finish(ctx context.Context, run *models.VideoRun, runErr error, logger zerolog.Logger) {
	status := StatusCompleted
	if runErr != nil {
		status = StatusFailed
	}

	if p.deps.Observer != nil {
		p.deps.Observer.RunFinished(run, runErr)
	}

	if p.deps.Runs != nil {
		if err := p.deps.Runs.Insert(context.WithoutCancel(ctx), sqlite.RecordFromRun(run, status, runErr)); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run")
		}
	}

	event := models.RunEvent{
		RunID:           run.ID,
		WorkerID:        p.settings.WorkerID,
		VideoName:       run.VideoName,
		Status:          status,
		ObjectDetected:  run.ObjectDetected(),
		TotalDetections: run.Ledger.Len(),
		FramesScanned:   run.Ledger.FramesScanned,
		Channels:        run.Summaries,
		Timestamp:       run.FinishedAt,
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}
	for _, pub := range p.deps.Publishers {
		if err := pub.Publish(p.settings.RunEventsSubject, event); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish run event")
		}
	}

	e := logger.Info()
	if runErr != nil {
		e = logger.Error().Err(runErr)
	}
	e.Str("status", status).
		Int("frames_scanned", run.Ledger.FramesScanned).
		Int("detections", run.Ledger.Len()).
		Int("shown", run.Selection.Shown()).
		Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).
		Msg("Analysis finished")
}

// teeSink writes every frame to each sink in turn
type teeSink []scanner.Sink

func (t teeSink) Write(frame models.Frame) error {
	var errs []error
	for _, s := range t {
		if err := s.Write(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OutputName is the processed video file name for a source video. The run
// id suffix keeps runs started in the same second apart.
func OutputName(at time.Time, runID, videoName string) string {
	ts := at.Format("2006-01-02_15-04-05")
	suffix := runID[strings.LastIndex(runID, "_")+1:]
	if suffix == "" {
		return fmt.Sprintf("processed_%s_%s", ts, SanitizeFileName(videoName))
	}
	return fmt.Sprintf("processed_%s_%s_%s", ts, suffix, SanitizeFileName(videoName))
}

// SanitizeFileName keeps the base name and replaces characters that are
// awkward in paths and URLs
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "video.mp4"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
