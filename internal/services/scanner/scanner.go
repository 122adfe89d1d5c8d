// Package scanner walks a video frame by frame, runs the detector and folds
// the hits into a detection ledger.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cutwatch-worker-go/internal/models"
)

// Source yields frames in order and io.EOF at end of stream
type Source interface {
	Next() (models.Frame, error)
	FPS() float64
}

type Detector interface {
	Detect(ctx context.Context, frame models.Frame, threshold float64) ([]models.RawDetection, error)
}

// Annotator draws every detection of a frame onto it
type Annotator interface {
	Annotate(frame models.Frame, detections []models.RawDetection) (models.Frame, error)
}

// Sink receives every frame in input order
type Sink interface {
	Write(frame models.Frame) error
}

// Evidence persists at most one annotated frame per frame index
type Evidence interface {
	Put(frameIndex int, frame models.Frame) (models.EvidenceRef, error)
}

type Options struct {
	CaptureEvidence bool
	Evidence        Evidence
	Annotator       Annotator
	Sink            Sink
	Logger          *zerolog.Logger

	// OnFrame is called after each frame with the number of frames scanned so far
	OnFrame func(scanned int)
}

// Scan runs detector over every frame of source. On failure the returned
// error is a *models.ScanError holding the partial ledger; the first return
// value is then empty.
func Scan(ctx context.Context, source Source, detector Detector, threshold float64, opts Options) (models.DetectionLedger, error) {
	logger := opts.Logger
	if logger == nil {
		l := log.Logger
		logger = &l
	}

	fps := source.FPS()
	ledger := models.DetectionLedger{FPS: fps}

	fail := func(kind error, frameIndex int, err error) (models.DetectionLedger, error) {
		logger.Error().
			Err(err).
			Int("frame", frameIndex).
			Int("frames_scanned", ledger.FramesScanned).
			Int("detections", ledger.Len()).
			Msg("Scan aborted")
		return models.DetectionLedger{}, &models.ScanError{
			Kind:          kind,
			FrameIndex:    frameIndex,
			FramesScanned: ledger.FramesScanned,
			Ledger:        ledger,
			Err:           err,
		}
	}

	for frameIndex := 0; ; frameIndex++ {
		if err := ctx.Err(); err != nil {
			return fail(models.ErrScanTruncated, frameIndex, err)
		}

		frame, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(models.ErrScanTruncated, frameIndex, err)
		}

		if err := scanFrame(ctx, frameIndex, frame, detector, threshold, opts, &ledger, logger); err != nil {
			frame.Close()
			return fail(models.ErrDetectorFailed, frameIndex, err)
		}
		frame.Close()

		ledger.FramesScanned++
		if opts.OnFrame != nil {
			opts.OnFrame(ledger.FramesScanned)
		}
	}

	logger.Info().
		Int("frames_scanned", ledger.FramesScanned).
		Int("detections", ledger.Len()).
		Int("evidence_frames", len(ledger.EvidenceFrames())).
		Msg("Scan complete")

	return ledger, nil
}

// scanFrame only returns detector errors; sink and evidence failures are logged
func scanFrame(ctx context.Context, frameIndex int, frame models.Frame, detector Detector, threshold float64, opts Options, ledger *models.DetectionLedger, logger *zerolog.Logger) error {
	raw, err := detector.Detect(ctx, frame, threshold)
	if err != nil {
		return err
	}

	if len(raw) == 0 {
		writeSink(opts.Sink, frame, frameIndex, logger)
		return nil
	}

	annotated := frame
	if opts.Annotator != nil {
		if a, err := opts.Annotator.Annotate(frame, raw); err != nil {
			logger.Warn().Err(err).Int("frame", frameIndex).Msg("Failed to annotate frame")
		} else if a != nil {
			annotated = a
			if a != frame {
				defer a.Close()
			}
		}
	}
	writeSink(opts.Sink, annotated, frameIndex, logger)

	var ref models.EvidenceRef
	if opts.CaptureEvidence && opts.Evidence != nil {
		r, err := opts.Evidence.Put(frameIndex, annotated)
		if err != nil {
			logger.Warn().
				Err(fmt.Errorf("%w: %v", models.ErrEvidenceWriteFailed, err)).
				Int("frame", frameIndex).
				Msg("Evidence not captured, keeping detections")
		} else {
			ref = r
		}
	}

	timestamp := 0.0
	if ledger.FPS > 0 {
		timestamp = float64(frameIndex) / ledger.FPS
	}
	for _, det := range raw {
		ledger.Detections = append(ledger.Detections, models.Detection{
			FrameIndex:  frameIndex,
			Timestamp:   timestamp,
			ClassLabel:  det.ClassLabel,
			Confidence:  det.Confidence,
			Box:         det.Box,
			EvidenceRef: ref,
		})
	}

	logger.Debug().
		Int("frame", frameIndex).
		Int("hits", len(raw)).
		Str("evidence", string(ref)).
		Msg("Detections recorded")
	return nil
}

func writeSink(sink Sink, frame models.Frame, frameIndex int, logger *zerolog.Logger) {
	if sink == nil {
		return
	}
	if err := sink.Write(frame); err != nil {
		logger.Warn().Err(err).Int("frame", frameIndex).Msg("Failed to write frame to output video")
	}
}
