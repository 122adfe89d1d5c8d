// Package postprocessing turns a detection ledger into a bounded, spaced
// notification batch.
package postprocessing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"cutwatch-worker-go/internal/models"
)

// Channel delivers notifications to one kind of recipient
type Channel interface {
	Name() models.Channel
	// Spacing is the minimum gap between two sends of this channel within a batch
	Spacing() time.Duration
	Deliver(ctx context.Context, target string, n Notification) models.DispatchOutcome
}

// Target pairs a channel with a resolved recipient
type Target struct {
	Channel Channel
	Address string
}

// Batch is everything needed to notify the recipients of one run
type Batch struct {
	VideoName    string
	Selection    models.AlertSelection
	Targets      []Target
	EvidencePath func(models.EvidenceRef) string
}

// Report is the result of a dispatch
type Report struct {
	Outcomes  []models.DispatchOutcome
	Summaries map[models.Channel]models.ChannelSummary
}

// Service dispatches notification batches. It never fails a batch: every
// attempt ends up as an outcome.
type Service struct {
	logger zerolog.Logger
}

func NewService() *Service {
	return &Service{logger: log.With().Str("service", "dispatcher").Logger()}
}

// WithLogger returns a copy of the service logging through logger
func (s *Service) WithLogger(logger zerolog.Logger) *Service {
	return &Service{logger: logger}
}

// Dispatch sends the batch channel by channel. Within a channel notifications
// go out in selection order, spaced by the channel's Spacing.
func (s *Service) Dispatch(ctx context.Context, batch Batch) Report {
	report := Report{Summaries: make(map[models.Channel]models.ChannelSummary)}
	notifications := s.plan(batch)

	for _, target := range batch.Targets {
		name := target.Channel.Name()
		summary := models.ChannelSummary{
			Truncated: batch.Selection.Truncated,
			Shown:     batch.Selection.Shown(),
			Total:     batch.Selection.TotalCount,
		}

		limiter := newLimiter(target.Channel.Spacing())
		for _, n := range notifications {
			var outcome models.DispatchOutcome
			if err := limiter.Wait(ctx); err != nil {
				outcome = models.DispatchOutcome{
					Channel:   name,
					Target:    target.Address,
					Kind:      n.Kind,
					LastError: err.Error(),
				}
			} else {
				outcome = target.Channel.Deliver(ctx, target.Address, n)
				outcome.Channel = name
				outcome.Target = target.Address
				outcome.Kind = n.Kind
			}
			if n.Detection != nil {
				outcome.FrameIndex = n.Detection.FrameIndex
			}

			summary.Record(outcome)
			report.Outcomes = append(report.Outcomes, outcome)

			if !outcome.Succeeded {
				s.logger.Warn().
					Str("channel", name.String()).
					Str("kind", string(n.Kind)).
					Int("attempts", outcome.Attempts).
					Str("error", outcome.LastError).
					Msg("Notification failed")
			}
		}

		report.Summaries[name] = summary
		s.logger.Info().
			Str("channel", name.String()).
			Int("sent", summary.Sent).
			Int("failed", summary.Failed).
			Int("shown", summary.Shown).
			Int("total", summary.Total).
			Bool("truncated", summary.Truncated).
			Msg("Channel dispatch complete")
	}

	return report
}

// plan builds the ordered notification list shared by every channel
func (s *Service) plan(batch Batch) []Notification {
	sel := batch.Selection
	if sel.TotalCount == 0 {
		return []Notification{clearNotification(batch.VideoName)}
	}

	out := make([]Notification, 0, len(sel.Items)+1)
	for _, det := range sel.Items {
		photo := ""
		if det.EvidenceRef != "" && batch.EvidencePath != nil {
			photo = batch.EvidencePath(det.EvidenceRef)
		}
		out = append(out, detectionNotification(batch.VideoName, det, photo))
	}
	if sel.Truncated {
		out = append(out, summaryNotification(batch.VideoName, sel.Shown(), sel.TotalCount))
	}
	return out
}

// newLimiter allows one send immediately and then one per spacing
func newLimiter(spacing time.Duration) *rate.Limiter {
	if spacing <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(spacing), 1)
}
