// Package notify holds the channel adapters used by the dispatcher.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"cutwatch-worker-go/internal/helpers"
	"cutwatch-worker-go/internal/models"
	"cutwatch-worker-go/internal/services/postprocessing"
	"cutwatch-worker-go/internal/services/telegram"
)

// MessageSender is the part of the Bot API client the adapter needs
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text, parseMode string) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chatID, photoPath, caption string) (*telegram.Message, error)
}

// Telegram sends the HTML text with retries, then the evidence photo once
// on a best-effort basis
type Telegram struct {
	client  MessageSender
	retry   helpers.RetryPolicy
	spacing time.Duration
}

type TelegramOptions struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Spacing     time.Duration
	// Sleep overrides the wait between attempts
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewTelegram(client MessageSender, opts TelegramOptions) *Telegram {
	return &Telegram{
		client: client,
		retry: helpers.RetryPolicy{
			MaxAttempts: opts.MaxAttempts,
			Delay:       opts.RetryDelay,
			Retryable:   telegram.IsRetryable,
			Sleep:       opts.Sleep,
		},
		spacing: opts.Spacing,
	}
}

func (t *Telegram) Name() models.Channel   { return models.ChannelTelegram }
func (t *Telegram) Spacing() time.Duration { return t.spacing }

func (t *Telegram) Deliver(ctx context.Context, chatID string, n postprocessing.Notification) models.DispatchOutcome {
	outcome := models.DispatchOutcome{Channel: models.ChannelTelegram, Target: chatID, Kind: n.Kind}
	if chatID == "" {
		outcome.LastError = fmt.Errorf("%w: empty chat id", models.ErrChannelSendFailed).Error()
		return outcome
	}

	attempts, err := t.retry.Do(ctx, func(ctx context.Context) error {
		_, err := t.client.SendMessage(ctx, chatID, n.Text, telegram.ParseModeHTML)
		if err != nil {
			log.Warn().Err(err).Str("chat_id", chatID).Msg("Telegram send attempt failed")
		}
		return err
	})
	outcome.Attempts = attempts
	if err != nil {
		outcome.LastError = fmt.Errorf("%w: %v", models.ErrChannelSendFailed, err).Error()
		return outcome
	}
	outcome.Succeeded = true

	if n.PhotoPath != "" {
		outcome.PhotoSent = t.sendPhoto(ctx, chatID, n)
	}
	return outcome
}

func (t *Telegram) sendPhoto(ctx context.Context, chatID string, n postprocessing.Notification) bool {
	if _, err := os.Stat(n.PhotoPath); errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("photo", n.PhotoPath).Msg("Evidence image not found, sending text only")
		return false
	}

	caption := ""
	if n.Detection != nil {
		caption = fmt.Sprintf("Frame %d", n.Detection.FrameIndex)
	}
	if _, err := t.client.SendPhoto(ctx, chatID, n.PhotoPath, caption); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Str("photo", n.PhotoPath).Msg("Failed to send evidence photo")
		return false
	}
	return true
}
