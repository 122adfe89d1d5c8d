package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"

	"cutwatch-worker-go/internal/models"
	"cutwatch-worker-go/internal/services/postprocessing"
)

// MailSender is satisfied by *mail.Client
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// NewSMTPClient builds a relay client with mandatory STARTTLS and plain auth
func NewSMTPClient(cfg SMTPConfig) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client, nil
}

// Email makes a single delivery attempt per notification
type Email struct {
	sender  MailSender
	from    string
	spacing time.Duration
}

func NewEmail(sender MailSender, from string, spacing time.Duration) *Email {
	return &Email{sender: sender, from: from, spacing: spacing}
}

func (e *Email) Name() models.Channel   { return models.ChannelEmail }
func (e *Email) Spacing() time.Duration { return e.spacing }

func (e *Email) Deliver(ctx context.Context, recipient string, n postprocessing.Notification) models.DispatchOutcome {
	outcome := models.DispatchOutcome{Channel: models.ChannelEmail, Target: recipient, Kind: n.Kind}

	msg, err := e.buildMessage(recipient, n)
	if err != nil {
		outcome.LastError = fmt.Errorf("%w: %v", models.ErrChannelSendFailed, err).Error()
		return outcome
	}

	outcome.Attempts = 1
	if err := e.sender.DialAndSendWithContext(ctx, msg); err != nil {
		log.Warn().Err(err).Str("recipient", recipient).Msg("Email send failed")
		outcome.LastError = fmt.Errorf("%w: %v", models.ErrChannelSendFailed, err).Error()
		return outcome
	}

	outcome.Succeeded = true
	outcome.PhotoSent = len(msg.GetAttachments()) > 0
	return outcome
}

func (e *Email) buildMessage(recipient string, n postprocessing.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(e.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", e.from, err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", recipient, err)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextPlain, n.PlainText)

	if n.PhotoPath != "" {
		if _, err := os.Stat(n.PhotoPath); errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("photo", n.PhotoPath).Msg("Evidence image not found, sending without attachment")
		} else {
			msg.AttachFile(n.PhotoPath)
		}
	}
	return msg, nil
}
