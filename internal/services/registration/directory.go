// Package registration maps Telegram handles to chat ids. A handle is
// registered through a handshake with the Bot API and then persisted.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"cutwatch-worker-go/internal/models"
	"cutwatch-worker-go/internal/services/telegram"
)

const (
	OrderPollFirst = "poll_first"
	OrderSendFirst = "send_first"

	defaultTimeout  = 30 * time.Second
	defaultGreeting = "Hello! This chat is now registered to receive sharp object alerts."
)

// Store persists registrations. Get returns models.ErrNotRegistered on a miss.
type Store interface {
	Get(ctx context.Context, handle string) (*models.RegistrationEntry, error)
	Upsert(ctx context.Context, entry models.RegistrationEntry) error
}

// BotAPI is the part of the Bot API client the handshake needs
type BotAPI interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID, text, parseMode string) (*telegram.Message, error)
}

type Directory struct {
	store    Store
	bot      BotAPI
	timeout  time.Duration
	order    string
	greeting string
	now      func() time.Time
}

type Options struct {
	Timeout  time.Duration
	Order    string
	Greeting string
}

func NewDirectory(store Store, bot BotAPI, opts Options) *Directory {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Order != OrderSendFirst {
		opts.Order = OrderPollFirst
	}
	if opts.Greeting == "" {
		opts.Greeting = defaultGreeting
	}
	return &Directory{
		store:    store,
		bot:      bot,
		timeout:  opts.Timeout,
		order:    opts.Order,
		greeting: opts.Greeting,
		now:      time.Now,
	}
}

// NormalizeHandle strips a leading @ and lowercases the handle
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// Resolve returns the chat id for handle, or models.ErrNotRegistered
func (d *Directory) Resolve(ctx context.Context, handle string) (string, error) {
	key := NormalizeHandle(handle)
	if key == "" {
		return "", fmt.Errorf("%w: empty handle", models.ErrNotRegistered)
	}

	entry, err := d.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return entry.ChannelIdentity, nil
}

// Register runs the handshake for handle and stores the discovered chat id.
// Registering an already registered handle refreshes its identity.
func (d *Directory) Register(ctx context.Context, handle string) (string, error) {
	key := NormalizeHandle(handle)
	if key == "" {
		return "", fmt.Errorf("%w: empty handle", models.ErrRegistrationFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	steps := []func(context.Context, string) (string, error){d.fromUpdates, d.fromGreeting}
	if d.order == OrderSendFirst {
		steps[0], steps[1] = steps[1], steps[0]
	}

	var errs []error
	identity := ""
	for _, step := range steps {
		id, err := step(ctx, key)
		if err == nil {
			identity = id
			break
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if identity == "" {
		return "", fmt.Errorf("%w for @%s: %w", models.ErrRegistrationFailed, key, errors.Join(errs...))
	}

	entry := models.RegistrationEntry{Handle: key, ChannelIdentity: identity, RegisteredAt: d.now()}
	if err := d.store.Upsert(ctx, entry); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrRegistrationFailed, err)
	}

	log.Info().Str("handle", key).Str("chat_id", identity).Msg("Telegram handle registered")
	return identity, nil
}

// fromUpdates looks for the most recent message sent to the bot by handle
func (d *Directory) fromUpdates(ctx context.Context, handle string) (string, error) {
	updates, err := d.bot.GetUpdates(ctx, 0)
	if err != nil {
		return "", err
	}
	for i := len(updates) - 1; i >= 0; i-- {
		msg := updates[i].Message
		if msg == nil || msg.From == nil {
			continue
		}
		if strings.EqualFold(msg.From.Username, handle) {
			return strconv.FormatInt(msg.Chat.ID, 10), nil
		}
	}
	return "", fmt.Errorf("no message from @%s in pending updates", handle)
}

// fromGreeting sends a greeting to @handle and reads the chat id from the reply
func (d *Directory) fromGreeting(ctx context.Context, handle string) (string, error) {
	msg, err := d.bot.SendMessage(ctx, "@"+handle, d.greeting, "")
	if err != nil {
		return "", err
	}
	if msg == nil || msg.Chat.ID == 0 {
		return "", fmt.Errorf("greeting to @%s returned no chat id", handle)
	}
	return strconv.FormatInt(msg.Chat.ID, 10), nil
}
