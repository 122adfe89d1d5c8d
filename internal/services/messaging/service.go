package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"cutwatch-worker-go/internal/config"
	"cutwatch-worker-go/internal/models"
)

// Service carries finished-run events over NATS. The pipeline publishes one
// RunEvent per run; `cutwatch watch` subscribes to the same subject.
type Service struct {
	conn *nats.Conn
	cfg  *config.Config
}

func NewService(cfg *config.Config) (*Service, error) {
	opts := []nats.Option{
		nats.Name("cutwatch-" + cfg.WorkerID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Str("subject", cfg.RunEventsSubject).Msg("Run event bus disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Run event bus reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect run event bus: %w", err)
	}

	log.Info().Str("url", cfg.NatsURL).Str("subject", cfg.RunEventsSubject).Msg("Run event bus connected")

	return &Service{conn: conn, cfg: cfg}, nil
}

// Publish sends a RunEvent (or any JSON value) on subject
func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := encodeEvent(data)
	if err != nil {
		return err
	}
	return s.conn.Publish(subject, payload)
}

// SubscribeRunEvents delivers decoded run events; malformed payloads are
// logged and skipped
func (s *Service) SubscribeRunEvents(subject string, handler func(models.RunEvent)) (*nats.Subscription, error) {
	return s.conn.Subscribe(subject, func(msg *nats.Msg) {
		event, err := decodeRunEvent(msg.Data)
		if err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("Ignoring malformed run event")
			return
		}
		handler(event)
	})
}

func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Shutdown drains pending run events before closing
func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		log.Warn().Err(err).Msg("Run event bus drain failed, closing")
		s.conn.Close()
	}
	return nil
}

func encodeEvent(data interface{}) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode run event: %w", err)
	}
	return payload, nil
}

func decodeRunEvent(data []byte) (models.RunEvent, error) {
	var event models.RunEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return models.RunEvent{}, fmt.Errorf("decode run event: %w", err)
	}
	if event.RunID == "" {
		return models.RunEvent{}, fmt.Errorf("run event without run_id")
	}
	return event, nil
}
