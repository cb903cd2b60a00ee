package eventbus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"planpoker/internal/pkg/logx"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
	natsFlushTimeout  = 5 * time.Second

	// GameIDHeader carries the unsanitized game ID on every mirrored event.
	GameIDHeader = "Planpoker-Game-Id"
)

// natsPublisher implements Publisher on a core NATS connection.
type natsPublisher struct {
	nc     *nats.Conn
	prefix string
	logger zerolog.Logger
}

func newNATSPublisher(cfg Config) (*natsPublisher, error) {
	logger := logx.Component("eventbus")

	opts := []nats.Option{
		nats.Name("planpoker"),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject_prefix", cfg.SubjectPrefix).
		Msg("Event mirror connected.")

	return &natsPublisher{nc: nc, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

func (p *natsPublisher) Publish(gameID, eventType string, data []byte) error {
	msg := nats.NewMsg(Subject(p.prefix, gameID, eventType))
	msg.Header.Set(GameIDHeader, gameID)
	msg.Data = data

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

func (p *natsPublisher) Close() error {
	defer p.nc.Close()

	if err := p.nc.FlushTimeout(natsFlushTimeout); err != nil {
		return fmt.Errorf("flush NATS: %w", err)
	}
	return nil
}
