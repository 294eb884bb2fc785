package events

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"asr-session-client/internal/observability/metrics"
)

// NATSConfig holds NATS publisher configuration.
type NATSConfig struct {
	URL           string
	SubjectPrefix string // subjects are <prefix>.partial, <prefix>.final and <prefix>.state
	Principal     string
	Enabled       bool
}

// NATSPublisher publishes session events as NATS messages with headers.
type NATSPublisher struct {
	conn      *nats.Conn
	principal string
	prefix    string
	enabled   bool
	metrics   *metrics.Metrics
}

// NewNATS connects to NATS when enabled. A disabled publisher only logs.
func NewNATS(cfg *NATSConfig) (*NATSPublisher, error) {
	m := metrics.DefaultMetrics

	if cfg == nil || !cfg.Enabled || cfg.URL == "" {
		log.Info().Msg("NATS disabled, using log-only mode")
		p := &NATSPublisher{metrics: m}
		if cfg != nil {
			p.principal = cfg.Principal
			p.prefix = cfg.SubjectPrefix
		}
		return p, nil
	}

	opts := []nats.Option{
		nats.Name("asr-session-client"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().
		Str("url", conn.ConnectedUrl()).
		Str("subjectPrefix", cfg.SubjectPrefix).
		Str("principal", cfg.Principal).
		Msg("NATS publisher initialized")

	return &NATSPublisher{
		conn:      conn,
		principal: cfg.Principal,
		prefix:    cfg.SubjectPrefix,
		enabled:   true,
		metrics:   m,
	}, nil
}

// Name returns "nats".
func (p *NATSPublisher) Name() string {
	return "nats"
}

// PublishPartial publishes to <prefix>.partial.
func (p *NATSPublisher) PublishPartial(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.subject("partial"), EventTypePartial, key, event)
}

// PublishFinal publishes to <prefix>.final.
func (p *NATSPublisher) PublishFinal(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.subject("final"), EventTypeFinal, key, event)
}

// PublishState publishes to <prefix>.state.
func (p *NATSPublisher) PublishState(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.subject("state"), EventTypeState, key, event)
}

func (p *NATSPublisher) subject(stream string) string {
	if p.prefix == "" {
		return stream
	}
	return p.prefix + "." + stream
}

func (p *NATSPublisher) publish(ctx context.Context, subject, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("subject", subject).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || p.conn == nil {
		p.metrics.RecordPublish(p.Name(), eventType, nil, time.Since(start).Seconds())
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set("eventType", eventType)
	msg.Header.Set("principal", p.principal)
	msg.Header.Set("key", key)

	if err := p.conn.PublishMsg(msg); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Str("key", key).
			Msg("Failed to publish to NATS")
		p.metrics.RecordPublish(p.Name(), eventType, err, time.Since(start).Seconds())
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	p.metrics.RecordPublish(p.Name(), eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
