// Package app wires configuration into transports, brokers and sessions.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"asr-session-client/internal/config"
	"asr-session-client/internal/events"
	"asr-session-client/internal/observability/logging"
	"asr-session-client/internal/observability/metrics"
	"asr-session-client/internal/service/recognition"
	"asr-session-client/internal/service/stt"
	"asr-session-client/internal/service/stt/google"
	"asr-session-client/internal/service/stt/mock"
	"asr-session-client/internal/service/stt/websocket"
)

var (
	// ErrUnknownProvider is returned for an unsupported STT provider name.
	ErrUnknownProvider = errors.New("unknown STT provider")
	// ErrMissingEndpoint is returned when the websocket provider has no endpoint.
	ErrMissingEndpoint = errors.New("websocket provider requires STT_ENDPOINT")
)

// Application holds process-wide state for the client.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	sink *events.Sink
}

// New constructs an Application and initializes logging from cfg.
func New(cfg *config.Configuration) *Application {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}

	a.Logger.Info().
		Str("provider", cfg.STT.Provider).
		Str("logLevel", cfg.Observability.LogLevel).
		Msg("ASR session client created")
	return a
}

// Start connects the configured brokers. Disabled brokers run in log-only
// mode, so Start only fails when an enabled broker cannot connect.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()

	kafka := events.New(&events.Config{
		Enabled:      a.Cfg.Kafka.Enabled,
		Brokers:      a.Cfg.Kafka.Brokers,
		TopicPartial: a.Cfg.Kafka.TopicPartial,
		TopicFinal:   a.Cfg.Kafka.TopicFinal,
		TopicState:   a.Cfg.Kafka.TopicState,
		Principal:    a.Cfg.Kafka.Principal,
	})

	nc, err := events.NewNATS(&events.NATSConfig{
		Enabled:       a.Cfg.NATS.Enabled,
		URL:           a.Cfg.NATS.URL,
		SubjectPrefix: a.Cfg.NATS.SubjectPrefix,
		Principal:     a.Cfg.Service.Principal,
	})
	if err != nil {
		kafka.Close()
		return err
	}

	a.sink = events.NewSink(a.Cfg.Service.Principal, kafka, nc)

	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Bool("kafka", a.Cfg.Kafka.Enabled).
		Bool("nats", a.Cfg.NATS.Enabled).
		Msg("ASR session client starting")
	return nil
}

// NewAdapter builds the transport selected by STT.Provider.
func (a *Application) NewAdapter(ctx context.Context) (stt.Adapter, error) {
	c := a.Cfg.STT
	switch c.Provider {
	case "mock":
		return mock.New(mock.DefaultConfig()), nil
	case "websocket":
		if c.Endpoint == "" {
			return nil, ErrMissingEndpoint
		}
		wc := websocket.DefaultConfig()
		wc.Endpoint = c.Endpoint
		wc.APIKey = c.APIKey
		wc.SampleRate = c.SampleRateHz
		wc.StartTimeout = c.StartTimeout
		wc.WriteTimeout = c.WriteTimeout
		return websocket.New(wc), nil
	case "google":
		gc := google.DefaultConfig()
		gc.LanguageCode = c.LanguageCode
		gc.SampleRateHz = int32(c.SampleRateHz)
		gc.AudioEncoding = c.AudioEncoding
		gc.Model = c.Model
		return google.New(ctx, gc, metrics.DefaultMetrics)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
}

// FeederConfig converts the feeder settings for the recognition package.
func (a *Application) FeederConfig() (recognition.FeederConfig, error) {
	f := a.Cfg.Feeder
	policy, err := recognition.ParseKeepAlivePolicy(f.KeepAlivePolicy)
	if err != nil {
		return recognition.FeederConfig{}, err
	}
	fc := recognition.FeederConfig{
		ChunkSize:         f.ChunkSize,
		Interval:          f.Interval,
		HeaderBytes:       f.HeaderBytes,
		InactivityBudget:  f.InactivityBudget,
		KeepAlive:         policy,
		KeepAliveInterval: f.KeepAliveInterval,
	}
	return fc, fc.Validate()
}

// NewSession creates and configures a session on adapter. When brokers are
// started, every event is also published; callbacks still see each event.
func (a *Application) NewSession(adapter stt.Adapter, callbacks recognition.Callbacks) (*recognition.Session, error) {
	fc, err := a.FeederConfig()
	if err != nil {
		return nil, err
	}

	opts := recognition.DefaultOptions()
	opts.Feeder = fc
	opts.StopGracePeriod = a.Cfg.Session.StopGracePeriod
	opts.Callbacks = callbacks

	// The session ID must be known before the sink can tag events with it.
	if a.sink != nil {
		opts.ID = uuid.NewString()
		opts.Callbacks = a.sink.Callbacks(opts.ID, callbacks)
	}

	s, err := recognition.NewSession(adapter, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Configure(a.Cfg.Recognition); err != nil {
		return nil, err
	}
	return s, nil
}

// Shutdown flushes and closes the brokers.
func (a *Application) Shutdown() {
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing event brokers")
		}
	}
	a.Logger.Info().
		Dur("uptime", time.Since(a.StartupTime)).
		Msg("ASR session client shutting down")
}
