// Package websocket provides a recognition transport over one persistent
// WebSocket connection: JSON control messages and binary audio frames.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"asr-session-client/internal/models"
	"asr-session-client/internal/observability/logging"
	"asr-session-client/internal/service/stt"
)

// ErrTaskFailed is reported when the server rejects or aborts the task.
var ErrTaskFailed = errors.New("websocket: task failed")

// Config holds the WebSocket backend settings.
type Config struct {
	Endpoint     string // ws:// or wss:// URL
	APIKey       string // sent as a bearer token when set
	Format       string // audio format name, e.g. "pcm"
	SampleRate   int
	StartTimeout time.Duration // wait for task-started
	WriteTimeout time.Duration // per-write deadline when the caller's context has none
	CloseTimeout time.Duration // deadline for the close handshake write
}

// DefaultConfig returns settings for 8kHz PCM.
func DefaultConfig() Config {
	return Config{
		Format:       "pcm",
		SampleRate:   8000,
		StartTimeout: 10 * time.Second,
		WriteTimeout: 10 * time.Second,
		CloseTimeout: time.Second,
	}
}

// Adapter implements stt.Adapter over WebSocket.
type Adapter struct {
	cfg    Config
	dialer *gws.Dialer
	log    zerolog.Logger
}

// New creates a WebSocket adapter.
func New(cfg Config) *Adapter {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = time.Second
	}
	return &Adapter{
		cfg:    cfg,
		dialer: gws.DefaultDialer,
		log:    logging.WithTransport("websocket", cfg.Endpoint),
	}
}

// Name returns "websocket".
func (a *Adapter) Name() string {
	return "websocket"
}

// Open dials the endpoint, sends run-task and waits for task-started.
func (a *Adapter) Open(ctx context.Context, rc models.RecognitionConfig) (stt.Stream, error) {
	hdr := http.Header{}
	if a.cfg.APIKey != "" {
		hdr.Set("Authorization", "bearer "+a.cfg.APIKey)
	}

	conn, _, err := a.dialer.DialContext(ctx, a.cfg.Endpoint, hdr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", a.cfg.Endpoint, err)
	}

	s := &stream{
		conn:         conn,
		taskID:       uuid.NewString(),
		writeTimeout: a.cfg.WriteTimeout,
		closeTimeout: a.cfg.CloseTimeout,
		log:          a.log,
		events:       make(chan stt.Event, 64),
		started:      make(chan error, 1),
		done:         make(chan struct{}),
	}
	s.log = a.log.With().Str("taskId", s.taskID).Logger()

	run, err := command(actionRunTask, s.taskID, runTaskPayload{Parameters: runTaskParameters(a.cfg, rc)})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("encode run-task: %w", err)
	}
	if err := s.write(ctx, gws.TextMessage, run); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send run-task: %w", err)
	}

	go s.readLoop()

	timer := time.NewTimer(a.cfg.StartTimeout)
	defer timer.Stop()

	select {
	case err := <-s.started:
		if err != nil {
			_ = s.Close()
			return nil, err
		}
	case <-timer.C:
		_ = s.Close()
		return nil, fmt.Errorf("start recognition: no %s within %v", eventTaskStarted, a.cfg.StartTimeout)
	case <-ctx.Done():
		_ = s.Close()
		return nil, ctx.Err()
	}

	s.log.Debug().Msg("Recognition task started")
	return s, nil
}

type stream struct {
	conn         *gws.Conn
	taskID       string
	writeTimeout time.Duration
	closeTimeout time.Duration
	log          zerolog.Logger

	writeMu sync.Mutex

	events    chan stt.Event
	started   chan error // receives once: nil on task-started
	startOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

func (s *stream) SendAudio(ctx context.Context, audio []byte) error {
	return s.write(ctx, gws.BinaryMessage, audio)
}

func (s *stream) SendKeepAlive(ctx context.Context) error {
	b, err := command(actionKeepAlive, s.taskID, nil)
	if err != nil {
		return err
	}
	return s.write(ctx, gws.TextMessage, b)
}

func (s *stream) SendEndOfStream(ctx context.Context) error {
	b, err := command(actionFinishTask, s.taskID, nil)
	if err != nil {
		return err
	}
	return s.write(ctx, gws.TextMessage, b)
}

func (s *stream) write(ctx context.Context, messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *stream) Events() <-chan stt.Event {
	return s.events
}

// Close sends a close frame and releases the connection. Idempotent.
// It does not wait for writeMu: closing the connection unblocks a write
// stalled on a backend that stopped reading.
func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(gws.CloseNormalClosure, "bye"),
			time.Now().Add(s.closeTimeout))
		err = s.conn.Close()
	})
	return err
}

func (s *stream) readLoop() {
	defer close(s.events)

	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return
			}
			err = fmt.Errorf("read: %w", err)
			if !s.signalStarted(err) {
				s.emit(stt.Failed(err))
			}
			return
		}
		if msgType != gws.TextMessage {
			continue
		}

		var msg message
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn().Err(err).Msg("Malformed server message")
			if !s.emit(stt.Malformed(stt.UnknownKind, fmt.Errorf("decode message: %w", err))) {
				return
			}
			continue
		}

		event := msg.Header.Event
		if kind, ok := sentenceKind(event); ok {
			var out stt.Event
			ev, err := decodeSentence(kind, msg.Payload)
			if err != nil {
				s.log.Warn().Err(err).Str("event", event).Msg("Malformed sentence payload")
				out = stt.Malformed(kind, fmt.Errorf("decode %s: %w", event, err))
			} else {
				out = stt.Sentence(ev)
			}
			if !s.emit(out) {
				return
			}
			continue
		}

		switch event {
		case eventTaskStarted:
			s.signalStarted(nil)
		case eventTaskFinished:
			s.emit(stt.Completed())
			return
		case eventTaskFailed:
			err := fmt.Errorf("%w: %s: %s", ErrTaskFailed, msg.Header.ErrorCode, msg.Header.ErrorMessage)
			if !s.signalStarted(err) {
				s.emit(stt.Failed(err))
			}
			return
		default:
			s.log.Debug().Str("event", event).Msg("Unknown server event ignored")
		}
	}
}

// signalStarted reports the start outcome once. It returns false when the
// outcome was already reported.
func (s *stream) signalStarted(err error) bool {
	sent := false
	s.startOnce.Do(func() {
		s.started <- err
		sent = true
	})
	return sent
}

func (s *stream) emit(ev stt.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *stream) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
