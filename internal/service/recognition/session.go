package recognition

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"asr-session-client/internal/models"
	"asr-session-client/internal/observability/logging"
	"asr-session-client/internal/observability/metrics"
	"asr-session-client/internal/service/stt"
)

const minWatchdogPeriod = 10 * time.Millisecond

// Info is a point-in-time view of a session.
type Info struct {
	ID            string
	Config        models.RecognitionConfig
	State         State
	CreatedAt     time.Time
	LastAudioSent time.Time // zero until the first chunk is sent
}

// Session is one recognition interaction over one audio stream, producing
// one transcript. It owns exactly one transport Stream.
//
// State transitions:
//
//	CREATED ──Start()──→ STARTED ──→ STREAMING ──Stop()──→ STOPPING ──→ CLOSED
//	   (any non-terminal state) ──transport/audio failure──→ FAILED
//
// Every transition is reported through Callbacks.OnStateChange, on the same
// ordered delivery goroutine as sentence callbacks.
type Session struct {
	id         string
	adapter    stt.Adapter
	opts       Options
	log        zerolog.Logger
	metrics    *metrics.Metrics
	dispatcher *Dispatcher
	notify     *notifier

	mu            sync.Mutex
	state         State
	cfg           models.RecognitionConfig
	createdAt     time.Time
	streamingAt   time.Time
	lastAudioSent time.Time
	lastActivity  time.Time
	fed           bool
	stream        stt.Stream
	failErr       error
	feedDone      chan struct{}

	closing     chan struct{} // closed when the session leaves STREAMING
	closingOnce sync.Once
	received    chan struct{} // closed when the receive loop exits
	watchDone   chan struct{} // closed when the inactivity watchdog exits
}

// NewSession creates a session in StateCreated. The adapter opens the
// session's own channel on Start; it is not shared with other sessions.
func NewSession(adapter stt.Adapter, opts Options) (*Session, error) {
	if adapter == nil {
		return nil, errors.New("recognition: nil adapter")
	}
	if err := opts.Feeder.Validate(); err != nil {
		return nil, err
	}
	if opts.StopGracePeriod <= 0 {
		opts.StopGracePeriod = DefaultStopGracePeriod
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}

	s := &Session{
		id:        opts.ID,
		adapter:   adapter,
		opts:      opts,
		log:       logging.WithSession(opts.ID, adapter.Name()),
		metrics:   opts.Metrics,
		state:     StateCreated,
		cfg:       models.DefaultRecognitionConfig(),
		createdAt: time.Now(),
		closing:   make(chan struct{}),
		received:  make(chan struct{}),
		watchDone: make(chan struct{}),
	}
	s.notify = newNotifier(s.log)
	s.dispatcher = NewDispatcher(opts.Callbacks, s.notify.post, opts.Metrics, s.log)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a snapshot of the session record.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:            s.id,
		Config:        s.cfg,
		State:         s.state,
		CreatedAt:     s.createdAt,
		LastAudioSent: s.lastAudioSent,
	}
}

// Done is closed once the session reached a terminal state and every
// callback has been delivered. It never closes for a session that was not
// started.
func (s *Session) Done() <-chan struct{} {
	return s.notify.done
}

// Transcript returns the finalized sentences so far. Valid in any state.
func (s *Session) Transcript() models.Transcript {
	return s.dispatcher.Transcript()
}

// Configure stores the recognition options. Only valid in StateCreated.
func (s *Session) Configure(cfg models.RecognitionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCreated {
		return &StateError{Op: "configure", State: s.state}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg.Normalized()
	return nil
}

// Start opens the channel and sends the configuration. On success the
// session is STREAMING and the inactivity watchdog is armed; on transport
// failure it is FAILED and an ErrConnection error is returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCreated {
		st := s.state
		s.mu.Unlock()
		return &StateError{Op: "start", State: st}
	}
	cfg := s.cfg
	s.notify.start()
	s.transitionLocked(StateStarted, nil)
	s.mu.Unlock()

	stream, err := s.adapter.Open(ctx, cfg)
	if err != nil {
		cerr := connectionError("open", err)
		s.metrics.RecordTransportError(s.adapter.Name(), "open")
		s.fail(cerr, "connection")
		close(s.watchDone)
		return cerr
	}

	s.mu.Lock()
	if s.state != StateStarted {
		st := s.state
		s.mu.Unlock()
		_ = stream.Close()
		close(s.watchDone)
		return &StateError{Op: "start", State: st}
	}
	now := time.Now()
	s.stream = stream
	s.streamingAt = now
	s.lastActivity = now
	s.transitionLocked(StateStreaming, nil)
	s.mu.Unlock()

	s.metrics.RecordSessionStart()
	go s.receive(stream)
	go s.watchInactivity(stream)
	return nil
}

// Feed streams src to the backend with the configured chunking and pacing.
// Only valid in StateStreaming and only once per session.
//
// It returns nil when src is exhausted; the caller then calls Stop. When the
// session is stopped while feeding, the pacing wait is interrupted and
// ErrSessionClosed is returned. Read and send failures move the session to
// StateFailed and are returned as ErrAudioSource / ErrConnection errors.
func (s *Session) Feed(ctx context.Context, src io.Reader) error {
	s.mu.Lock()
	if s.state != StateStreaming {
		st := s.state
		s.mu.Unlock()
		return &StateError{Op: "feed", State: st}
	}
	if s.fed {
		st := s.state
		s.mu.Unlock()
		return &StateError{Op: "feed", State: st, Reason: "audio source already attached"}
	}
	s.fed = true
	stream := s.stream
	done := make(chan struct{})
	s.feedDone = done
	s.mu.Unlock()
	defer close(done)

	feeder := NewFeeder(s.opts.Feeder, stream.SendAudio, s.audioSent)
	err := feeder.Run(ctx, src, s.closing)

	switch {
	case err == nil:
		s.log.Info().Msg("Audio source exhausted")
	case errors.Is(err, ErrSessionClosed):
		s.mu.Lock()
		failErr := s.failErr
		s.mu.Unlock()
		if failErr != nil {
			return failErr
		}
		s.log.Info().Msg("Feed interrupted by stop")
	case errors.Is(err, ErrConnection):
		s.metrics.RecordTransportError(s.adapter.Name(), "send_audio")
		s.fail(err, "connection")
	case errors.Is(err, ErrAudioSource):
		s.fail(err, "audio_source")
	default:
		s.log.Info().Err(err).Msg("Feed cancelled")
	}
	return err
}

// Stop sends end of stream and waits for the backend's final results.
//
// The wait ends when the backend acknowledges, or when ctx is done, or, if
// ctx has no deadline, after the configured grace period. The session is
// then CLOSED and the transport released. Stop on a CLOSED session returns
// nil; in any state other than STREAMING it returns an ErrInvalidState
// error. If the channel fails while stopping, the failure is returned.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return nil
	case StateStreaming:
	default:
		st := s.state
		s.mu.Unlock()
		return &StateError{Op: "stop", State: st}
	}
	begin := time.Now()
	stream := s.stream
	feedDone := s.feedDone
	s.transitionLocked(StateStopping, nil)
	s.mu.Unlock()

	s.signalClosing()

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if _, ok := ctx.Deadline(); !ok {
		waitCtx, cancel = context.WithTimeout(ctx, s.opts.StopGracePeriod)
	}
	defer cancel()

	// End of stream must follow the last audio chunk and keep-alive.
	acked := wait(waitCtx, feedDone) && wait(waitCtx, s.watchDone)
	if acked {
		if err := stream.SendEndOfStream(waitCtx); err != nil {
			if failErr := s.failure(); failErr != nil {
				return failErr
			}
			cerr := connectionError("end of stream", err)
			s.metrics.RecordTransportError(s.adapter.Name(), "end_of_stream")
			s.fail(cerr, "connection")
			return cerr
		}
		acked = wait(waitCtx, s.received)
	}
	if !acked {
		s.log.Warn().
			Ints("pendingSentences", s.dispatcher.Pending()).
			Msg("Closing before the backend acknowledged end of stream")
	}

	_ = stream.Close()

	s.mu.Lock()
	if s.state == StateFailed {
		failErr := s.failErr
		s.mu.Unlock()
		return failErr
	}
	s.transitionLocked(StateClosed, nil)
	streamingAt := s.streamingAt
	s.mu.Unlock()

	s.notify.close()
	s.metrics.RecordSessionEnd("", time.Since(streamingAt).Seconds())
	s.metrics.RecordStop(time.Since(begin).Seconds(), !acked)
	return nil
}

// receive drains the transport's event source on its own goroutine.
func (s *Session) receive(stream stt.Stream) {
	defer close(s.received)

	for ev := range stream.Events() {
		if s.State().IsTerminal() {
			return
		}
		switch ev.Type {
		case stt.EventSentence:
			if !s.dispatch(func() { _ = s.dispatcher.Dispatch(ev.Sentence) }) {
				return
			}
		case stt.EventMalformed:
			if !s.dispatch(func() { _ = s.dispatcher.Reject(ev.Sentence.Kind, ev.Err) }) {
				return
			}
		case stt.EventCompleted:
			s.log.Info().Msg("Backend acknowledged end of stream")
			return
		case stt.EventFailed:
			s.metrics.RecordTransportError(s.adapter.Name(), "receive")
			s.fail(connectionError("receive", ev.Err), "connection")
			return
		}
	}

	if s.State() == StateStreaming {
		s.metrics.RecordTransportError(s.adapter.Name(), "receive")
		s.fail(connectionError("receive", errors.New("channel closed by backend")), "connection")
	}
}

// dispatch runs fn unless the session is terminal. s.mu is held so that a
// concurrent transition to CLOSED or FAILED either precedes fn, and fn is
// skipped, or follows it, and fn's callbacks are delivered before the
// notifier closes.
func (s *Session) dispatch(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() {
		return false
	}
	fn()
	return true
}

// watchInactivity enforces the inactivity budget while the session streams.
func (s *Session) watchInactivity(stream stt.Stream) {
	defer close(s.watchDone)

	cfg := s.opts.Feeder
	period := cfg.InactivityBudget / 4
	if cfg.KeepAlive == KeepAliveSend {
		period = cfg.KeepAliveInterval / 2
	}
	if period < minWatchdogPeriod {
		period = minWatchdogPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	exceeded := false
	for {
		select {
		case <-s.closing:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		idle := time.Since(s.lastActivity)
		s.mu.Unlock()

		switch cfg.KeepAlive {
		case KeepAliveSend:
			if idle < cfg.KeepAliveInterval {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.KeepAliveInterval)
			err := stream.SendKeepAlive(ctx)
			cancel()
			if err != nil {
				if closed(s.closing) {
					return
				}
				s.metrics.RecordTransportError(s.adapter.Name(), "keepalive")
				s.fail(connectionError("keep-alive", err), "connection")
				return
			}
			s.mu.Lock()
			s.lastActivity = time.Now()
			s.mu.Unlock()
			s.metrics.RecordKeepAlive()
			s.log.Debug().Dur("idle", idle).Msg("Keep-alive sent")
		case KeepAliveNone:
			if idle < cfg.InactivityBudget {
				exceeded = false
				continue
			}
			if !exceeded {
				exceeded = true
				s.metrics.RecordInactivityExceeded()
				s.log.Warn().
					Dur("idle", idle).
					Dur("budget", cfg.InactivityBudget).
					Msg("Inactivity budget exceeded, backend may disconnect")
			}
		}
	}
}

func (s *Session) audioSent(n int) {
	now := time.Now()
	s.mu.Lock()
	s.lastAudioSent = now
	s.lastActivity = now
	s.mu.Unlock()
	s.metrics.RecordAudioSent(n)
}

// fail moves a non-terminal session to FAILED and releases the transport.
func (s *Session) fail(err error, reason string) {
	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.failErr = err
	s.transitionLocked(StateFailed, err)
	stream := s.stream
	streamingAt := s.streamingAt
	s.mu.Unlock()

	s.signalClosing()
	if n := s.dispatcher.dropPending(); n > 0 {
		s.log.Warn().Int("dropped", n).Msg("Open sentences dropped without a final result")
	}
	if stream != nil {
		_ = stream.Close()
	}
	s.notify.close()

	if prev == StateStreaming || prev == StateStopping {
		s.metrics.RecordSessionEnd(reason, time.Since(streamingAt).Seconds())
	} else {
		s.metrics.RecordSessionFailedBeforeStreaming(reason)
	}
}

func (s *Session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr
}

// transitionLocked must be called with s.mu held.
func (s *Session) transitionLocked(to State, err error) {
	from := s.state
	s.state = to

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Error().Err(err)
	}
	ev.Str("from", from.String()).Str("to", to.String()).Msg("Session state changed")

	if cb := s.opts.Callbacks.OnStateChange; cb != nil {
		change := StateChange{SessionID: s.id, From: from, To: to, Err: err, At: time.Now()}
		s.notify.post(func() { cb(change) })
	}
}

func (s *Session) signalClosing() {
	s.closingOnce.Do(func() { close(s.closing) })
}

// wait reports whether ch closed before ctx was done. A nil ch counts as closed.
func wait(ctx context.Context, ch <-chan struct{}) bool {
	if ch == nil {
		return true
	}
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}
