// Package mock provides an in-process recognition backend for tests and
// local runs without credentials. Audio frames drive scripted utterances:
// the first frame of an utterance opens a sentence, following frames reveal
// progressive partials and the frame after the last partial finalizes it.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"asr-session-client/internal/models"
	"asr-session-client/internal/service/stt"
)

// ErrInjected is the failure reported when Config.FailAfterFrames is reached.
var ErrInjected = errors.New("mock: injected connection failure")

// ErrStreamClosed is returned by sends on a closed or failed stream.
var ErrStreamClosed = errors.New("mock: stream closed")

// SimulatedUtterance is one scripted sentence.
type SimulatedUtterance struct {
	Partials []string // progressive partial transcripts
	Final    string   // final transcript text
}

// DefaultUtterances cycle for every stream.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials: []string{"please", "please transfer", "please transfer me"},
		Final:    "Please transfer me to billing.",
	},
	{
		Partials: []string{"my order", "my order number is"},
		Final:    "My order number is 4821.",
	},
	{
		Partials: []string{"the package", "the package arrived", "the package arrived damaged"},
		Final:    "The package arrived damaged.",
	},
	{
		Partials: []string{"thanks"},
		Final:    "Thanks, that's all.",
	},
}

// Config scripts the simulated backend.
type Config struct {
	Utterances      []SimulatedUtterance // DefaultUtterances when empty
	FrameDuration   time.Duration        // audio time per frame, for sentence timing
	OpenErr         error                // returned by Open when set
	FailAfterFrames int                  // report ErrInjected after this many frames; 0 disables
	NoAck           bool                 // never acknowledge end of stream
}

// DefaultConfig returns a config matching 300ms frames.
func DefaultConfig() Config {
	return Config{
		Utterances:    DefaultUtterances,
		FrameDuration: 300 * time.Millisecond,
	}
}

// Adapter implements stt.Adapter with scripted responses.
type Adapter struct {
	cfg Config

	mu      sync.Mutex
	opened  []models.RecognitionConfig
	streams []*Stream
}

// New creates a mock adapter.
func New(cfg Config) *Adapter {
	if len(cfg.Utterances) == 0 {
		cfg.Utterances = DefaultUtterances
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 300 * time.Millisecond
	}
	return &Adapter{cfg: cfg}
}

// Name returns "mock".
func (a *Adapter) Name() string {
	return "mock"
}

// Open returns a new scripted stream, or Config.OpenErr.
func (a *Adapter) Open(ctx context.Context, rc models.RecognitionConfig) (stt.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.opened = append(a.opened, rc)
	if a.cfg.OpenErr != nil {
		return nil, a.cfg.OpenErr
	}

	s := &Stream{
		cfg:          a.cfg,
		intermediate: rc.EnableIntermediateResult,
		events:       make(chan stt.Event, 64),
		done:         make(chan struct{}),
	}
	a.streams = append(a.streams, s)
	return s, nil
}

// Opened returns the recognition configs passed to Open, in order.
func (a *Adapter) Opened() []models.RecognitionConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.RecognitionConfig{}, a.opened...)
}

// Streams returns the streams opened so far.
func (a *Adapter) Streams() []*Stream {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Stream{}, a.streams...)
}

// Stream is one scripted recognition channel.
type Stream struct {
	cfg          Config
	intermediate bool

	mu         sync.Mutex
	closed     bool
	failed     bool
	eos        bool
	frames     int
	bytes      int
	keepAlives int

	utterance int  // index into cfg.Utterances, modulo length
	seq       int  // sequence number of the current sentence
	partial   int  // next partial of the current utterance
	open      bool // current sentence has begun
	beganAt   time.Duration

	events    chan stt.Event
	done      chan struct{}
	closeOnce sync.Once
}

// SendAudio advances the script by one frame.
func (s *Stream) SendAudio(ctx context.Context, audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.failed || s.eos {
		return ErrStreamClosed
	}
	s.frames++
	s.bytes += len(audio)

	if s.cfg.FailAfterFrames > 0 && s.frames >= s.cfg.FailAfterFrames {
		s.failed = true
		s.emitLocked(stt.Failed(ErrInjected))
		return nil
	}

	utt := s.cfg.Utterances[s.utterance%len(s.cfg.Utterances)]
	now := time.Duration(s.frames) * s.cfg.FrameDuration

	switch {
	case !s.open:
		s.open = true
		s.partial = 0
		s.beganAt = now - s.cfg.FrameDuration
		s.emitSentenceLocked(models.SentenceBegin, "", now)
	case s.partial < len(utt.Partials):
		text := utt.Partials[s.partial]
		s.partial++
		if s.intermediate {
			s.emitSentenceLocked(models.SentenceChanged, text, now)
		}
	default:
		s.finishLocked(utt, now)
	}
	return nil
}

// SendKeepAlive counts the keep-alive.
func (s *Stream) SendKeepAlive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.failed {
		return ErrStreamClosed
	}
	s.keepAlives++
	return nil
}

// SendEndOfStream finalizes the open sentence and acknowledges, unless
// Config.NoAck is set.
func (s *Stream) SendEndOfStream(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.failed {
		return ErrStreamClosed
	}
	if s.eos {
		return nil
	}
	s.eos = true

	if s.open {
		utt := s.cfg.Utterances[s.utterance%len(s.cfg.Utterances)]
		s.finishLocked(utt, time.Duration(s.frames)*s.cfg.FrameDuration)
	}
	if !s.cfg.NoAck {
		s.emitLocked(stt.Completed())
	}
	return nil
}

// Events returns the scripted event source.
func (s *Stream) Events() <-chan stt.Event {
	return s.events
}

// Close ends the stream and closes the event source. Idempotent.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
	return nil
}

// Stats returns frames, bytes and keep-alives received.
func (s *Stream) Stats() (frames, bytes, keepAlives int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.bytes, s.keepAlives
}

func (s *Stream) finishLocked(utt SimulatedUtterance, now time.Duration) {
	s.emitLocked(stt.Sentence(models.SentenceEvent{
		Kind:      models.SentenceEnd,
		Seq:       s.seq,
		Text:      utt.Final,
		BeginTime: s.beganAt,
		EndTime:   now,
	}))
	s.open = false
	s.seq++
	s.utterance++
}

func (s *Stream) emitSentenceLocked(kind models.SentenceKind, text string, now time.Duration) {
	s.emitLocked(stt.Sentence(models.SentenceEvent{
		Kind:      kind,
		Seq:       s.seq,
		Text:      text,
		BeginTime: s.beganAt,
		EndTime:   now,
	}))
}

// emitLocked must be called with s.mu held. It gives up once Close starts.
func (s *Stream) emitLocked(ev stt.Event) {
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	case <-s.done:
	}
}
