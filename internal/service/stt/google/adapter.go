// Package google provides a Google Cloud Speech-to-Text transport.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc"

	"asr-session-client/internal/models"
	"asr-session-client/internal/observability"
	"asr-session-client/internal/observability/logging"
	"asr-session-client/internal/observability/metrics"
	"asr-session-client/internal/service/stt"
)

// ErrEndOfStreamSent is returned by sends after SendEndOfStream.
var ErrEndOfStreamSent = errors.New("google: end of stream already sent")

// Config holds Google Speech-to-Text settings.
type Config struct {
	LanguageCode  string
	SampleRateHz  int32
	AudioEncoding string // LINEAR16, MULAW, FLAC, ...
	Model         string // empty selects the default model
	// KeepAliveSilence is the length of the silent frame sent as keep-alive.
	// The streaming API has no no-op message.
	KeepAliveSilence time.Duration
}

// DefaultConfig returns settings for 8kHz 16-bit PCM.
func DefaultConfig() Config {
	return Config{
		LanguageCode:     "en-US",
		SampleRateHz:     8000,
		AudioEncoding:    "LINEAR16",
		KeepAliveSilence: 100 * time.Millisecond,
	}
}

// parseAudioEncoding converts a string encoding name to the Google enum.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

type streamOpener func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	cfg    Config
	client *speech.Client
	open   streamOpener
	log    zerolog.Logger
}

// New creates a Google adapter. Credentials are resolved the usual way
// (GOOGLE_APPLICATION_CREDENTIALS or opts). Stream outcomes are recorded
// on m through a client interceptor.
func New(ctx context.Context, cfg Config, m *metrics.Metrics, opts ...option.ClientOption) (*Adapter, error) {
	opts = append(opts, option.WithGRPCDialOption(
		grpc.WithChainStreamInterceptor(observability.StreamClientInterceptor(m)),
	))
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	a := newAdapter(cfg, func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return c.StreamingRecognize(ctx)
	})
	a.client = c
	return a, nil
}

func newAdapter(cfg Config, open streamOpener) *Adapter {
	return &Adapter{
		cfg:  cfg,
		open: open,
		log:  logging.WithTransport("google", cfg.LanguageCode),
	}
}

// Name returns "google".
func (a *Adapter) Name() string {
	return "google"
}

// Open starts a streaming recognition call and sends the streaming config
// as the first message. The call outlives ctx; it ends with Stream.Close.
func (a *Adapter) Open(ctx context.Context, rc models.RecognitionConfig) (stt.Stream, error) {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	client, err := a.open(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open streaming recognize: %w", err)
	}

	if rc.EnableInverseTextNormalization || rc.HasSelfLearningModel() {
		a.log.Debug().
			Bool("itn", rc.EnableInverseTextNormalization).
			Str("selfLearningModelId", rc.SelfLearningModelID).
			Msg("Options without a Google equivalent are ignored")
	}

	err = client.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: a.streamingConfig(rc),
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	s := &stream{
		client:  client,
		cancel:  cancel,
		silence: make([]byte, silenceBytes(a.cfg)),
		events:  make(chan stt.Event, 64),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func (a *Adapter) streamingConfig(rc models.RecognitionConfig) *speechpb.StreamingRecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
		SampleRateHertz:            a.cfg.SampleRateHz,
		LanguageCode:               a.cfg.LanguageCode,
		Model:                      a.cfg.Model,
		EnableAutomaticPunctuation: rc.EnablePunctuation,
	}
	if rc.HotWordID != "" {
		cfg.Adaptation = &speechpb.SpeechAdaptation{
			PhraseSetReferences: []string{rc.HotWordID},
		}
	}
	return &speechpb.StreamingRecognitionConfig{
		Config:         cfg,
		InterimResults: rc.EnableIntermediateResult,
	}
}

func silenceBytes(cfg Config) int {
	n := int(int64(cfg.SampleRateHz) * 2 * int64(cfg.KeepAliveSilence) / int64(time.Second))
	if n <= 0 {
		n = 2
	}
	return n
}

type stream struct {
	client  speechpb.Speech_StreamingRecognizeClient
	cancel  context.CancelFunc
	silence []byte
	mapper  resultMapper

	sendMu sync.Mutex
	eos    bool

	events    chan stt.Event
	done      chan struct{}
	closeOnce sync.Once
}

func (s *stream) SendAudio(ctx context.Context, audio []byte) error {
	return s.send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: audio},
	})
}

func (s *stream) SendKeepAlive(ctx context.Context) error {
	return s.SendAudio(ctx, s.silence)
}

func (s *stream) SendEndOfStream(ctx context.Context) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.eos {
		return nil
	}
	s.eos = true
	return s.client.CloseSend()
}

func (s *stream) send(req *speechpb.StreamingRecognizeRequest) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.eos {
		return ErrEndOfStreamSent
	}
	return s.client.Send(req)
}

func (s *stream) Events() <-chan stt.Event {
	return s.events
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
	return nil
}

func (s *stream) readLoop() {
	defer close(s.events)
	for {
		resp, err := s.client.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.emit(stt.Completed())
			} else if !s.isClosed() {
				s.emit(stt.Failed(err))
			}
			return
		}
		if st := resp.GetError(); st != nil && st.GetCode() != 0 {
			s.emit(stt.Failed(fmt.Errorf("recognition error %d: %s", st.GetCode(), st.GetMessage())))
			return
		}
		for _, ev := range s.mapper.mapResponse(resp) {
			if !s.emit(ev) {
				return
			}
		}
	}
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

// resultMapper turns Google results into sentence events. Interim results
// open a sentence and revise it; each final result ends it and advances the
// sequence number.
type resultMapper struct {
	seq     int
	open    bool
	lastEnd time.Duration
}

func (m *resultMapper) mapResponse(resp *speechpb.StreamingRecognizeResponse) []stt.Event {
	var out []stt.Event
	var interim strings.Builder
	var interimEnd time.Duration

	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		text := alts[0].GetTranscript()
		end := r.GetResultEndTime().AsDuration()

		if r.GetIsFinal() {
			out = append(out, stt.Sentence(models.SentenceEvent{
				Kind:      models.SentenceEnd,
				Seq:       m.seq,
				Text:      strings.TrimSpace(text),
				BeginTime: m.lastEnd,
				EndTime:   end,
			}))
			m.seq++
			m.open = false
			m.lastEnd = end
			continue
		}
		interim.WriteString(text)
		interimEnd = end
	}

	if interim.Len() == 0 {
		return out
	}
	if !m.open {
		m.open = true
		out = append(out, stt.Sentence(models.SentenceEvent{
			Kind:      models.SentenceBegin,
			Seq:       m.seq,
			BeginTime: m.lastEnd,
		}))
	}
	return append(out, stt.Sentence(models.SentenceEvent{
		Kind:      models.SentenceChanged,
		Seq:       m.seq,
		Text:      strings.TrimSpace(interim.String()),
		BeginTime: m.lastEnd,
		EndTime:   interimEnd,
	}))
}
