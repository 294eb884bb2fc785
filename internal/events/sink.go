package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"asr-session-client/internal/models"
	"asr-session-client/internal/observability/logging"
	"asr-session-client/internal/observability/metrics"
	"asr-session-client/internal/service/recognition"
)

// ErrSinkFull is recorded when an event is dropped because the queue is full.
var ErrSinkFull = errors.New("events: sink queue full")

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 5 * time.Second
)

type job struct {
	eventType string
	key       string
	event     any
}

// Sink fans session events out to brokers. Session callbacks only enqueue;
// publishing happens on the sink's own goroutine, in enqueue order.
type Sink struct {
	brokers   []Broker
	principal string
	timeout   time.Duration
	metrics   *metrics.Metrics
	log       zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

// NewSink starts a sink publishing to brokers.
func NewSink(principal string, brokers ...Broker) *Sink {
	s := &Sink{
		brokers:   brokers,
		principal: principal,
		timeout:   defaultPublishTimeout,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("events-sink"),
		queue:     make(chan job, defaultQueueSize),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Callbacks returns session callbacks that publish every sentence event and
// state change of sessionID, then call the matching callback of next.
func (s *Sink) Callbacks(sessionID string, next recognition.Callbacks) recognition.Callbacks {
	partial := func(ev models.SentenceEvent) {
		s.enqueue(EventTypePartial, sessionID, models.TranscriptPartial{
			EventType: EventTypePartial,
			SessionID: sessionID,
			Principal: s.principal,
			Timestamp: time.Now().UnixMilli(),
			Seq:       ev.Seq,
			Stage:     ev.Kind.String(),
			Text:      ev.Text,
		})
	}

	return recognition.Callbacks{
		OnBegin: func(ev models.SentenceEvent) {
			partial(ev)
			if next.OnBegin != nil {
				next.OnBegin(ev)
			}
		},
		OnChanged: func(ev models.SentenceEvent) {
			partial(ev)
			if next.OnChanged != nil {
				next.OnChanged(ev)
			}
		},
		OnEnd: func(ev models.SentenceEvent) {
			s.enqueue(EventTypeFinal, sessionID, models.TranscriptFinal{
				EventType:   EventTypeFinal,
				SessionID:   sessionID,
				Principal:   s.principal,
				Timestamp:   time.Now().UnixMilli(),
				Seq:         ev.Seq,
				Text:        ev.Text,
				BeginTimeMs: ev.BeginTime.Milliseconds(),
				EndTimeMs:   ev.EndTime.Milliseconds(),
			})
			if next.OnEnd != nil {
				next.OnEnd(ev)
			}
		},
		OnProtocolError: next.OnProtocolError,
		OnStateChange: func(c recognition.StateChange) {
			payload := models.SessionStateChanged{
				EventType: EventTypeState,
				SessionID: sessionID,
				Principal: s.principal,
				Timestamp: c.At.UnixMilli(),
				From:      c.From.String(),
				To:        c.To.String(),
			}
			if c.Err != nil {
				payload.Error = c.Err.Error()
			}
			s.enqueue(EventTypeState, sessionID, payload)
			if next.OnStateChange != nil {
				next.OnStateChange(c)
			}
		},
	}
}

func (s *Sink) enqueue(eventType, key string, event any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- job{eventType: eventType, key: key, event: event}:
	default:
		s.metrics.RecordPublish("sink", eventType, ErrSinkFull, 0)
		s.log.Warn().Str("eventType", eventType).Str("key", key).Msg("Event dropped, sink queue full")
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for j := range s.queue {
		for _, b := range s.brokers {
			s.publish(b, j)
		}
	}
}

func (s *Sink) publish(b Broker, j job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	switch j.eventType {
	case EventTypePartial:
		err = b.PublishPartial(ctx, j.key, j.event)
	case EventTypeFinal:
		err = b.PublishFinal(ctx, j.key, j.event)
	case EventTypeState:
		err = b.PublishState(ctx, j.key, j.event)
	}
	if err != nil {
		s.log.Error().
			Err(err).
			Str("broker", b.Name()).
			Str("eventType", j.eventType).
			Str("key", j.key).
			Msg("Publish failed")
	}
}

// Close publishes queued events, then closes every broker.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done

	var errs []error
	for _, b := range s.brokers {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
