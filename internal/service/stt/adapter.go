// Package stt defines the transport contract between a recognition session
// and a Speech-to-Text backend.
package stt

import (
	"context"

	"asr-session-client/internal/models"
)

// EventType distinguishes sentence results from terminal stream events.
type EventType int

const (
	// EventSentence carries a SentenceEvent.
	EventSentence EventType = iota
	// EventCompleted is the backend's terminal acknowledgment after end of stream.
	EventCompleted
	// EventFailed reports a lost or rejected channel. Err is set.
	EventFailed
	// EventMalformed reports a backend message that could not be decoded.
	// Err is set; Sentence.Kind is the announced kind or UnknownKind.
	EventMalformed
)

// UnknownKind marks a malformed event whose sentence kind is not known.
const UnknownKind models.SentenceKind = -1

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventSentence:
		return "sentence"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Event is one item of a Stream's event source.
type Event struct {
	Type     EventType
	Sentence models.SentenceEvent
	Err      error
}

// Sentence wraps a sentence result into an Event.
func Sentence(ev models.SentenceEvent) Event {
	return Event{Type: EventSentence, Sentence: ev}
}

// Completed returns the terminal acknowledgment Event.
func Completed() Event {
	return Event{Type: EventCompleted}
}

// Failed returns a connection-loss Event.
func Failed(err error) Event {
	return Event{Type: EventFailed, Err: err}
}

// Malformed returns an undecodable-message Event. The stream stays usable.
func Malformed(kind models.SentenceKind, err error) Event {
	return Event{Type: EventMalformed, Sentence: models.SentenceEvent{Kind: kind, Seq: -1}, Err: err}
}

// Adapter opens recognition channels to one backend (Google, WebSocket, mock, ...).
// One Stream is opened per session and never shared.
type Adapter interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Open authenticates, opens the channel and sends the recognition config.
	Open(ctx context.Context, cfg models.RecognitionConfig) (Stream, error)
}

// Stream is an open recognition channel.
//
// The send methods may be called from different goroutines (the audio
// feeder and the inactivity watchdog); implementations serialize writes.
type Stream interface {
	// SendAudio sends one chunk of raw audio.
	SendAudio(ctx context.Context, audio []byte) error

	// SendKeepAlive sends a no-op frame that resets the backend's inactivity timer.
	SendKeepAlive(ctx context.Context) error

	// SendEndOfStream tells the backend no more audio will follow.
	SendEndOfStream(ctx context.Context) error

	// Events yields decoded backend events in arrival order. The channel is
	// closed when the stream ends.
	Events() <-chan Event

	// Close releases the channel. Idempotent.
	Close() error
}
