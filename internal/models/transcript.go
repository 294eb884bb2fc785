// Package models defines the data structures shared by the recognition
// session, its transports and the event sinks.
package models

import (
	"strings"
	"time"
)

// SentenceKind identifies the position of a SentenceEvent in a sentence's lifecycle.
type SentenceKind int

const (
	// SentenceBegin opens a sentence. Optional for very short utterances.
	SentenceBegin SentenceKind = iota
	// SentenceChanged carries a partial, possibly revised, transcription.
	SentenceChanged
	// SentenceEnd carries the immutable final transcription.
	SentenceEnd
)

// String returns the string representation of the kind.
func (k SentenceKind) String() string {
	switch k {
	case SentenceBegin:
		return "BEGIN"
	case SentenceChanged:
		return "CHANGED"
	case SentenceEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// SentenceEvent is a single recognition result for one sentence.
type SentenceEvent struct {
	Kind SentenceKind
	Seq  int    // backend sentence sequence number
	Text string // partial for Begin/Changed, final for End

	// Timing metadata relative to the start of the audio stream. Zero when
	// the backend does not report it.
	BeginTime time.Duration
	EndTime   time.Duration
}

// TranscriptSentence is one finalized sentence of a Transcript.
type TranscriptSentence struct {
	Seq       int
	Text      string
	BeginTime time.Duration
	EndTime   time.Duration
}

// Transcript is the ordered list of finalized sentences of a session.
type Transcript struct {
	Sentences []TranscriptSentence
}

// Len returns the number of finalized sentences.
func (t Transcript) Len() int {
	return len(t.Sentences)
}

// Texts returns the finalized sentence texts in End-arrival order.
func (t Transcript) Texts() []string {
	out := make([]string, 0, len(t.Sentences))
	for _, s := range t.Sentences {
		out = append(out, s.Text)
	}
	return out
}

// Text renders the transcript one sentence per line.
func (t Transcript) Text() string {
	var sb strings.Builder
	for _, s := range t.Sentences {
		sb.WriteString(s.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// TranscriptPartial represents an interim/partial transcript result.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Principal string `json:"principal"`
	Timestamp int64  `json:"timestamp"`
	Seq       int    `json:"seq"`
	Stage     string `json:"stage"` // BEGIN or CHANGED
	Text      string `json:"text"`
}

// TranscriptFinal represents a final transcript result for one sentence.
type TranscriptFinal struct {
	EventType   string `json:"eventType"`
	SessionID   string `json:"sessionId"`
	Principal   string `json:"principal"`
	Timestamp   int64  `json:"timestamp"`
	Seq         int    `json:"seq"`
	Text        string `json:"text"`
	BeginTimeMs int64  `json:"beginTimeMs"`
	EndTimeMs   int64  `json:"endTimeMs"`
}

// SessionStateChanged represents a session lifecycle transition.
type SessionStateChanged struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Principal string `json:"principal"`
	Timestamp int64  `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Error     string `json:"error,omitempty"`
}
