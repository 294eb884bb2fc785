package recognition

import (
	"errors"
	"fmt"

	"asr-session-client/internal/models"
)

// Error taxonomy. Use errors.Is to classify errors returned by a Session.
var (
	// ErrInvalidState - operation called in the wrong session state. Not retried.
	ErrInvalidState = errors.New("invalid session state")
	// ErrConnection - transport failure. The session moves to StateFailed.
	ErrConnection = errors.New("connection error")
	// ErrAudioSource - local read failure. The session moves to StateFailed.
	ErrAudioSource = errors.New("audio source error")
	// ErrProtocol - malformed or out-of-order backend event. Tolerated.
	ErrProtocol = errors.New("protocol error")
	// ErrSessionClosed - feed interrupted because the session left StateStreaming.
	ErrSessionClosed = errors.New("session closed")
)

// StateError reports an operation called in the wrong state.
type StateError struct {
	Op     string
	State  State
	Reason string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("%s: %v (state %s)", e.Op, ErrInvalidState, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is matches ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ProtocolError reports a backend event rejected by the dispatcher.
type ProtocolError struct {
	Seq  int // -1 when the event could not be decoded
	Kind models.SentenceKind
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v: %v", ErrProtocol, e.Err)
}

// Is matches ErrProtocol.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func connectionError(op string, err error) error {
	if err == nil {
		err = errors.New("channel failed")
	}
	return fmt.Errorf("%w: %s: %w", ErrConnection, op, err)
}
