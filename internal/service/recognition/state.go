// Package recognition implements the client side of a streaming speech
// recognition session: the session state machine, the paced audio feeder
// and the ordered dispatch of sentence results into a transcript.
package recognition

import (
	"fmt"
	"time"
)

// State represents the lifecycle state of a Session.
type State int

const (
	// StateCreated - Session constructed, may be configured.
	StateCreated State = iota
	// StateStarted - Handshake with the backend in progress.
	StateStarted
	// StateStreaming - Channel open, audio may be fed.
	StateStreaming
	// StateStopping - End of stream sent, waiting for final results.
	StateStopping
	// StateClosed - Session ended normally. Terminal.
	StateClosed
	// StateFailed - Session ended by a transport or audio failure. Terminal.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateStarted:
		return "STARTED"
	case StateStreaming:
		return "STREAMING"
	case StateStopping:
		return "STOPPING"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (CLOSED or FAILED).
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}

// StateChange describes one session transition. Err is set on transitions
// to StateFailed.
type StateChange struct {
	SessionID string
	From      State
	To        State
	Err       error
	At        time.Time
}
