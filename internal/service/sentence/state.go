// Package sentence tracks the lifecycle of backend sentences by sequence number.
package sentence

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a sentence.
type State int

const (
	// StateNew - No event observed yet.
	StateNew State = iota
	// StateBegun - Begin observed, no partial yet.
	StateBegun
	// StateChanging - At least one partial observed.
	StateChanging
	// StateEnded - Final observed. Terminal.
	StateEnded
	// StateDropped - Abandoned without a final (session failed). Terminal.
	StateDropped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateBegun:
		return "BEGUN"
	case StateChanging:
		return "CHANGING"
	case StateEnded:
		return "ENDED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (ENDED or DROPPED).
func (s State) IsTerminal() bool {
	return s == StateEnded || s == StateDropped
}

// Errors for invalid transitions.
var (
	ErrDuplicateBegin    = errors.New("begin already observed for this sentence")
	ErrBeginAfterChanged = errors.New("begin observed after a partial")
	ErrSentenceEnded     = errors.New("sentence already ended")
	ErrSentenceDropped   = errors.New("sentence was dropped")
)

// Lifecycle manages the state machine for a single sentence.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	NEW ──Begin()──→ BEGUN ──Change()──→ CHANGING ──End()──→ ENDED
//	 │                 │                                 ↑
//	 ├──Change()───────┼──────────→ CHANGING             │
//	 └──End()──────────┴─────────────────────────────────┘
//
// Begin and Change are optional: a short utterance may only produce End.
type Lifecycle struct {
	mu    sync.RWMutex
	seq   int
	state State
}

// NewLifecycle creates a new sentence lifecycle in NEW state.
func NewLifecycle(seq int) *Lifecycle {
	return &Lifecycle{seq: seq, state: StateNew}
}

// Seq returns the sentence sequence number.
func (l *Lifecycle) Seq() int {
	return l.seq
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Begin validates and records a Begin event.
func (l *Lifecycle) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateNew:
		l.state = StateBegun
		return nil
	case StateBegun:
		return ErrDuplicateBegin
	case StateChanging:
		return ErrBeginAfterChanged
	case StateEnded:
		return ErrSentenceEnded
	case StateDropped:
		return ErrSentenceDropped
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Change validates and records a partial (Changed) event.
func (l *Lifecycle) Change() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateNew, StateBegun, StateChanging:
		l.state = StateChanging
		return nil
	case StateEnded:
		return ErrSentenceEnded
	case StateDropped:
		return ErrSentenceDropped
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// End validates and transitions to ENDED. Only succeeds once.
func (l *Lifecycle) End() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateNew, StateBegun, StateChanging:
		l.state = StateEnded
		return nil
	case StateEnded:
		return ErrSentenceEnded
	case StateDropped:
		return ErrSentenceDropped
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Drop abandons the sentence without a final.
// Returns true if the sentence was dropped, false if already terminal.
func (l *Lifecycle) Drop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDropped
	return true
}
