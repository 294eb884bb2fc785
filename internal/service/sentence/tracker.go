package sentence

import (
	"fmt"
	"sort"
	"sync"

	"asr-session-client/internal/models"
)

// Tracker keeps one Lifecycle per sequence number and validates that the
// events of a sentence arrive in Begin → Changed* → End order. It never
// reorders events across sequence numbers.
type Tracker struct {
	mu        sync.Mutex
	sentences map[int]*Lifecycle
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{sentences: make(map[int]*Lifecycle)}
}

// Observe validates and records one event. The returned error is one of the
// package transition errors, wrapped with the offending kind and sequence.
func (t *Tracker) Observe(kind models.SentenceKind, seq int) error {
	lc := t.lifecycle(seq)

	var err error
	switch kind {
	case models.SentenceBegin:
		err = lc.Begin()
	case models.SentenceChanged:
		err = lc.Change()
	case models.SentenceEnd:
		err = lc.End()
	default:
		return fmt.Errorf("sentence %d: unknown event kind %d", seq, kind)
	}
	if err != nil {
		return fmt.Errorf("sentence %d %s: %w", seq, kind, err)
	}
	return nil
}

// State returns the state of a sequence number (StateNew if never observed).
func (t *Tracker) State(seq int) State {
	t.mu.Lock()
	lc, ok := t.sentences[seq]
	t.mu.Unlock()
	if !ok {
		return StateNew
	}
	return lc.State()
}

// Pending returns the sequence numbers that were opened but not finalized,
// in ascending order.
func (t *Tracker) Pending() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []int
	for seq, lc := range t.sentences {
		if !lc.State().IsTerminal() {
			out = append(out, seq)
		}
	}
	sort.Ints(out)
	return out
}

// DropPending drops every open sentence and returns how many were dropped.
func (t *Tracker) DropPending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, lc := range t.sentences {
		if lc.Drop() {
			n++
		}
	}
	return n
}

func (t *Tracker) lifecycle(seq int) *Lifecycle {
	t.mu.Lock()
	defer t.mu.Unlock()

	lc, ok := t.sentences[seq]
	if !ok {
		lc = NewLifecycle(seq)
		t.sentences[seq] = lc
	}
	return lc
}
