package recognition

import (
	"strings"

	"github.com/rs/zerolog"

	"asr-session-client/internal/models"
	"asr-session-client/internal/observability/metrics"
	"asr-session-client/internal/service/sentence"
)

// Dispatcher relays sentence events to the registered callbacks. It keeps
// per-sequence-number bookkeeping only to validate ordering and to append
// each final result to the transcript exactly once; it never reorders.
type Dispatcher struct {
	tracker    *sentence.Tracker
	transcript *transcriptLog
	callbacks  Callbacks
	deliver    func(func())
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewDispatcher creates a dispatcher. deliver schedules a callback
// invocation; it must preserve call order.
func NewDispatcher(cb Callbacks, deliver func(func()), m *metrics.Metrics, log zerolog.Logger) *Dispatcher {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Dispatcher{
		tracker:    sentence.NewTracker(),
		transcript: &transcriptLog{},
		callbacks:  cb,
		deliver:    deliver,
		metrics:    m,
		log:        log,
	}
}

// Dispatch handles one sentence event. Out-of-order events are reported to
// OnProtocolError, skipped and returned as *ProtocolError.
func (d *Dispatcher) Dispatch(ev models.SentenceEvent) error {
	kind := strings.ToLower(ev.Kind.String())

	if err := d.tracker.Observe(ev.Kind, ev.Seq); err != nil {
		perr := &ProtocolError{Seq: ev.Seq, Kind: ev.Kind, Err: err}
		d.report(perr, kind, "Out-of-order sentence event skipped")
		return perr
	}

	d.metrics.RecordSentenceEvent(kind)

	var cb func(models.SentenceEvent)
	switch ev.Kind {
	case models.SentenceBegin:
		cb = d.callbacks.OnBegin
	case models.SentenceChanged:
		cb = d.callbacks.OnChanged
	case models.SentenceEnd:
		d.transcript.append(ev)
		d.log.Debug().Int("seq", ev.Seq).Str("text", ev.Text).Msg("Sentence finalized")
		cb = d.callbacks.OnEnd
	}
	if cb != nil {
		d.deliver(func() { cb(ev) })
	}
	return nil
}

// Reject reports a backend message the transport could not decode. It is
// skipped like an out-of-order event and returned as *ProtocolError.
func (d *Dispatcher) Reject(kind models.SentenceKind, err error) error {
	perr := &ProtocolError{Seq: -1, Kind: kind, Err: err}
	d.report(perr, "malformed", "Malformed sentence event skipped")
	return perr
}

func (d *Dispatcher) report(perr *ProtocolError, label, msg string) {
	d.metrics.RecordProtocolError(label)
	d.log.Warn().
		Err(perr.Err).
		Int("seq", perr.Seq).
		Str("kind", perr.Kind.String()).
		Msg(msg)
	if cb := d.callbacks.OnProtocolError; cb != nil {
		d.deliver(func() { cb(perr) })
	}
}

// Transcript returns a snapshot of the finalized sentences.
func (d *Dispatcher) Transcript() models.Transcript {
	return d.transcript.snapshot()
}

// Pending returns the sequence numbers still waiting for a final result.
func (d *Dispatcher) Pending() []int {
	return d.tracker.Pending()
}

func (d *Dispatcher) dropPending() int {
	n := d.tracker.DropPending()
	if n > 0 {
		d.metrics.RecordSentencesDropped(n)
	}
	return n
}
