// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "asr_session"

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsClosed  prometheus.Counter
	SessionsFailed  *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Audio metrics
	AudioBytesSent     prometheus.Counter
	AudioChunksSent    prometheus.Counter
	KeepAlivesSent     prometheus.Counter
	InactivityExceeded prometheus.Counter

	// Sentence metrics
	SentenceEvents   *prometheus.CounterVec
	SentencesDropped prometheus.Counter
	ProtocolErrors   *prometheus.CounterVec

	// Stop metrics
	StopLatency      prometheus.Histogram
	StopGraceExpired prometheus.Counter

	// Transport metrics
	TransportErrors    *prometheus.CounterVec
	TransportStreams   *prometheus.CounterVec
	TransportStreamDur *prometheus.HistogramVec

	// Broker publish metrics
	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of recognition sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently streaming sessions",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total number of sessions closed normally",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of failed sessions",
		}, []string{"reason"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of recognition sessions in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),

		// Audio metrics
		AudioBytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Total audio bytes sent to the backend",
		}),
		AudioChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_sent_total",
			Help:      "Total audio chunks sent to the backend",
		}),
		KeepAlivesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keepalives_sent_total",
			Help:      "Total keep-alive frames sent during audio gaps",
		}),
		InactivityExceeded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inactivity_budget_exceeded_total",
			Help:      "Times the gap between sends exceeded the inactivity budget",
		}),

		// Sentence metrics
		SentenceEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentence_events_total",
			Help:      "Total sentence events dispatched",
		}, []string{"kind"}),
		SentencesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_dropped_total",
			Help:      "Open sentences abandoned without a final result",
		}),
		ProtocolErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Out-of-order or malformed backend events",
		}, []string{"kind"}),

		// Stop metrics
		StopLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stop_latency_seconds",
			Help:      "Time from stop request to session close",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		StopGraceExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stop_grace_expired_total",
			Help:      "Stops that closed before the backend acknowledged end of stream",
		}),

		// Transport metrics
		TransportErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Total transport errors",
		}, []string{"provider", "op"}),
		TransportStreams: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_grpc_streams_total",
			Help:      "gRPC client streams opened by transports",
		}, []string{"method", "code"}),
		TransportStreamDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transport_grpc_stream_open_seconds",
			Help:      "Time to open a gRPC client stream",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method"}),

		// Broker publish metrics
		PublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of broker messages published",
		}, []string{"broker", "event_type"}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of broker publish errors",
		}, []string{"broker", "event_type"}),
		PublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Broker publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"broker"}),
	}
}

// RecordSessionStart records a session entering Streaming.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a streaming session reaching Closed or Failed.
// reason is empty for a normal close.
func (m *Metrics) RecordSessionEnd(reason string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if reason == "" {
		m.SessionsClosed.Inc()
	} else {
		m.SessionsFailed.WithLabelValues(reason).Inc()
	}
}

// RecordSessionFailedBeforeStreaming records a failed handshake.
func (m *Metrics) RecordSessionFailedBeforeStreaming(reason string) {
	m.SessionsFailed.WithLabelValues(reason).Inc()
}

// RecordAudioSent records one audio chunk sent.
func (m *Metrics) RecordAudioSent(bytes int) {
	m.AudioBytesSent.Add(float64(bytes))
	m.AudioChunksSent.Inc()
}

// RecordKeepAlive records a keep-alive frame sent.
func (m *Metrics) RecordKeepAlive() {
	m.KeepAlivesSent.Inc()
}

// RecordInactivityExceeded records an idle gap longer than the inactivity budget.
func (m *Metrics) RecordInactivityExceeded() {
	m.InactivityExceeded.Inc()
}

// RecordSentenceEvent records a dispatched sentence event.
func (m *Metrics) RecordSentenceEvent(kind string) {
	m.SentenceEvents.WithLabelValues(kind).Inc()
}

// RecordSentencesDropped records open sentences abandoned on failure.
func (m *Metrics) RecordSentencesDropped(n int) {
	m.SentencesDropped.Add(float64(n))
}

// RecordProtocolError records a rejected backend event.
func (m *Metrics) RecordProtocolError(kind string) {
	m.ProtocolErrors.WithLabelValues(kind).Inc()
}

// RecordStop records how long a stop took and whether the grace period expired.
func (m *Metrics) RecordStop(latencySeconds float64, graceExpired bool) {
	m.StopLatency.Observe(latencySeconds)
	if graceExpired {
		m.StopGraceExpired.Inc()
	}
}

// RecordTransportError records a transport failure.
func (m *Metrics) RecordTransportError(provider, op string) {
	m.TransportErrors.WithLabelValues(provider, op).Inc()
}

// RecordTransportStream records a gRPC client stream being opened.
func (m *Metrics) RecordTransportStream(method, code string, openSeconds float64) {
	m.TransportStreams.WithLabelValues(method, code).Inc()
	m.TransportStreamDur.WithLabelValues(method).Observe(openSeconds)
}

// RecordPublish records a broker publish attempt.
func (m *Metrics) RecordPublish(broker, eventType string, err error, latencySeconds float64) {
	m.PublishTotal.WithLabelValues(broker, eventType).Inc()
	m.PublishLatency.WithLabelValues(broker).Observe(latencySeconds)
	if err != nil {
		m.PublishErrors.WithLabelValues(broker, eventType).Inc()
	}
}
