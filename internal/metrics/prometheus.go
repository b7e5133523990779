package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the service. All Record
// helpers tolerate a nil receiver so components can run uninstrumented
// in tests.
type Metrics struct {
	// Connection metrics
	ActiveConnections prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	EventsReceived    *prometheus.CounterVec
	EventsSent        *prometheus.CounterVec
	ProtocolErrors    prometheus.Counter

	// Utterance metrics
	UtterancesStarted   prometheus.Counter
	UtterancesCompleted prometheus.Counter
	UtteranceBytes      prometheus.Histogram
	EmptyUtterances     prometheus.Counter
	UnexpectedChunks    prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Connection metrics
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wyoming_active_connections",
			Help: "Current number of open Wyoming client connections",
		}),
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wyoming_connections_total",
			Help: "Total number of accepted Wyoming client connections",
		}),
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wyoming_events_received_total",
			Help: "Total number of Wyoming events read from clients",
		}, []string{"type"}),
		EventsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wyoming_events_sent_total",
			Help: "Total number of Wyoming events written to clients",
		}, []string{"type"}),
		ProtocolErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wyoming_protocol_errors_total",
			Help: "Total number of malformed events or read failures",
		}),

		// Utterance metrics
		UtterancesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wyoming_utterances_started_total",
			Help: "Total number of audio-start events beginning an utterance",
		}),
		UtterancesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wyoming_utterances_completed_total",
			Help: "Total number of utterances finalized by audio-stop",
		}),
		UtteranceBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wyoming_utterance_bytes",
			Help:    "Size of finalized utterances in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		EmptyUtterances: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wyoming_empty_utterances_total",
			Help: "Total number of utterances finalized with no audio data",
		}),
		UnexpectedChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wyoming_unexpected_chunks_total",
			Help: "Total number of audio-chunk events received outside an utterance",
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wyoming_transcription_requests_total",
			Help: "Total number of transcription requests sent to the backend",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wyoming_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wyoming_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wyoming_transcription_duration_seconds",
			Help:    "Duration of transcription backend calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wyoming_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wyoming_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wyoming_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordConnectionOpened increments the connection counters
func (m *Metrics) RecordConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ActiveConnections.Inc()
}

// RecordConnectionClosed decrements the active connection gauge
func (m *Metrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

// RecordEventReceived counts one event read from a client
func (m *Metrics) RecordEventReceived(eventType string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(eventType).Inc()
}

// RecordEventSent counts one event written to a client
func (m *Metrics) RecordEventSent(eventType string) {
	if m == nil {
		return
	}
	m.EventsSent.WithLabelValues(eventType).Inc()
}

// RecordProtocolError counts one malformed event or read failure
func (m *Metrics) RecordProtocolError() {
	if m == nil {
		return
	}
	m.ProtocolErrors.Inc()
}

// RecordUtteranceStarted counts one audio-start event
func (m *Metrics) RecordUtteranceStarted() {
	if m == nil {
		return
	}
	m.UtterancesStarted.Inc()
}

// RecordUtteranceCompleted records a finalized utterance and its size
func (m *Metrics) RecordUtteranceCompleted(sizeBytes int) {
	if m == nil {
		return
	}
	m.UtterancesCompleted.Inc()
	m.UtteranceBytes.Observe(float64(sizeBytes))
}

// RecordEmptyUtterance counts an utterance finalized with no audio
func (m *Metrics) RecordEmptyUtterance() {
	if m == nil {
		return
	}
	m.EmptyUtterances.Inc()
}

// RecordUnexpectedChunk counts an audio-chunk received outside an utterance
func (m *Metrics) RecordUnexpectedChunk() {
	if m == nil {
		return
	}
	m.UnexpectedChunks.Inc()
}

// RecordTranscriptionRequest increments the transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
