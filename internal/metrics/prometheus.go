package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dictation core. A nil
// *Metrics is valid and records nothing, so unit tests can run without
// touching the default registry.
type Metrics struct {
	// Session lifecycle metrics
	SessionsStarted   prometheus.Counter
	SessionsCancelled prometheus.Counter
	SessionsTimedOut  prometheus.Counter
	CommitsTotal      prometheus.Counter
	CommitCharacters  prometheus.Histogram

	// Capture metrics
	CaptureChunks   prometheus.Counter
	CaptureDuration prometheus.Histogram

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

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session lifecycle metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxtype_sessions_started_total",
			Help: "Total number of dictation sessions started",
		}),
		SessionsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxtype_sessions_cancelled_total",
			Help: "Total number of dictation sessions cancelled by the user",
		}),
		SessionsTimedOut: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxtype_sessions_timed_out_total",
			Help: "Total number of dictation sessions ended by the transcription deadline",
		}),
		CommitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxtype_commits_total",
			Help: "Total number of transcripts committed to the input target",
		}),
		CommitCharacters: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxtype_commit_characters",
			Help:    "Length of committed transcripts in characters",
			Buckets: prometheus.ExponentialBuckets(8, 2, 10), // 8 chars to ~4K
		}),

		// Capture metrics
		CaptureChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxtype_capture_chunks_total",
			Help: "Total number of audio chunks drained from the capture device",
		}),
		CaptureDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxtype_capture_duration_seconds",
			Help:    "Duration of recorded utterances in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxtype_transcription_requests_total",
			Help: "Total number of transcription uploads attempted",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxtype_transcription_successes_total",
			Help: "Total number of successful transcription uploads",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxtype_transcription_failures_total",
			Help: "Total number of failed transcription uploads",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxtype_transcription_duration_seconds",
			Help:    "Duration of transcription uploads including stream read",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voxtype_http_requests_total",
			Help: "Total number of debug API requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxtype_http_request_duration_seconds",
			Help:    "Duration of debug API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voxtype_http_errors_total",
			Help: "Total number of debug API errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionStarted increments the sessions started counter.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// RecordSessionCancelled increments the sessions cancelled counter.
func (m *Metrics) RecordSessionCancelled() {
	if m == nil {
		return
	}
	m.SessionsCancelled.Inc()
}

// RecordSessionTimedOut increments the timed out counter.
func (m *Metrics) RecordSessionTimedOut() {
	if m == nil {
		return
	}
	m.SessionsTimedOut.Inc()
}

// RecordCommit records one committed transcript.
func (m *Metrics) RecordCommit(characters int) {
	if m == nil {
		return
	}
	m.CommitsTotal.Inc()
	m.CommitCharacters.Observe(float64(characters))
}

// RecordCaptureChunk increments the capture chunk counter.
func (m *Metrics) RecordCaptureChunk() {
	if m == nil {
		return
	}
	m.CaptureChunks.Inc()
}

// RecordCaptureDuration records the length of one recorded utterance.
func (m *Metrics) RecordCaptureDuration(seconds float64) {
	if m == nil {
		return
	}
	m.CaptureDuration.Observe(seconds)
}

// RecordTranscriptionRequest increments the transcription requests counter.
func (m *Metrics) RecordTranscriptionRequest() {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful upload.
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed upload.
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records a debug API request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records a debug API error.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
