package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the poll service
type Metrics struct {
	// Audio segment metrics
	SegmentsRecorded prometheus.Counter
	SegmentsSkipped  prometheus.Counter
	SegmentDuration  prometheus.Histogram
	SegmentLevel     prometheus.Histogram
	QueueDepth       prometheus.Gauge

	// Recording session metrics
	RecordingActive   prometheus.Gauge
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionDuration   prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	TranscriptionRetries   prometheus.Counter

	// Generation metrics
	NotesGenerated  prometheus.Counter
	PollsGenerated  prometheus.Counter
	PollsPosted     prometheus.Counter
	PollPostErrors  prometheus.Counter
	LLMRequestTime  *prometheus.HistogramVec
	LLMErrors       *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Audio segment metrics
		SegmentsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_segments_recorded_total",
			Help: "Total number of audio segments recorded",
		}),
		SegmentsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_segments_skipped_total",
			Help: "Total number of audio segments skipped as silence",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poll_segment_duration_seconds",
			Help:    "Duration of recorded audio segments",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),
		SegmentLevel: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poll_segment_rms_level",
			Help:    "Normalized RMS level of recorded audio segments",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "poll_segment_queue_depth",
			Help: "Current number of segments waiting for transcription",
		}),

		// Recording session metrics
		RecordingActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "poll_recording_active",
			Help: "Whether a recording session is currently active (0 or 1)",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_sessions_completed_total",
			Help: "Total number of recording sessions completed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poll_session_duration_seconds",
			Help:    "Duration of recording sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10s to ~3 hours
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poll_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		TranscriptionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),

		// Generation metrics
		NotesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_notes_generated_total",
			Help: "Total number of meeting notes generated",
		}),
		PollsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_polls_generated_total",
			Help: "Total number of polls generated",
		}),
		PollsPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_polls_posted_total",
			Help: "Total number of polls posted to Zoom",
		}),
		PollPostErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_poll_post_errors_total",
			Help: "Total number of failed poll posts to Zoom",
		}),
		LLMRequestTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poll_llm_request_duration_seconds",
			Help:    "Duration of language model requests",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~8 minutes
		}, []string{"provider"}),
		LLMErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poll_llm_errors_total",
			Help: "Total number of language model request errors",
		}, []string{"provider"}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poll_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poll_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poll_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "poll_ws_connections",
			Help: "Current number of WebSocket transcript subscribers",
		}),
		WSMessages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poll_ws_messages_total",
			Help: "Total number of WebSocket messages pushed",
		}),
	}
}

// RecordSegment records a recorded audio segment
func (m *Metrics) RecordSegment(durationSeconds, rmsLevel float64) {
	m.SegmentsRecorded.Inc()
	m.SegmentDuration.Observe(durationSeconds)
	m.SegmentLevel.Observe(rmsLevel)
}

// RecordSegmentSkipped increments the silence-skipped counter
func (m *Metrics) RecordSegmentSkipped() {
	m.SegmentsSkipped.Inc()
}

// SetQueueDepth sets the current transcription queue depth
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordSessionStarted marks a recording session as active
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.RecordingActive.Set(1)
}

// RecordSessionCompleted marks the session finished and records its duration
func (m *Metrics) RecordSessionCompleted(durationSeconds float64) {
	m.SessionsCompleted.Inc()
	m.SessionDuration.Observe(durationSeconds)
	m.RecordingActive.Set(0)
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	m.TranscriptionRetries.Inc()
}

// RecordNoteGenerated increments the notes counter
func (m *Metrics) RecordNoteGenerated() {
	m.NotesGenerated.Inc()
}

// RecordPollGenerated increments the polls generated counter
func (m *Metrics) RecordPollGenerated() {
	m.PollsGenerated.Inc()
}

// RecordPollPosted records the outcome of posting a poll to Zoom
func (m *Metrics) RecordPollPosted(success bool) {
	if success {
		m.PollsPosted.Inc()
	} else {
		m.PollPostErrors.Inc()
	}
}

// RecordLLMRequest records a language model request outcome
func (m *Metrics) RecordLLMRequest(provider string, durationSeconds float64, err error) {
	m.LLMRequestTime.WithLabelValues(provider).Observe(durationSeconds)
	if err != nil {
		m.LLMErrors.WithLabelValues(provider).Inc()
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

// RecordWSConnect increments the WebSocket connection gauge
func (m *Metrics) RecordWSConnect() {
	m.WSConnections.Inc()
}

// RecordWSDisconnect decrements the WebSocket connection gauge
func (m *Metrics) RecordWSDisconnect() {
	m.WSConnections.Dec()
}

// RecordWSMessage increments the pushed message counter
func (m *Metrics) RecordWSMessage() {
	m.WSMessages.Inc()
}
