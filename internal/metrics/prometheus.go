package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the mic STT service
type Metrics struct {
	// Audio capture metrics
	FramesCaptured prometheus.Counter
	FramesDropped  prometheus.Counter
	CaptureStarts  prometheus.Counter

	// Engine dispatch metrics
	DispatchesTriggered prometheus.Counter
	DispatchesDiscarded prometheus.Counter
	DispatchAudioLength prometheus.Histogram
	FlushTimeouts       prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Pipeline metrics
	PipelineStarts prometheus.Counter
	PipelineStops  prometheus.Counter
	PipelineState  prometheus.Gauge

	// Event delivery metrics
	EventsPublished   prometheus.Counter
	EventsDropped     prometheus.Counter
	ActiveSubscribers prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Audio capture metrics
		FramesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_frames_captured_total",
			Help: "Total number of audio frames captured from the input device",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_frames_dropped_total",
			Help: "Total number of audio frames dropped due to a full handoff channel",
		}),
		CaptureStarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_capture_starts_total",
			Help: "Total number of capture sessions started",
		}),

		// Engine dispatch metrics
		DispatchesTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_dispatches_triggered_total",
			Help: "Total number of audio buffers dispatched for inference",
		}),
		DispatchesDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_dispatches_discarded_total",
			Help: "Total number of buffers discarded for being below the minimum duration",
		}),
		DispatchAudioLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "micstt_dispatch_audio_seconds",
			Help:    "Duration of dispatched audio buffers in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),
		FlushTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_flush_timeouts_total",
			Help: "Total number of flush waits that hit the timeout",
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "micstt_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Pipeline metrics
		PipelineStarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_pipeline_starts_total",
			Help: "Total number of pipeline starts",
		}),
		PipelineStops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_pipeline_stops_total",
			Help: "Total number of pipeline stops",
		}),
		PipelineState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "micstt_pipeline_state",
			Help: "Current pipeline state (0=stopped, 1=starting, 2=running, 3=stopping, 4=error)",
		}),

		// Event delivery metrics
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_events_published_total",
			Help: "Total number of transcription events published to subscribers",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "micstt_events_dropped_total",
			Help: "Total number of events dropped due to slow subscribers",
		}),
		ActiveSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "micstt_active_subscribers",
			Help: "Current number of event subscribers",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "micstt_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "micstt_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "micstt_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// All Record helpers are safe on a nil receiver so components can run
// without metrics in tests.

// RecordFrameCaptured increments the captured frames counter
func (m *Metrics) RecordFrameCaptured() {
	if m == nil {
		return
	}
	m.FramesCaptured.Inc()
}

// RecordFrameDropped increments the dropped frames counter
func (m *Metrics) RecordFrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

// RecordCaptureStart increments the capture sessions counter
func (m *Metrics) RecordCaptureStart() {
	if m == nil {
		return
	}
	m.CaptureStarts.Inc()
}

// RecordDispatch records a dispatched audio buffer and its duration in seconds
func (m *Metrics) RecordDispatch(audioSeconds float64) {
	if m == nil {
		return
	}
	m.DispatchesTriggered.Inc()
	m.DispatchAudioLength.Observe(audioSeconds)
}

// RecordDispatchDiscarded increments the discarded dispatches counter
func (m *Metrics) RecordDispatchDiscarded() {
	if m == nil {
		return
	}
	m.DispatchesDiscarded.Inc()
}

// RecordFlushTimeout increments the flush timeout counter
func (m *Metrics) RecordFlushTimeout() {
	if m == nil {
		return
	}
	m.FlushTimeouts.Inc()
}

// RecordTranscriptionRequest increments transcription requests counter
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

// RecordPipelineStart increments the pipeline starts counter
func (m *Metrics) RecordPipelineStart() {
	if m == nil {
		return
	}
	m.PipelineStarts.Inc()
}

// RecordPipelineStop increments the pipeline stops counter
func (m *Metrics) RecordPipelineStop() {
	if m == nil {
		return
	}
	m.PipelineStops.Inc()
}

// SetPipelineState sets the pipeline state gauge
func (m *Metrics) SetPipelineState(state int) {
	if m == nil {
		return
	}
	m.PipelineState.Set(float64(state))
}

// RecordEventPublished increments the published events counter
func (m *Metrics) RecordEventPublished() {
	if m == nil {
		return
	}
	m.EventsPublished.Inc()
}

// RecordEventDropped increments the dropped events counter
func (m *Metrics) RecordEventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// SetActiveSubscribers sets the subscribers gauge
func (m *Metrics) SetActiveSubscribers(count int) {
	if m == nil {
		return
	}
	m.ActiveSubscribers.Set(float64(count))
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
