// Package prometheus provides Prometheus metrics for the media gateway.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mediagateway"

// Frame drop reasons.
const (
	DropUnsupportedFormat = "unsupported_format"
	DropNoStream          = "no_stream"
	DropClosed            = "closed"
	DropTransportClosed   = "transport_closed"
)

var (
	// sessionsActive is a gauge of live call sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active call sessions",
		},
	)

	// sessionsTotal counts finished sessions by outcome.
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of call sessions by outcome",
		},
		[]string{"outcome"}, // outcome: closed, timeout, rejected, error
	)

	// sessionDuration is a histogram of call length.
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of call session duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// framesReceivedTotal counts inbound binary audio frames.
	framesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total inbound audio frames",
		},
	)

	// framesDroppedTotal counts audio frames dropped under the bounded-loss policy.
	framesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total audio frames dropped",
		},
		[]string{"reason"},
	)

	// utteranceBoundariesTotal counts VAD silence boundaries.
	utteranceBoundariesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterance_boundaries_total",
			Help:      "Total utterance boundaries raised by the silence timer",
		},
	)

	// transcriptsTotal counts transcript events by kind.
	transcriptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Total transcript events",
		},
		[]string{"kind"}, // kind: interim, final, empty
	)

	// responsesTotal counts response cycles by status.
	responsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total response cycles",
		},
		[]string{"status"}, // status: success, fallback, error, discarded
	)

	// providerDuration is a histogram of provider call duration.
	providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Duration of STT/LLM/TTS provider calls in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage", "provider"},
	)

	// providerErrorsTotal counts provider failures.
	providerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total provider errors",
		},
		[]string{"stage", "provider"},
	)

	// ttsFramesSentTotal counts synthesized frames written to the transport.
	ttsFramesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_frames_sent_total",
			Help:      "Total synthesized audio frames sent to the transport",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		framesReceivedTotal,
		framesDroppedTotal,
		utteranceBoundariesTotal,
		transcriptsTotal,
		responsesTotal,
		providerDuration,
		providerErrorsTotal,
		ttsFramesSentTotal,
	}
)

// RecordSessionStart records a session start.
func RecordSessionStart() {
	sessionsActive.Inc()
}

// RecordSessionEnd records a session end.
func RecordSessionEnd(outcome string, durationSeconds float64) {
	sessionsActive.Dec()
	sessionsTotal.WithLabelValues(outcome).Inc()
	sessionDuration.Observe(durationSeconds)
}

// RecordSessionRejected records a connection refused by the concurrency limit.
func RecordSessionRejected() {
	sessionsTotal.WithLabelValues("rejected").Inc()
}

// RecordFrameReceived records an inbound audio frame.
func RecordFrameReceived() {
	framesReceivedTotal.Inc()
}

// RecordFrameDropped records a dropped audio frame.
func RecordFrameDropped(reason string) {
	framesDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordUtteranceBoundary records a VAD boundary.
func RecordUtteranceBoundary() {
	utteranceBoundariesTotal.Inc()
}

// RecordTranscript records a transcript event.
func RecordTranscript(kind string) {
	transcriptsTotal.WithLabelValues(kind).Inc()
}

// RecordResponse records the outcome of one response cycle.
func RecordResponse(status string) {
	responsesTotal.WithLabelValues(status).Inc()
}

// RecordProviderCall records one provider call and, if it failed, an error.
func RecordProviderCall(stage, provider string, durationSeconds float64, err error) {
	providerDuration.WithLabelValues(stage, provider).Observe(durationSeconds)
	if err != nil {
		providerErrorsTotal.WithLabelValues(stage, provider).Inc()
	}
}

// RecordTTSFrameSent records a synthesized frame sent to the transport.
func RecordTTSFrameSent() {
	ttsFramesSentTotal.Inc()
}
