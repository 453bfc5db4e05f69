// Package metrics exposes Prometheus metrics for chat sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	TurnsTotal   prometheus.Counter
	TurnDuration prometheus.Histogram

	GenerationFailures prometheus.Counter
	SpeechFailures     *prometheus.CounterVec
	TaskFailures       *prometheus.CounterVec

	AudioBytesTotal *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "voicebridge"
	}

	registry := prometheus.NewRegistry()

	sessionsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of active chat sessions",
	})

	sessionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Total chat sessions by terminal status",
	}, []string{"status"})

	sessionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_duration_seconds",
		Help:      "Chat session duration in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	turnsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_total",
		Help:      "Total completed conversation turns",
	})

	turnDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_duration_seconds",
		Help:      "Time from user utterance to assistant reply",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	generationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_failures_total",
		Help:      "Completion calls that fell back to the apology reply",
	})

	speechFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "speech_failures_total",
		Help:      "Speech service failures by stage",
	}, []string{"stage"})

	taskFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "background_task_failures_total",
		Help:      "Background task errors and panics by task name",
	}, []string{"task"})

	audioBytesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_bytes_total",
		Help:      "Audio bytes processed by direction",
	}, []string{"direction"})

	registry.MustRegister(
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		turnsTotal,
		turnDuration,
		generationFailures,
		speechFailures,
		taskFailures,
		audioBytesTotal,
	)

	return &Metrics{
		registry:           registry,
		SessionsActive:     sessionsActive,
		SessionsTotal:      sessionsTotal,
		SessionDuration:    sessionDuration,
		TurnsTotal:         turnsTotal,
		TurnDuration:       turnDuration,
		GenerationFailures: generationFailures,
		SpeechFailures:     speechFailures,
		TaskFailures:       taskFailures,
		AudioBytesTotal:    audioBytesTotal,
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSessionStart marks a session as active.
func (m *Metrics) RecordSessionStart() {
	m.SessionsActive.Inc()
}

// RecordSessionEnd marks a session as finished.
func (m *Metrics) RecordSessionEnd(status string, duration time.Duration) {
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(status).Inc()
	m.SessionDuration.Observe(duration.Seconds())
}

// RecordTurn records one completed user/assistant exchange.
func (m *Metrics) RecordTurn(duration time.Duration) {
	m.TurnsTotal.Inc()
	m.TurnDuration.Observe(duration.Seconds())
}

// RecordGenerationFailure counts one fallback reply.
func (m *Metrics) RecordGenerationFailure() {
	m.GenerationFailures.Inc()
}

// RecordSpeechFailure counts one recognition or synthesis failure.
func (m *Metrics) RecordSpeechFailure(stage string) {
	m.SpeechFailures.WithLabelValues(stage).Inc()
}

// RecordTaskFailure counts one background task error or panic.
func (m *Metrics) RecordTaskFailure(task string) {
	m.TaskFailures.WithLabelValues(task).Inc()
}

// RecordAudioBytes records audio volume. direction is "in" or "out".
func (m *Metrics) RecordAudioBytes(direction string, n int) {
	if n > 0 {
		m.AudioBytesTotal.WithLabelValues(direction).Add(float64(n))
	}
}
