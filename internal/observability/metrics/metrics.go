// Package metrics defines the Prometheus instruments for the chat pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "portfolio"
	subsystem = "chat"
)

// ChatMetrics instruments the completion pipeline.
type ChatMetrics struct {
	completionLatency *prometheus.HistogramVec
	modelAttempts     *prometheus.CounterVec
	cacheRequests     *prometheus.CounterVec
	synthesisTotal    *prometheus.CounterVec
}

// NewChatMetrics registers the chat instruments on reg.
func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "completion_duration_seconds",
			Help:      "Latency of LLM completions from request to final token.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"model", "status"}),
		modelAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "model_attempts_total",
			Help:      "Completion attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "response_cache_requests_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		synthesisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "speech_synthesis_total",
			Help:      "Speech synthesis outcomes.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.completionLatency, m.modelAttempts, m.cacheRequests, m.synthesisTotal)
	return m
}

// RecordCompletion observes one finished completion.
func (m *ChatMetrics) RecordCompletion(model, status string, duration time.Duration) {
	m.completionLatency.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordModelAttempt counts a single attempt outcome against a model.
func (m *ChatMetrics) RecordModelAttempt(model, outcome string) {
	m.modelAttempts.WithLabelValues(model, outcome).Inc()
}

// RecordCacheRequest counts a response cache lookup. result is "hit" or
// "miss".
func (m *ChatMetrics) RecordCacheRequest(result string) {
	m.cacheRequests.WithLabelValues(result).Inc()
}

// RecordSynthesis counts a speech synthesis outcome.
func (m *ChatMetrics) RecordSynthesis(status string) {
	m.synthesisTotal.WithLabelValues(status).Inc()
}
