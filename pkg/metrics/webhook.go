package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records payment webhook processing outcomes.
type WebhookMetrics struct {
	events     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	violations *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paystack_webhook_events_total",
		Help: "Paystack webhook deliveries by event and outcome.",
	}, []string{"event", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paystack_webhook_duration_seconds",
		Help:    "Time spent reconciling a Paystack webhook.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paystack_consistency_violations_total",
		Help: "Webhooks acknowledged without a matching local record.",
	}, []string{"reason"})
	reg.MustRegister(events, duration, violations)
	return &WebhookMetrics{
		events:     events,
		duration:   duration,
		violations: violations,
	}
}

// ObserveEvent counts one delivery and its processing time.
func (m *WebhookMetrics) ObserveEvent(event, outcome string, elapsed time.Duration) {
	if m == nil || m.events == nil {
		return
	}
	event = normalizeLabel(event)
	m.events.WithLabelValues(event, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(event).Observe(elapsed.Seconds())
}

// IncConsistencyViolation counts an acknowledged-but-unmatched delivery.
func (m *WebhookMetrics) IncConsistencyViolation(reason string) {
	if m == nil || m.violations == nil {
		return
	}
	m.violations.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
