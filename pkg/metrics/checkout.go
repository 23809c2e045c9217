package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the checkout and webhook counters.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// MarketMetrics records checkout attempts, webhook reconciliation and outbox publishing.
type MarketMetrics struct {
	checkoutDuration *prometheus.HistogramVec
	checkoutTotal    *prometheus.CounterVec
	webhookTotal     *prometheus.CounterVec
	outboxTotal      *prometheus.CounterVec
}

// NewMarketMetrics registers the metrics on the provided registerer.
// A nil registerer yields a recorder that drops every observation.
func NewMarketMetrics(reg prometheus.Registerer) *MarketMetrics {
	if reg == nil {
		return &MarketMetrics{}
	}
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout session requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	checkoutTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout attempts by outcome and reason.",
	}, []string{"outcome", "reason"})
	webhookTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Processor webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	outboxTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox publish attempts by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(checkoutDuration, checkoutTotal, webhookTotal, outboxTotal)
	return &MarketMetrics{
		checkoutDuration: checkoutDuration,
		checkoutTotal:    checkoutTotal,
		webhookTotal:     webhookTotal,
		outboxTotal:      outboxTotal,
	}
}

// ObserveCheckout records one checkout attempt.
func (m *MarketMetrics) ObserveCheckout(outcome, reason string, duration time.Duration) {
	if m == nil || m.checkoutTotal == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.checkoutTotal.WithLabelValues(outcome, normalizeLabel(reason)).Inc()
	m.checkoutDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncWebhook counts a processor event.
func (m *MarketMetrics) IncWebhook(eventType, outcome string) {
	if m == nil || m.webhookTotal == nil {
		return
	}
	m.webhookTotal.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncOutbox counts a publish attempt for one outbox row.
func (m *MarketMetrics) IncOutbox(eventType, outcome string) {
	if m == nil || m.outboxTotal == nil {
		return
	}
	m.outboxTotal.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
