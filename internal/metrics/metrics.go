package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
	OutcomeSuccess   = "success"
)

// Metrics метрики конвейера вебхуков Stripe
type Metrics struct {
	webhookEvents        *prometheus.CounterVec
	verificationFailures *prometheus.CounterVec
	webhookDuration      *prometheus.HistogramVec
	planResolutions      *prometheus.CounterVec
	reconciliations      *prometheus.CounterVec
	paymentsRecorded     *prometheus.CounterVec
	paymentsAmount       *prometheus.HistogramVec
}

// NewMetrics регистрирует метрики в registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stripe_webhook_events_total",
				Help: "Verified Stripe webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		verificationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stripe_webhook_verification_failures_total",
				Help: "Rejected Stripe webhook requests by reason",
			},
			[]string{"reason"},
		),
		webhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stripe_webhook_duration_seconds",
				Help:    "Time spent dispatching a verified Stripe event",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		planResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plan_resolutions_total",
				Help: "Plan resolutions by winning rule and resulting plan",
			},
			[]string{"rule", "plan"},
		),
		reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_reconciliations_total",
				Help: "Subscription store writes by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		paymentsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_recorded_total",
				Help: "Payment records appended by status and currency",
			},
			[]string{"status", "currency"},
		),
		paymentsAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payments_amount",
				Help:    "Payment amounts distribution in minor units",
				Buckets: prometheus.ExponentialBuckets(10, 10, 5), // 10, 100, 1000, 10000, 100000
			},
			[]string{"currency", "status"},
		),
	}
}

// EventProcessed считает обработанное событие
func (m *Metrics) EventProcessed(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// ObserveDispatch записывает длительность обработки события
func (m *Metrics) ObserveDispatch(eventType string, d time.Duration) {
	m.webhookDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

// VerificationFailed считает отклоненный запрос
func (m *Metrics) VerificationFailed(reason string) {
	m.verificationFailures.WithLabelValues(reason).Inc()
}

// PlanResolved считает сработавшее правило выбора плана
func (m *Metrics) PlanResolved(rule, plan string) {
	m.planResolutions.WithLabelValues(rule, plan).Inc()
}

// Reconciled считает запись в хранилище подписок
func (m *Metrics) Reconciled(operation, outcome string) {
	m.reconciliations.WithLabelValues(operation, outcome).Inc()
}

// PaymentRecorded считает записанный платеж
func (m *Metrics) PaymentRecorded(status, currency string, amount int64) {
	m.paymentsRecorded.WithLabelValues(status, currency).Inc()
	m.paymentsAmount.WithLabelValues(currency, status).Observe(float64(amount))
}
