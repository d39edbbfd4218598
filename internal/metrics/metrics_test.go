package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.EventProcessed("customer.subscription.created", OutcomeProcessed)
	m.EventProcessed("customer.subscription.created", OutcomeProcessed)
	m.VerificationFailed("expired")
	m.PlanResolved("nickname", "premium")
	m.Reconciled("insert", OutcomeSuccess)
	m.PaymentRecorded("completed", "USD", 1999)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("customer.subscription.created", OutcomeProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verificationFailures.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.planResolutions.WithLabelValues("nickname", "premium")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconciliations.WithLabelValues("insert", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentsRecorded.WithLabelValues("completed", "USD")))
}

func TestMetricsRegistered(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.ObserveDispatch("invoice.paid", 15*time.Millisecond)

	count, err := testutil.GatherAndCount(registry, "stripe_webhook_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
