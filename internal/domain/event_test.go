package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		eventType string
		want      EventKind
	}{
		{"payment_intent.succeeded", EventKindPaymentSucceeded},
		{"payment_intent.payment_failed", EventKindPaymentFailed},
		{"customer.subscription.created", EventKindSubscriptionUpserted},
		{"customer.subscription.updated", EventKindSubscriptionUpserted},
		{"customer.subscription.deleted", EventKindSubscriptionDeleted},
		{"invoice.paid", EventKindInvoiceObserved},
		{"invoice.payment_failed", EventKindInvoiceObserved},
		{"charge.refunded", EventKindIgnored},
		{"", EventKindIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEventKind(tt.eventType))
		})
	}
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "subscription_upserted", EventKindSubscriptionUpserted.String())
	assert.Equal(t, "ignored", EventKind(99).String())
}
