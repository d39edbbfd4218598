package domain

import "time"

// EventKind закрытый набор типов событий Stripe, которые понимает диспетчер.
type EventKind int

const (
	EventKindIgnored EventKind = iota
	EventKindPaymentSucceeded
	EventKindPaymentFailed
	EventKindSubscriptionUpserted
	EventKindSubscriptionDeleted
	EventKindInvoiceObserved
)

// Stripe event type names
const (
	EventPaymentIntentSucceeded     = "payment_intent.succeeded"
	EventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
	EventSubscriptionCreated        = "customer.subscription.created"
	EventSubscriptionUpdated        = "customer.subscription.updated"
	EventSubscriptionDeleted        = "customer.subscription.deleted"
	EventInvoicePaid                = "invoice.paid"
	EventInvoicePaymentFailed       = "invoice.payment_failed"
)

var eventKinds = map[string]EventKind{
	EventPaymentIntentSucceeded:     EventKindPaymentSucceeded,
	EventPaymentIntentPaymentFailed: EventKindPaymentFailed,
	EventSubscriptionCreated:        EventKindSubscriptionUpserted,
	EventSubscriptionUpdated:        EventKindSubscriptionUpserted,
	EventSubscriptionDeleted:        EventKindSubscriptionDeleted,
	EventInvoicePaid:                EventKindInvoiceObserved,
	EventInvoicePaymentFailed:       EventKindInvoiceObserved,
}

// ParseEventKind сопоставляет тип события Stripe с EventKind.
// Неизвестные типы дают EventKindIgnored.
func ParseEventKind(eventType string) EventKind {
	if kind, ok := eventKinds[eventType]; ok {
		return kind
	}
	return EventKindIgnored
}

func (k EventKind) String() string {
	switch k {
	case EventKindPaymentSucceeded:
		return "payment_succeeded"
	case EventKindPaymentFailed:
		return "payment_failed"
	case EventKindSubscriptionUpserted:
		return "subscription_upserted"
	case EventKindSubscriptionDeleted:
		return "subscription_deleted"
	case EventKindInvoiceObserved:
		return "invoice_observed"
	default:
		return "ignored"
	}
}

// DeadLetter событие, обработка которого завершилась ошибкой.
// Stripe получает 200, поэтому запись нужна для ручной сверки.
type DeadLetter struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	StripeObjectID   string    `json:"stripe_object_id,omitempty"`
	StripeCustomerID string    `json:"stripe_customer_id,omitempty"`
	Error            string    `json:"error"`
	Payload          []byte    `json:"payload,omitempty"`
	FailedAt         time.Time `json:"failed_at"`
}
