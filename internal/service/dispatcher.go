package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/internal/metrics"
	"github.com/Dhoini/subscription-sync/internal/repository"
	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/stripe/stripe-go/v78"
)

// PaymentPublisher публикует события о записанных платежах
type PaymentPublisher interface {
	PublishPaymentRecorded(ctx context.Context, payment domain.Payment) error
}

// DeadLetterSink принимает события, обработка которых завершилась ошибкой
type DeadLetterSink interface {
	PublishDeadLetter(ctx context.Context, letter domain.DeadLetter) error
}

// DispatcherDeps зависимости Dispatcher; PaymentEvents и DeadLetters могут быть nil
type DispatcherDeps struct {
	Identity      *IdentityResolver
	Plans         *PlanResolver
	Reconciler    *Reconciler
	Payments      repository.PaymentRepository
	PaymentEvents PaymentPublisher
	DeadLetters   DeadLetterSink
	MetadataKey   string
	Metrics       *metrics.Metrics
	Log           *logger.Logger
}

// Dispatcher направляет проверенные события Stripe в обработчики по типу.
// Ошибки обработчиков не возвращаются: Stripe всегда получает 200.
type Dispatcher struct {
	DispatcherDeps
	now func() time.Time
}

// NewDispatcher создает Dispatcher
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	return &Dispatcher{DispatcherDeps: deps, now: time.Now}
}

// eventRef идентификаторы Stripe для логов и dead-letter
type eventRef struct {
	objectID   string
	customerID string
}

// Dispatch обрабатывает событие и возвращает исход для метрик.
func (d *Dispatcher) Dispatch(ctx context.Context, event stripe.Event) string {
	start := d.now()
	eventType := string(event.Type)
	kind := domain.ParseEventKind(eventType)
	log := d.Log.With("eventID", event.ID, "eventType", eventType)

	var (
		outcome string
		ref     eventRef
		err     error
	)
	switch kind {
	case domain.EventKindPaymentSucceeded:
		outcome, ref, err = d.handlePayment(ctx, log, event, domain.PaymentStatusCompleted)
	case domain.EventKindPaymentFailed:
		outcome, ref, err = d.handlePayment(ctx, log, event, domain.PaymentStatusFailed)
	case domain.EventKindSubscriptionUpserted:
		outcome, ref, err = d.handleSubscriptionUpserted(ctx, log, event)
	case domain.EventKindSubscriptionDeleted:
		outcome, ref, err = d.handleSubscriptionDeleted(ctx, event)
	case domain.EventKindInvoiceObserved:
		log.Infow("Invoice event observed", "invoiceID", objectID(event))
		outcome = metrics.OutcomeProcessed
	default:
		log.Infow("Unhandled Stripe event type, ignoring")
		outcome = metrics.OutcomeIgnored
	}

	if err != nil {
		outcome = metrics.OutcomeFailed
		log.Errorw("Stripe event handling failed",
			"error", err,
			"stripeObjectID", ref.objectID,
			"stripeCustomerID", ref.customerID,
		)
		d.deadLetter(ctx, log, event, ref, err)
	}

	d.Metrics.EventProcessed(eventType, outcome)
	d.Metrics.ObserveDispatch(eventType, d.now().Sub(start))
	return outcome
}

func (d *Dispatcher) handlePayment(ctx context.Context, log *logger.Logger, event stripe.Event, status domain.PaymentStatus) (string, eventRef, error) {
	var pi stripe.PaymentIntent
	if err := decodeObject(event, &pi); err != nil {
		return "", eventRef{}, err
	}
	ref := eventRef{objectID: pi.ID}
	if pi.Customer != nil {
		ref.customerID = pi.Customer.ID
	}

	userID := pi.Metadata[d.MetadataKey]
	if userID == "" {
		log.Infow("Payment intent without user id metadata, dropping", "paymentIntentID", pi.ID)
		return metrics.OutcomeDropped, ref, nil
	}

	description := pi.Description
	if description == "" {
		description = domain.DefaultPaymentDescription
	}
	payment := domain.Payment{
		UserID:          userID,
		Amount:          pi.Amount,
		Currency:        strings.ToUpper(string(pi.Currency)),
		Status:          status,
		StripePaymentID: pi.ID,
		Description:     description,
		Metadata:        pi.Metadata,
	}
	if err := d.Payments.Insert(ctx, &payment); err != nil {
		return "", ref, fmt.Errorf("record payment: %w", err)
	}

	log.Infow("Payment recorded", "paymentIntentID", pi.ID, "userID", userID, "status", status)
	d.Metrics.PaymentRecorded(string(status), payment.Currency, payment.Amount)
	if d.PaymentEvents != nil {
		if err := d.PaymentEvents.PublishPaymentRecorded(ctx, payment); err != nil {
			log.Warnw("Failed to publish payment event", "paymentIntentID", pi.ID, "error", err)
		}
	}
	return metrics.OutcomeProcessed, ref, nil
}

func (d *Dispatcher) handleSubscriptionUpserted(ctx context.Context, log *logger.Logger, event stripe.Event) (string, eventRef, error) {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return "", eventRef{}, err
	}
	snap := snapshotOf(&sub)
	ref := eventRef{objectID: snap.SubscriptionID, customerID: snap.CustomerID}
	if snap.SubscriptionID == "" || snap.CustomerID == "" {
		return "", ref, fmt.Errorf("subscription event without subscription or customer id: %w", domain.ErrInvalidInput)
	}

	userID, found, err := d.Identity.UserIDForCustomer(ctx, snap.CustomerID)
	if err != nil {
		return "", ref, fmt.Errorf("resolve user for customer: %w", err)
	}
	if !found {
		log.Infow("No user for subscription customer, dropping", "stripeSubscriptionID", snap.SubscriptionID, "stripeCustomerID", snap.CustomerID)
		return metrics.OutcomeDropped, ref, nil
	}

	planID := d.Plans.Resolve(ctx, firstPrice(&sub))
	if err := d.Reconciler.Reconcile(ctx, snap, userID, planID); err != nil {
		return "", ref, err
	}
	return metrics.OutcomeProcessed, ref, nil
}

func (d *Dispatcher) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) (string, eventRef, error) {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return "", eventRef{}, err
	}
	snap := snapshotOf(&sub)
	ref := eventRef{objectID: snap.SubscriptionID, customerID: snap.CustomerID}

	if err := d.Reconciler.Retire(ctx, snap.SubscriptionID); err != nil {
		return "", ref, err
	}
	return metrics.OutcomeProcessed, ref, nil
}

func (d *Dispatcher) deadLetter(ctx context.Context, log *logger.Logger, event stripe.Event, ref eventRef, cause error) {
	if d.DeadLetters == nil {
		return
	}
	letter := domain.DeadLetter{
		EventID:          event.ID,
		EventType:        string(event.Type),
		StripeObjectID:   ref.objectID,
		StripeCustomerID: ref.customerID,
		Error:            cause.Error(),
		FailedAt:         d.now().UTC(),
	}
	if event.Data != nil {
		letter.Payload = event.Data.Raw
	}
	if err := d.DeadLetters.PublishDeadLetter(ctx, letter); err != nil {
		log.Errorw("Failed to publish dead letter", "error", err)
	}
}

func decodeObject(event stripe.Event, v any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("event %s has no data object: %w", event.ID, domain.ErrInvalidInput)
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("decode %s object: %w", event.Type, errors.Join(domain.ErrInvalidInput, err))
	}
	return nil
}

func snapshotOf(sub *stripe.Subscription) domain.SubscriptionSnapshot {
	snap := domain.SubscriptionSnapshot{
		SubscriptionID:     sub.ID,
		Status:             domain.SubscriptionStatus(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	return snap
}

func firstPrice(sub *stripe.Subscription) *stripe.Price {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return nil
	}
	return sub.Items.Data[0].Price
}

func objectID(event stripe.Event) string {
	if event.Data == nil {
		return ""
	}
	id, _ := event.Data.Object["id"].(string)
	return id
}
