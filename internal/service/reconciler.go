package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/internal/metrics"
	"github.com/Dhoini/subscription-sync/internal/repository"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	"github.com/go-playground/validator/v10"
)

// ChangePublisher публикует уведомления об изменении подписок
type ChangePublisher interface {
	PublishSubscriptionChange(ctx context.Context, change domain.SubscriptionChange) error
}

// Reconciler приводит запись о подписке к последнему снимку из Stripe.
// Одна строка на stripe_subscription_id, побеждает последняя запись.
type Reconciler struct {
	repo      repository.SubscriptionRepository
	publisher ChangePublisher
	validate  *validator.Validate
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

// NewReconciler создает Reconciler; publisher может быть nil
func NewReconciler(repo repository.SubscriptionRepository, publisher ChangePublisher, m *metrics.Metrics, log *logger.Logger) *Reconciler {
	return &Reconciler{
		repo:      repo,
		publisher: publisher,
		validate:  validator.New(),
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// Reconcile вставляет или обновляет подписку по снимку.
func (r *Reconciler) Reconcile(ctx context.Context, snap domain.SubscriptionSnapshot, userID, planID string) error {
	if err := r.validate.Struct(snap); err != nil {
		return fmt.Errorf("invalid subscription snapshot: %w", errors.Join(domain.ErrInvalidInput, err))
	}

	start, end := r.periodBounds(snap)
	sub := &domain.Subscription{
		UserID:               userID,
		PlanID:               planID,
		Status:               snap.Status,
		CurrentPeriodStart:   start,
		CurrentPeriodEnd:     end,
		CancelAtPeriodEnd:    snap.CancelAtPeriodEnd,
		StripeSubscriptionID: snap.SubscriptionID,
		StripeCustomerID:     snap.CustomerID,
	}

	op := domain.SubscriptionOpUpdate
	existing, err := r.repo.GetByStripeSubscriptionID(ctx, snap.SubscriptionID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		op = domain.SubscriptionOpInsert
	case err != nil:
		r.metrics.Reconciled(op, metrics.OutcomeFailed)
		return fmt.Errorf("lookup subscription %s: %w", snap.SubscriptionID, err)
	default:
		sub.ID = existing.ID
		sub.UserID = existing.UserID
	}

	if op == domain.SubscriptionOpUpdate {
		err = r.repo.Update(ctx, sub)
		if errors.Is(err, repository.ErrNotFound) {
			op = domain.SubscriptionOpInsert
		}
	}
	if op == domain.SubscriptionOpInsert {
		err = r.repo.Upsert(ctx, sub)
	}
	if err != nil {
		r.metrics.Reconciled(op, metrics.OutcomeFailed)
		return fmt.Errorf("%s subscription %s: %w", op, snap.SubscriptionID, err)
	}

	r.metrics.Reconciled(op, metrics.OutcomeSuccess)
	r.log.Infow("Subscription reconciled",
		"operation", op,
		"stripeSubscriptionID", sub.StripeSubscriptionID,
		"stripeCustomerID", sub.StripeCustomerID,
		"userID", sub.UserID,
		"planID", sub.PlanID,
		"status", sub.Status,
	)
	r.publish(ctx, op, sub)
	return nil
}

// Retire переводит подписку в статус canceled. Отсутствие строки не ошибка.
func (r *Reconciler) Retire(ctx context.Context, subscriptionID string) error {
	sub, err := r.repo.MarkCanceled(ctx, subscriptionID)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Infow("Subscription to retire not found, nothing to do", "stripeSubscriptionID", subscriptionID)
		r.metrics.Reconciled(domain.SubscriptionOpRetire, metrics.OutcomeIgnored)
		return nil
	}
	if err != nil {
		r.metrics.Reconciled(domain.SubscriptionOpRetire, metrics.OutcomeFailed)
		return fmt.Errorf("retire subscription %s: %w", subscriptionID, err)
	}

	r.metrics.Reconciled(domain.SubscriptionOpRetire, metrics.OutcomeSuccess)
	r.log.Infow("Subscription retired", "stripeSubscriptionID", subscriptionID, "userID", sub.UserID)
	r.publish(ctx, domain.SubscriptionOpRetire, sub)
	return nil
}

// periodBounds переводит epoch-секунды в время; пустое начало - сейчас, пустой конец - через 30 дней
func (r *Reconciler) periodBounds(snap domain.SubscriptionSnapshot) (time.Time, time.Time) {
	now := r.now().UTC()

	start := now
	if snap.CurrentPeriodStart > 0 {
		start = time.Unix(snap.CurrentPeriodStart, 0).UTC()
	}
	end := now.Add(domain.DefaultPeriodLength)
	if snap.CurrentPeriodEnd > 0 {
		end = time.Unix(snap.CurrentPeriodEnd, 0).UTC()
	}
	return start, end
}

func (r *Reconciler) publish(ctx context.Context, op string, sub *domain.Subscription) {
	if r.publisher == nil {
		return
	}
	change := domain.SubscriptionChange{
		Operation:            op,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		UserID:               sub.UserID,
		PlanID:               sub.PlanID,
		Status:               sub.Status,
		OccurredAt:           r.now().UTC(),
	}
	if err := r.publisher.PublishSubscriptionChange(ctx, change); err != nil {
		r.log.Warnw("Failed to publish subscription change", "operation", op, "stripeSubscriptionID", sub.StripeSubscriptionID, "error", err)
	}
}
