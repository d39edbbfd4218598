package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const subscriptionColumns = `id, user_id, plan_id, status, current_period_start, current_period_end,
       cancel_at_period_end, stripe_subscription_id, stripe_customer_id, created_at, updated_at`

// postgresSubscriptionRepo реализует SubscriptionRepository для PostgreSQL.
type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
	now func() time.Time
}

// NewPostgresSubscriptionRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// GetByStripeSubscriptionID возвращает подписку по ее Stripe ID.
func (r *postgresSubscriptionRepo) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE stripe_subscription_id = $1`

	if err := r.db.GetContext(ctx, &sub, query, stripeSubscriptionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugw("Subscription not found by Stripe ID", "stripeSubscriptionID", stripeSubscriptionID)
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get subscription by Stripe ID from DB", "error", err, "stripeSubscriptionID", stripeSubscriptionID)
		return nil, fmt.Errorf("repository: failed to get subscription by Stripe ID: %w", err)
	}
	return &sub, nil
}

// Upsert вставляет подписку или обновляет существующую строку с тем же stripe_subscription_id.
func (r *postgresSubscriptionRepo) Upsert(ctx context.Context, sub *domain.Subscription) error {
	now := r.now().UTC()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := `
        INSERT INTO subscriptions (
            id, user_id, plan_id, status, current_period_start, current_period_end,
            cancel_at_period_end, stripe_subscription_id, stripe_customer_id, created_at, updated_at
        ) VALUES (
            :id, :user_id, :plan_id, :status, :current_period_start, :current_period_end,
            :cancel_at_period_end, :stripe_subscription_id, :stripe_customer_id, :created_at, :updated_at
        )
        ON CONFLICT (stripe_subscription_id) DO UPDATE SET
            plan_id = EXCLUDED.plan_id,
            status = EXCLUDED.status,
            current_period_start = EXCLUDED.current_period_start,
            current_period_end = EXCLUDED.current_period_end,
            cancel_at_period_end = EXCLUDED.cancel_at_period_end,
            updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		r.log.Errorw("Failed to upsert subscription in DB", "error", err, "stripeSubscriptionID", sub.StripeSubscriptionID, "userID", sub.UserID)
		return fmt.Errorf("repository: failed to upsert subscription: %w", err)
	}

	r.log.Debugw("Subscription upserted in DB", "stripeSubscriptionID", sub.StripeSubscriptionID, "userID", sub.UserID)
	return nil
}

// Update обновляет изменяемые поля подписки.
// Не обновляем: id, user_id, stripe_subscription_id, stripe_customer_id, created_at.
func (r *postgresSubscriptionRepo) Update(ctx context.Context, sub *domain.Subscription) error {
	sub.UpdatedAt = r.now().UTC()

	query := `
        UPDATE subscriptions SET
            plan_id = :plan_id,
            status = :status,
            current_period_start = :current_period_start,
            current_period_end = :current_period_end,
            cancel_at_period_end = :cancel_at_period_end,
            updated_at = :updated_at
        WHERE stripe_subscription_id = :stripe_subscription_id`

	result, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		r.log.Errorw("Failed to update subscription in DB", "error", err, "stripeSubscriptionID", sub.StripeSubscriptionID)
		return fmt.Errorf("repository: failed to update subscription: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.Errorw("Failed to get rows affected after update", "error", err, "stripeSubscriptionID", sub.StripeSubscriptionID)
		return nil
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	r.log.Debugw("Subscription updated in DB", "stripeSubscriptionID", sub.StripeSubscriptionID)
	return nil
}

// MarkCanceled переводит подписку в статус canceled. Строка остается в таблице.
func (r *postgresSubscriptionRepo) MarkCanceled(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `
        UPDATE subscriptions SET status = $2, updated_at = $3
        WHERE stripe_subscription_id = $1
        RETURNING ` + subscriptionColumns

	err := r.db.GetContext(ctx, &sub, query, stripeSubscriptionID, string(domain.SubscriptionStatusCanceled), r.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to cancel subscription in DB", "error", err, "stripeSubscriptionID", stripeSubscriptionID)
		return nil, fmt.Errorf("repository: failed to cancel subscription: %w", err)
	}

	r.log.Debugw("Subscription marked canceled in DB", "stripeSubscriptionID", stripeSubscriptionID)
	return &sub, nil
}
