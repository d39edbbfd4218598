package repository

import (
	"context"

	"github.com/Dhoini/subscription-sync/internal/domain"
)

// SubscriptionRepository хранилище подписок, ключ - stripe_subscription_id.
type SubscriptionRepository interface {
	// GetByStripeSubscriptionID возвращает подписку по ее Stripe ID или ErrNotFound.
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)

	// Upsert вставляет подписку; при конфликте по stripe_subscription_id обновляет изменяемые поля.
	// user_id и created_at существующей строки не меняются.
	Upsert(ctx context.Context, sub *domain.Subscription) error

	// Update обновляет план, статус, период и cancel_at_period_end. ErrNotFound если строки нет.
	Update(ctx context.Context, sub *domain.Subscription) error

	// MarkCanceled переводит подписку в статус canceled и возвращает ее. ErrNotFound если строки нет.
	MarkCanceled(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)
}

// PaymentRepository журнал платежей, только добавление.
type PaymentRepository interface {
	Insert(ctx context.Context, payment *domain.Payment) error
}

// IdentityRepository поиск пользователя по email в двух источниках.
type IdentityRepository interface {
	// FindProfileUserID ищет пользователя в таблице profiles.
	FindProfileUserID(ctx context.Context, email string) (string, error)

	// FindAuthUserID ищет пользователя в auth.users.
	FindAuthUserID(ctx context.Context, email string) (string, error)
}
