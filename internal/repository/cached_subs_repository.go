package repository

import (
	"context"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/pkg/logger"
)

// SubscriptionCache кеш подписок по stripe_subscription_id
type SubscriptionCache interface {
	CacheSubscription(ctx context.Context, sub *domain.Subscription) error
	GetCachedSubscription(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)
	DeleteCachedSubscription(ctx context.Context, stripeSubscriptionID string) error
}

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием.
// Ошибки кеша только логируются, источник истины - БД.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache SubscriptionCache
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(repo SubscriptionRepository, cache SubscriptionCache, log *logger.Logger) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetByStripeSubscriptionID сначала ищет в кеше, потом в БД
func (r *CachedSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	cached, err := r.cache.GetCachedSubscription(ctx, stripeSubscriptionID)
	if err != nil {
		r.log.Warnw("Error getting subscription from cache", "error", err, "stripeSubscriptionID", stripeSubscriptionID)
	}
	if cached != nil {
		return cached, nil
	}

	sub, err := r.repo.GetByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription after fetching", "error", err, "stripeSubscriptionID", stripeSubscriptionID)
	}
	return sub, nil
}

// Upsert пишет в БД и сбрасывает кеш: при конфликте в БД остаются поля первой вставки
func (r *CachedSubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Upsert(ctx, sub); err != nil {
		return err
	}
	r.invalidate(ctx, sub.StripeSubscriptionID)
	return nil
}

// Update обновляет подписку в БД и сбрасывает кеш
func (r *CachedSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Update(ctx, sub); err != nil {
		return err
	}
	r.invalidate(ctx, sub.StripeSubscriptionID)
	return nil
}

// MarkCanceled отменяет подписку в БД и кеширует актуальную строку
func (r *CachedSubscriptionRepository) MarkCanceled(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	sub, err := r.repo.MarkCanceled(ctx, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to update subscription in cache", "error", err, "stripeSubscriptionID", stripeSubscriptionID)
		r.invalidate(ctx, stripeSubscriptionID)
	}
	return sub, nil
}

func (r *CachedSubscriptionRepository) invalidate(ctx context.Context, stripeSubscriptionID string) {
	if err := r.cache.DeleteCachedSubscription(ctx, stripeSubscriptionID); err != nil {
		r.log.Warnw("Failed to invalidate cached subscription", "error", err, "stripeSubscriptionID", stripeSubscriptionID)
	}
}
