package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	subscriptionKeyPrefix = "subscription:"

	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository кеширует подписки в Redis
type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository подключается к Redis и проверяет соединение
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		ttl:    defaultCacheTTL,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

func subscriptionKey(stripeSubscriptionID string) string {
	return subscriptionKeyPrefix + stripeSubscriptionID
}

// CacheSubscription кеширует подписку
func (r *RedisCacheRepository) CacheSubscription(ctx context.Context, sub *domain.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := r.client.Set(ctx, subscriptionKey(sub.StripeSubscriptionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache subscription: %w", err)
	}

	r.log.Debugw("Subscription cached", "stripeSubscriptionID", sub.StripeSubscriptionID)
	return nil
}

// GetCachedSubscription возвращает подписку из кеша; (nil, nil) при промахе
func (r *RedisCacheRepository) GetCachedSubscription(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	data, err := r.client.Get(ctx, subscriptionKey(stripeSubscriptionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription from cache: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}
	return &sub, nil
}

// DeleteCachedSubscription удаляет подписку из кеша
func (r *RedisCacheRepository) DeleteCachedSubscription(ctx context.Context, stripeSubscriptionID string) error {
	if err := r.client.Del(ctx, subscriptionKey(stripeSubscriptionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete subscription from cache: %w", err)
	}
	return nil
}
