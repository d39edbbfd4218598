package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/internal/repository"
	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/stripe/stripe-go/v78"
)

// CustomerAPI операции Stripe над клиентами
type CustomerAPI interface {
	SearchCustomerByUserID(ctx context.Context, userID string) (string, bool, error)
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error)
	UpdateCustomerUserID(ctx context.Context, customerID, userID string) error
}

// IdentityResolver связывает ID пользователя с клиентом Stripe.
type IdentityResolver struct {
	customers   CustomerAPI
	identities  repository.IdentityRepository
	metadataKey string
	log         *logger.Logger
}

// NewIdentityResolver создает IdentityResolver
func NewIdentityResolver(customers CustomerAPI, identities repository.IdentityRepository, metadataKey string, log *logger.Logger) *IdentityResolver {
	return &IdentityResolver{
		customers:   customers,
		identities:  identities,
		metadataKey: metadataKey,
		log:         log,
	}
}

// ResolveOrCreateCustomer возвращает клиента Stripe для пользователя, создавая его при отсутствии.
// Поиск выполняется перед созданием; ошибка поиска не приводит к созданию.
func (r *IdentityResolver) ResolveOrCreateCustomer(ctx context.Context, userID, email string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required: %w", domain.ErrInvalidInput)
	}

	customerID, found, err := r.customers.SearchCustomerByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if found {
		r.log.Debugw("Found existing Stripe customer", "stripeCustomerID", customerID, "userID", userID)
		return customerID, nil
	}

	r.log.Infow("Stripe customer not found via Search, creating new one", "userID", userID)
	return r.customers.CreateCustomer(ctx, userID, email)
}

// RecoverUserID ищет пользователя по email: сначала profiles, затем auth.users.
// Найденный ID записывается в метаданные клиента Stripe.
func (r *IdentityResolver) RecoverUserID(ctx context.Context, customerID, email string) (string, bool) {
	if email == "" {
		return "", false
	}

	lookups := []struct {
		source string
		find   func(context.Context, string) (string, error)
	}{
		{"profiles", r.identities.FindProfileUserID},
		{"auth.users", r.identities.FindAuthUserID},
	}

	for _, lookup := range lookups {
		userID, err := lookup.find(ctx, email)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				r.log.Warnw("User lookup by email failed", "source", lookup.source, "stripeCustomerID", customerID, "error", err)
			}
			continue
		}
		if userID == "" {
			continue
		}

		r.log.Infow("Recovered user id by email", "source", lookup.source, "stripeCustomerID", customerID, "userID", userID)
		if err := r.customers.UpdateCustomerUserID(ctx, customerID, userID); err != nil {
			r.log.Warnw("Failed to write user id back to Stripe customer", "stripeCustomerID", customerID, "userID", userID, "error", err)
		}
		return userID, true
	}

	r.log.Infow("No user found for customer email", "stripeCustomerID", customerID)
	return "", false
}

// UserIDForCustomer возвращает ID пользователя для клиента Stripe.
func (r *IdentityResolver) UserIDForCustomer(ctx context.Context, customerID string) (string, bool, error) {
	customer, err := r.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return "", false, err
	}

	if userID := customer.Metadata[r.metadataKey]; userID != "" {
		return userID, true, nil
	}

	userID, found := r.RecoverUserID(ctx, customer.ID, customer.Email)
	return userID, found, nil
}
