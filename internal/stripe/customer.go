package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
)

// SearchCustomerByUserID ищет клиента Stripe по ID пользователя в метаданных.
// Search API eventually consistent: только что созданный клиент может не найтись.
func (c *Client) SearchCustomerByUserID(ctx context.Context, userID string) (string, bool, error) {
	query := fmt.Sprintf("metadata['%s']:'%s'", c.metadataKey, escapeSearchValue(userID))
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   query,
			Limit:   stripe.Int64(1),
			Context: ctx,
		},
	}

	iter := c.api.Customers.Search(params)
	if iter.Next() {
		return iter.Customer().ID, true, nil
	}
	if err := iter.Err(); err != nil {
		logStripeError(c.log, "SearchCustomers", err)
		return "", false, fmt.Errorf("stripe: failed to search customer: %w", err)
	}
	return "", false, nil
}

// CreateCustomer создает клиента Stripe, помеченного ID пользователя.
func (c *Client) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{c.metadataKey: userID},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx

	cus, err := c.api.Customers.New(params)
	if err != nil {
		logStripeError(c.log, "CreateCustomer", err)
		return "", fmt.Errorf("stripe: failed to create customer: %w", err)
	}

	c.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "userID", userID)
	return cus.ID, nil
}

// GetCustomer получает клиента Stripe по ID.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err := c.api.Customers.Get(customerID, params)
	if err != nil {
		logStripeError(c.log, "GetCustomer", err)
		return nil, fmt.Errorf("stripe: failed to get customer %s: %w", customerID, err)
	}
	return cus, nil
}

// UpdateCustomerUserID записывает ID пользователя в метаданные клиента.
func (c *Client) UpdateCustomerUserID(ctx context.Context, customerID, userID string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	params.AddMetadata(c.metadataKey, userID)

	if _, err := c.api.Customers.Update(customerID, params); err != nil {
		logStripeError(c.log, "UpdateCustomer", err)
		return fmt.Errorf("stripe: failed to update customer %s: %w", customerID, err)
	}
	return nil
}

func escapeSearchValue(v string) string {
	return strings.ReplaceAll(v, "'", `\'`)
}
