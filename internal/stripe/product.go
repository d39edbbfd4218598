package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v78"
)

// GetProduct получает продукт Stripe по ID.
func (c *Client) GetProduct(ctx context.Context, productID string) (*stripe.Product, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx

	product, err := c.api.Products.Get(productID, params)
	if err != nil {
		logStripeError(c.log, "GetProduct", err)
		return nil, fmt.Errorf("stripe: failed to get product %s: %w", productID, err)
	}
	return product, nil
}
