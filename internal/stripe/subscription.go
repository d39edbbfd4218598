package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v78"
)

// CancelSubscription отменяет подписку в Stripe немедленно.
// Локальная запись обновится через вебхук customer.subscription.deleted.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}

	if _, err := c.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		if isResourceMissing(err) {
			c.log.Warnw("Attempted to cancel already canceled/missing Stripe subscription", "stripeSubscriptionID", subscriptionID)
			return nil
		}
		logStripeError(c.log, "CancelSubscription", err)
		return fmt.Errorf("stripe: failed to cancel subscription: %w", err)
	}

	c.log.Infow("Stripe subscription canceled", "stripeSubscriptionID", subscriptionID)
	return nil
}
