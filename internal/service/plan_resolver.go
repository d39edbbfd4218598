package service

import (
	"context"
	"strings"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/internal/metrics"
	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/stripe/stripe-go/v78"
)

const (
	planMetadataKey = "plan_id"

	// premiumAmountThreshold минимальная цена premium в минорных единицах
	premiumAmountThreshold = 200
)

// ProductAPI получение продукта Stripe
type ProductAPI interface {
	GetProduct(ctx context.Context, productID string) (*stripe.Product, error)
}

type planRule struct {
	name  string
	apply func(ctx context.Context, price *stripe.Price) (string, bool)
}

// PlanResolver выбирает план по цене подписки. Правила проверяются по порядку, первое сработавшее побеждает.
type PlanResolver struct {
	products ProductAPI
	rules    []planRule
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewPlanResolver создает PlanResolver
func NewPlanResolver(products ProductAPI, m *metrics.Metrics, log *logger.Logger) *PlanResolver {
	r := &PlanResolver{products: products, metrics: m, log: log}
	r.rules = []planRule{
		{"price_metadata", withoutContext(planFromPriceMetadata)},
		{"nickname", withoutContext(planFromNickname)},
		{"unit_amount", withoutContext(planFromUnitAmount)},
		{"product_metadata", r.planFromProductMetadata},
	}
	return r
}

// Resolve возвращает план для цены; без совпадений - basic.
func (r *PlanResolver) Resolve(ctx context.Context, price *stripe.Price) string {
	plan, rule := domain.PlanBasic, "default"
	if price != nil {
		for _, candidate := range r.rules {
			if p, ok := candidate.apply(ctx, price); ok {
				plan, rule = p, candidate.name
				break
			}
		}
	}

	r.log.Infow("Plan resolved", "rule", rule, "planID", plan, "priceID", priceID(price))
	r.metrics.PlanResolved(rule, plan)
	return plan
}

func withoutContext(fn func(*stripe.Price) (string, bool)) func(context.Context, *stripe.Price) (string, bool) {
	return func(_ context.Context, price *stripe.Price) (string, bool) {
		return fn(price)
	}
}

func planFromPriceMetadata(price *stripe.Price) (string, bool) {
	plan := price.Metadata[planMetadataKey]
	return plan, plan != ""
}

// planFromNickname ищет ключевые слова в nickname; premium проверяется раньше basic
func planFromNickname(price *stripe.Price) (string, bool) {
	nickname := strings.ToLower(price.Nickname)
	if nickname == "" {
		return "", false
	}
	switch {
	case strings.Contains(nickname, "premium"), strings.Contains(nickname, "премиум"):
		return domain.PlanPremium, true
	case strings.Contains(nickname, "basic"), strings.Contains(nickname, "базов"):
		return domain.PlanBasic, true
	default:
		return "", false
	}
}

func planFromUnitAmount(price *stripe.Price) (string, bool) {
	if price.UnitAmount <= 0 {
		return "", false
	}
	if price.UnitAmount >= premiumAmountThreshold {
		return domain.PlanPremium, true
	}
	return domain.PlanBasic, true
}

func (r *PlanResolver) planFromProductMetadata(ctx context.Context, price *stripe.Price) (string, bool) {
	if price.Product == nil || price.Product.ID == "" {
		return "", false
	}

	product := price.Product
	if product.Metadata == nil {
		fetched, err := r.products.GetProduct(ctx, product.ID)
		if err != nil {
			r.log.Warnw("Could not retrieve product, falling back to default plan", "productID", product.ID, "error", err)
			return "", false
		}
		product = fetched
	}

	plan := product.Metadata[planMetadataKey]
	return plan, plan != ""
}

func priceID(price *stripe.Price) string {
	if price == nil {
		return ""
	}
	return price.ID
}
