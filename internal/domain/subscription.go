package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusPaused     SubscriptionStatus = "paused"
)

// Plan tiers
const (
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

// DefaultPeriodLength используется, когда Stripe не прислал конец периода.
const DefaultPeriodLength = 30 * 24 * time.Hour

// Subscription запись о подписке в системе учета.
// Одна строка на stripe_subscription_id; user_id не меняется после создания.
type Subscription struct {
	ID                   uuid.UUID          `db:"id" json:"id"`
	UserID               string             `db:"user_id" json:"user_id"`
	PlanID               string             `db:"plan_id" json:"plan_id"`
	Status               SubscriptionStatus `db:"status" json:"status"`
	CurrentPeriodStart   time.Time          `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `db:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd    bool               `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	StripeSubscriptionID string             `db:"stripe_subscription_id" json:"stripe_subscription_id"`
	StripeCustomerID     string             `db:"stripe_customer_id" json:"stripe_customer_id"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// SubscriptionSnapshot состояние подписки из события Stripe.
// Нулевые значения периода означают, что Stripe их не передал.
type SubscriptionSnapshot struct {
	SubscriptionID     string `validate:"required"`
	CustomerID         string `validate:"required"`
	Status             SubscriptionStatus
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	CancelAtPeriodEnd  bool
}

// SubscriptionChange уведомление об изменении подписки, публикуемое в Kafka.
type SubscriptionChange struct {
	Operation            string             `json:"operation"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	UserID               string             `json:"user_id,omitempty"`
	PlanID               string             `json:"plan_id,omitempty"`
	Status               SubscriptionStatus `json:"status"`
	OccurredAt           time.Time          `json:"occurred_at"`
}

// Subscription change operations
const (
	SubscriptionOpInsert = "insert"
	SubscriptionOpUpdate = "update"
	SubscriptionOpRetire = "retire"
)
