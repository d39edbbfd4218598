package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// DefaultPaymentDescription описание платежа, если Stripe его не передал.
const DefaultPaymentDescription = "Оплата"

// Payment запись о платеже. Только добавление.
type Payment struct {
	ID              uuid.UUID         `json:"id"`
	UserID          string            `json:"user_id"`
	Amount          int64             `json:"amount"` // в минорных единицах
	Currency        string            `json:"currency"`
	Status          PaymentStatus     `json:"status"`
	StripePaymentID string            `json:"stripe_payment_id"`
	Description     string            `json:"description"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
