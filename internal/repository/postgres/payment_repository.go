package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/internal/repository"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PaymentRepository журнал платежей в PostgreSQL
type PaymentRepository struct {
	db  DB
	log *logger.Logger
}

// NewPaymentRepository создает репозиторий платежей
func NewPaymentRepository(db DB, log *logger.Logger) *PaymentRepository {
	return &PaymentRepository{db: db, log: log}
}

// Insert добавляет запись о платеже
func (r *PaymentRepository) Insert(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	metadata := payment.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	query := `
		INSERT INTO payments (id, user_id, amount, currency, status, stripe_payment_id, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.UserID,
		payment.Amount,
		payment.Currency,
		string(payment.Status),
		payment.StripePaymentID,
		payment.Description,
		metadata,
		payment.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("payment %s: %w", payment.StripePaymentID, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	r.log.Debugw("Payment recorded", "stripePaymentID", payment.StripePaymentID, "status", payment.Status)
	return nil
}
