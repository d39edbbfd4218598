package stripe

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Verification failure reasons (метки метрик)
const (
	ReasonSecretMissing = "secret_missing"
	ReasonHeaderMissing = "header_missing"
	ReasonExpired       = "expired"
	ReasonMismatch      = "signature_mismatch"
	ReasonMalformed     = "malformed"
)

var errHeaderMissing = errors.New("Stripe-Signature header missing")

// Verifier проверяет подпись входящих вебхуков Stripe.
type Verifier struct {
	secret    string
	tolerance time.Duration
	log       *logger.Logger
}

// NewVerifier создает Verifier. Нулевой tolerance означает значение по умолчанию SDK (300s).
func NewVerifier(secret string, tolerance time.Duration, log *logger.Logger) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance, log: log}
}

// Verify проверяет сырое тело запроса и заголовок Stripe-Signature и возвращает событие.
// Детали ошибки только логируются; наружу отдаются ErrWebhookSecretMissing или ErrSignatureInvalid.
func (v *Verifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	if sigHeader == "" {
		v.log.Warnw("Webhook request without Stripe-Signature header")
		return stripe.Event{}, fmt.Errorf("%w: %w", domain.ErrSignatureInvalid, errHeaderMissing)
	}
	if v.secret == "" {
		v.log.Errorw("Stripe webhook secret is not configured")
		return stripe.Event{}, domain.ErrWebhookSecretMissing
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		v.log.Warnw("Webhook signature verification failed", "error", err, "reason", FailureReason(err))
		return stripe.Event{}, fmt.Errorf("%w: %w", domain.ErrSignatureInvalid, err)
	}
	return event, nil
}

// FailureReason классифицирует ошибку Verify для метрик.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrWebhookSecretMissing):
		return ReasonSecretMissing
	case errors.Is(err, errHeaderMissing), errors.Is(err, webhook.ErrNotSigned):
		return ReasonHeaderMissing
	case errors.Is(err, webhook.ErrTooOld):
		return ReasonExpired
	case errors.Is(err, webhook.ErrNoValidSignature), errors.Is(err, webhook.ErrInvalidHeader):
		return ReasonMismatch
	default:
		return ReasonMalformed
	}
}
