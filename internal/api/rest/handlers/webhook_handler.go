package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/internal/metrics"
	stripesvc "github.com/Dhoini/subscription-sync/internal/stripe"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	"github.com/Dhoini/subscription-sync/pkg/res"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v78"
)

// MaxWebhookBodyBytes ограничение размера тела вебхука
const MaxWebhookBodyBytes = 64 << 10

// EventVerifier проверка подписи Stripe
type EventVerifier interface {
	Verify(payload []byte, sigHeader string) (stripe.Event, error)
}

// EventDispatcher обработка проверенного события
type EventDispatcher interface {
	Dispatch(ctx context.Context, event stripe.Event) string
}

// WebhookHandler обработчик для вебхуков Stripe
type WebhookHandler struct {
	verifier   EventVerifier
	dispatcher EventDispatcher
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(verifier EventVerifier, dispatcher EventDispatcher, m *metrics.Metrics, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log,
	}
}

// HandleStripeWebhook проверяет подпись и передает событие в Dispatcher.
// После успешной проверки всегда отвечает 200, даже если обработка не удалась.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Request body too large"}, http.StatusRequestEntityTooLarge, h.log)
			return
		}
		h.log.Warnw("Failed to read webhook body", "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to read webhook body"}, http.StatusBadRequest, h.log)
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.metrics.VerificationFailed(stripesvc.FailureReason(err))
		if errors.Is(err, domain.ErrWebhookSecretMissing) {
			res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Webhook secret not configured"}, http.StatusInternalServerError, h.log)
			return
		}
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Invalid Stripe signature"}, http.StatusBadRequest, h.log)
		return
	}

	outcome := h.dispatcher.Dispatch(c.Request.Context(), event)
	h.log.Debugw("Stripe webhook acknowledged", "eventID", event.ID, "eventType", event.Type, "outcome", outcome)
	res.JsonResponse(c.Writer, res.ReceivedResponse{Received: true}, http.StatusOK)
}
