package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/subscription-sync/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/internal/repository"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	"github.com/Dhoini/subscription-sync/pkg/res"

	"github.com/gin-gonic/gin"
)

// SubscriptionReader чтение сверенной подписки
type SubscriptionReader interface {
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)
}

// SubscriptionCanceler отмена подписки в Stripe
type SubscriptionCanceler interface {
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// SubscriptionHandler обработчик для подписок
type SubscriptionHandler struct {
	subscriptions SubscriptionReader
	canceler      SubscriptionCanceler
	log           *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(subscriptions SubscriptionReader, canceler SubscriptionCanceler, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		canceler:      canceler,
		log:           log,
	}
}

// GetSubscription возвращает подписку текущего пользователя
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sub)
}

// CancelSubscription отменяет подписку в Stripe.
// Локальная запись обновится по вебхуку customer.subscription.deleted.
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}

	if err := h.canceler.CancelSubscription(c.Request.Context(), sub.StripeSubscriptionID); err != nil {
		h.log.Errorw("Failed to cancel subscription", "stripeSubscriptionID", sub.StripeSubscriptionID, "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to cancel subscription"}, http.StatusBadGateway, h.log)
		return
	}

	h.log.Infow("Subscription cancel requested", "stripeSubscriptionID", sub.StripeSubscriptionID, "userID", sub.UserID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ownedSubscription загружает подписку и проверяет, что она принадлежит пользователю из токена.
// Чужая подписка неотличима от отсутствующей.
func (h *SubscriptionHandler) ownedSubscription(c *gin.Context) (*domain.Subscription, bool) {
	id := c.Param("subscription_id")
	userID := middleware.UserID(c)

	sub, err := h.subscriptions.GetByStripeSubscriptionID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Subscription not found"}, http.StatusNotFound, h.log)
			return nil, false
		}
		h.log.Errorw("Failed to load subscription", "stripeSubscriptionID", id, "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to load subscription"}, http.StatusInternalServerError, h.log)
		return nil, false
	}
	if sub.UserID != userID {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Subscription not found"}, http.StatusNotFound, h.log)
		return nil, false
	}
	return sub, true
}
