package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/subscription-sync/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	"github.com/Dhoini/subscription-sync/pkg/req"
	"github.com/Dhoini/subscription-sync/pkg/res"

	"github.com/gin-gonic/gin"
)

// CustomerResolver находит или создает клиента Stripe для пользователя
type CustomerResolver interface {
	ResolveOrCreateCustomer(ctx context.Context, userID, email string) (string, error)
}

// ResolveCustomerRequest тело запроса; email необязателен, по умолчанию берется из токена
type ResolveCustomerRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// ResolveCustomerResponse ответ с ID клиента Stripe
type ResolveCustomerResponse struct {
	CustomerID string `json:"customer_id"`
}

// CustomerHandler обработчик для клиентов Stripe
type CustomerHandler struct {
	resolver CustomerResolver
	log      *logger.Logger
}

// NewCustomerHandler создает новый обработчик клиентов
func NewCustomerHandler(resolver CustomerResolver, log *logger.Logger) *CustomerHandler {
	return &CustomerHandler{
		resolver: resolver,
		log:      log,
	}
}

// ResolveCustomer возвращает ID клиента Stripe текущего пользователя, создавая его при необходимости
func (h *CustomerHandler) ResolveCustomer(c *gin.Context) {
	body, err := req.HandleBody[ResolveCustomerRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	email := body.Email
	if email == "" {
		email = middleware.UserEmail(c)
	}
	userID := middleware.UserID(c)

	customerID, err := h.resolver.ResolveOrCreateCustomer(c.Request.Context(), userID, email)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data"}, http.StatusBadRequest, h.log)
			return
		}
		h.log.Errorw("Failed to resolve Stripe customer", "userID", userID, "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to resolve customer"}, http.StatusBadGateway, h.log)
		return
	}

	res.JsonResponse(c.Writer, ResolveCustomerResponse{CustomerID: customerID}, http.StatusOK)
}
