package rest

import (
	"github.com/Dhoini/subscription-sync/internal/api/rest/handlers"
	"github.com/Dhoini/subscription-sync/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers набор обработчиков, собранных в main
type Handlers struct {
	Webhook      *handlers.WebhookHandler
	Subscription *handlers.SubscriptionHandler
	Customer     *handlers.CustomerHandler
	Health       *handlers.HealthHandler
	Auth         *middleware.JWTMiddleware
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(h Handlers, registry *prometheus.Registry, log *logger.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Вебхуки: тело читается как есть, без JSON биндинга
	r.POST("/webhooks/stripe", h.Webhook.HandleStripeWebhook)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/webhooks/stripe", h.Webhook.HandleStripeWebhook)

		authed := v1.Group("", h.Auth.RequireAuth())
		{
			authed.POST("/customers/resolve", h.Customer.ResolveCustomer)

			subscriptions := authed.Group("/subscriptions")
			{
				subscriptions.GET("/:subscription_id", h.Subscription.GetSubscription)
				subscriptions.DELETE("/:subscription_id", h.Subscription.CancelSubscription)
			}
		}
	}
	return r
}
