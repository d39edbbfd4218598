package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dhoini/subscription-sync/internal/api/rest"
	"github.com/Dhoini/subscription-sync/internal/api/rest/handlers"
	"github.com/Dhoini/subscription-sync/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-sync/internal/config"
	"github.com/Dhoini/subscription-sync/internal/kafka"
	"github.com/Dhoini/subscription-sync/internal/kafka/producer"
	"github.com/Dhoini/subscription-sync/internal/metrics"
	"github.com/Dhoini/subscription-sync/internal/repository"
	"github.com/Dhoini/subscription-sync/internal/repository/postgres"
	"github.com/Dhoini/subscription-sync/internal/service"
	stripesvc "github.com/Dhoini/subscription-sync/internal/stripe"
	"github.com/Dhoini/subscription-sync/migrations"
	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	dbConnectTimeout = 30 * time.Second
	shutdownTimeout  = 15 * time.Second
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logger.New(logger.INFO).Fatal("Failed to load configuration: %v", err)
	}

	log := logger.New(logger.ParseLevel(cfg.App.LogLevel))
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("Invalid configuration", "error", err)
	}
	if cfg.Stripe.WebhookSecret == "" {
		// Вебхуки будут отклоняться с 500, остальное работает
		log.Errorw("STRIPE_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prometheus
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(promRegistry)

	// PostgreSQL
	dbPool, err := postgres.NewConnection(ctx, cfg.Database.DSN, dbConnectTimeout, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(migrations.FS, cfg.Database.DSN, log); err != nil {
			log.Fatalw("Failed to run migrations", "error", err)
		}
	}

	sqlxDB := postgres.NewSQLX(dbPool)
	defer sqlxDB.Close()

	var subscriptions repository.SubscriptionRepository = repository.NewPostgresSubscriptionRepository(sqlxDB, log)
	if cfg.Redis.Addr != "" {
		cache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warnw("Redis unavailable, subscription cache disabled", "error", err)
		} else {
			defer cache.Close()
			subscriptions = repository.NewCachedSubscriptionRepository(subscriptions, cache, log)
		}
	}
	payments := postgres.NewPaymentRepository(dbPool, log)
	identities := postgres.NewIdentityRepository(dbPool, log)

	// Kafka необязательна: без брокеров изменения и dead-letter только логируются
	var (
		changePublisher  service.ChangePublisher
		deadLetters      service.DeadLetterSink
		paymentPublisher service.PaymentPublisher
	)
	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureKafkaTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic, log); err != nil {
			log.Warnw("Failed to ensure Kafka topics", "error", err)
		}

		kafkaProducer, err := kafka.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic, log)
		if err != nil {
			log.Fatalw("Failed to create Kafka producer", "error", err)
		}
		defer kafkaProducer.Close()
		changePublisher = kafkaProducer
		deadLetters = kafkaProducer

		syncProducer, err := kafka.NewSyncProducer(kafka.NewConfig(cfg.Kafka.Brokers))
		if err != nil {
			log.Warnw("Failed to create Sarama producer, payment events disabled", "error", err)
		} else {
			paymentProducer := producer.NewKafkaPaymentProducer(syncProducer, log)
			defer paymentProducer.Close()
			paymentPublisher = paymentProducer
		}
	} else {
		log.Warn("KAFKA_BROKERS is empty, event publishing disabled")
	}

	// Stripe
	stripeClient := stripesvc.NewClient(cfg.Stripe.APIKey, cfg.Stripe.UserIDMetadataKey, log)
	verifier := stripesvc.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance, log)

	// Сервисы
	identityResolver := service.NewIdentityResolver(stripeClient, identities, stripeClient.MetadataKey(), log)
	planResolver := service.NewPlanResolver(stripeClient, appMetrics, log)
	reconciler := service.NewReconciler(subscriptions, changePublisher, appMetrics, log)
	dispatcher := service.NewDispatcher(service.DispatcherDeps{
		Identity:      identityResolver,
		Plans:         planResolver,
		Reconciler:    reconciler,
		Payments:      payments,
		PaymentEvents: paymentPublisher,
		DeadLetters:   deadLetters,
		MetadataKey:   stripeClient.MetadataKey(),
		Metrics:       appMetrics,
		Log:           log,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := rest.SetupRouter(rest.Handlers{
		Webhook:      handlers.NewWebhookHandler(verifier, dispatcher, appMetrics, log),
		Subscription: handlers.NewSubscriptionHandler(subscriptions, stripeClient, log),
		Customer:     handlers.NewCustomerHandler(identityResolver, log),
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"postgres": dbPool.Ping,
		}),
		Auth: middleware.NewJWTMiddleware(&middleware.HMACTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)}, log),
	}, promRegistry, log)

	server := rest.NewServer(router, cfg.App.Port, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Errorw("HTTP server stopped", "error", err)
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Errorw("Server forced to shutdown", "error", err)
	}

	log.Info("Server stopped gracefully")
}
