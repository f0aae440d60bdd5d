package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ministry-platform/service-enrollment/internal/adapter"
	"github.com/ministry-platform/service-enrollment/internal/application"
	"github.com/ministry-platform/service-enrollment/internal/config"
	"github.com/ministry-platform/service-enrollment/internal/events"
	"github.com/ministry-platform/service-enrollment/internal/handler"
	"github.com/ministry-platform/service-enrollment/internal/lock"
	"github.com/ministry-platform/service-enrollment/internal/platform/database"
	"github.com/ministry-platform/service-enrollment/internal/platform/health"
	"github.com/ministry-platform/service-enrollment/internal/platform/logger"
	"github.com/ministry-platform/service-enrollment/internal/platform/middleware"
	"github.com/ministry-platform/service-enrollment/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.New(cfg.AppEnv, "service-enrollment")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-enrollment",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, cfg.AppEnv)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Dev auto-migrate; production schemas are managed by migrations in the
	// platform's deployment pipeline.
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.PurchaseModel{},
			&repository.PromoCodeModel{},
			&repository.ProgramModel{},
		); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	}

	// Lock broker: Redis-backed when configured, in-process otherwise.
	var locker lock.Locker
	if cfg.Redis.Addr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		locker = lock.NewRedisLocker(redisClient, zapLogger)
		zapLogger.Info("using redis lock broker", zap.String("addr", cfg.Redis.Addr))
	} else {
		locker = lock.NewKeyedLocker(zapLogger)
		zapLogger.Info("using in-process lock broker")
	}

	// Payment processor: Stripe with real keys, mock otherwise.
	var processor adapter.Processor
	if cfg.Stripe.SecretKey != "" {
		processor = adapter.NewStripeProcessor(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, zapLogger)
		zapLogger.Info("using stripe payment processor")
	} else {
		processor = adapter.NewMockProcessor(zapLogger)
		zapLogger.Warn("no stripe key configured, using mock payment processor")
	}

	// Kafka producer and notifier
	kafkaProducer := events.NewProducer(cfg.Kafka.Brokers, zapLogger)
	defer kafkaProducer.Close()
	notifier := events.NewNotifier(kafkaProducer, zapLogger)

	// Repositories
	purchaseRepo := repository.NewPurchaseRepository(db)
	promoRepo := repository.NewPromoCodeRepository(db)
	programRepo := repository.NewProgramRepository(db)

	// Application services
	checkoutService := application.NewCheckoutService(
		purchaseRepo, programRepo, promoRepo, processor, locker, notifier,
		application.CheckoutConfig{
			Currency:           cfg.Checkout.Currency,
			MinimumChargeCents: cfg.Checkout.MinimumChargeCents,
			LockTimeout:        cfg.Checkout.LockTimeout,
			SuccessURL:         cfg.Stripe.SuccessURL,
			CancelURL:          cfg.Stripe.CancelURL,
		},
		zapLogger,
	)
	webhookService := application.NewWebhookService(
		purchaseRepo, programRepo, promoRepo, processor, locker, notifier,
		application.WebhookConfig{
			LockTimeout:         cfg.Checkout.WebhookLockTimeout,
			BundlePromoEnabled:  cfg.BundlePromo.Enabled,
			BundleDiscountCents: cfg.BundlePromo.DiscountCents,
			BundleValidity:      cfg.BundlePromo.Validity,
		},
		zapLogger,
	)
	refundService := application.NewRefundService(
		purchaseRepo, processor, locker, notifier,
		cfg.Checkout.RefundWindow, cfg.Checkout.LockTimeout,
		zapLogger,
	)
	promoService := application.NewPromoService(promoRepo, zapLogger)

	// Kafka consumer for registration events
	registrationConsumer := events.NewRegistrationEventConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupPrefix+".registration",
		checkoutService,
		zapLogger,
	)
	defer registrationConsumer.Close()

	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	go func() {
		zapLogger.Info("starting registration event consumer")
		if err := registrationConsumer.Start(consumerCtx); err != nil {
			if consumerCtx.Err() == nil {
				zapLogger.Error("registration event consumer failed", zap.Error(err))
			}
		}
	}()

	// HTTP handlers
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, refundService)
	webhookHandler := handler.NewWebhookHandler(processor, webhookService, zapLogger)
	promoHandler := handler.NewPromoHandler(promoService)
	adminHandler := handler.NewAdminHandler(checkoutService)

	// Setup Gin router
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery(zapLogger))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.CORS())

	health.Register(router, db)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	webhookHandler.RegisterRoutes(router)

	apiV1 := router.Group("/api/v1")
	checkoutHandler.RegisterRoutes(apiV1)
	promoHandler.RegisterRoutes(apiV1)
	adminHandler.RegisterRoutes(apiV1)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-enrollment...")

	consumerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-enrollment stopped")
}
