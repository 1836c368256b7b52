package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shoploft/api/internal/handlers"
	"github.com/shoploft/api/internal/notifications"
	"github.com/shoploft/api/internal/payments"
	"github.com/shoploft/api/internal/platform/auth"
	"github.com/shoploft/api/internal/platform/config"
	"github.com/shoploft/api/internal/platform/observability"
	"github.com/shoploft/api/internal/platform/postgres"
	postgresRepo "github.com/shoploft/api/internal/repositories/postgres"
	"github.com/shoploft/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := postgres.Open(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("postgres close error", zap.Error(err))
		}
	}()

	if err := postgres.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	mailer := buildMailer(logger, cfg)

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		AccountID:     cfg.Stripe.AccountID,
		Logger:        observability.EventLogger(logger.Named("stripe")),
		Clock:         time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}
	if cfg.Stripe.SecretKey == "" {
		logger.Warn("stripe secret key not set; checkout requests will be rejected")
	}

	catalogRepo := postgresRepo.NewCatalogRepository(db)
	couponRepo := postgresRepo.NewCouponRepository(db)
	giftCardRepo := postgresRepo.NewGiftCardRepository(db)
	orderRepo := postgresRepo.NewOrderRepository(db)
	addressRepo := postgresRepo.NewAddressRepository(db)

	stockValidator, err := services.NewStockValidator(catalogRepo)
	if err != nil {
		logger.Fatal("failed to initialise stock validator", zap.Error(err))
	}

	couponService, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons: couponRepo,
		StoreID: cfg.StoreID,
		Clock:   time.Now,
		Logger:  observability.EventLogger(logger.Named("coupons")),
	})
	if err != nil {
		logger.Fatal("failed to initialise coupon service", zap.Error(err))
	}

	giftCardService, err := services.NewGiftCardService(giftCardRepo)
	if err != nil {
		logger.Fatal("failed to initialise gift card service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Stock:             stockValidator,
		Coupons:           couponService,
		GiftCards:         giftCardService,
		Addresses:         addressRepo,
		Provider:          stripeProvider,
		StoreID:           cfg.StoreID,
		Currency:          "usd",
		SuccessURL:        cfg.Checkout.SuccessURL,
		CancelURL:         cfg.Checkout.CancelURL,
		ShippingCountries: cfg.Checkout.ShippingCountries,
		Logger:            observability.EventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	fulfillmentService, err := services.NewFulfillmentService(services.FulfillmentServiceDeps{
		Orders:            orderRepo,
		Catalog:           catalogRepo,
		GiftCards:         giftCardRepo,
		Provider:          stripeProvider,
		Mailer:            mailer,
		StoreID:           cfg.StoreID,
		StoreName:         cfg.StoreName,
		LowStockThreshold: cfg.Checkout.LowStockThreshold,
		Clock:             time.Now,
		Logger:            observability.EventLogger(logger.Named("fulfillment")),
	})
	if err != nil {
		logger.Fatal("failed to initialise fulfillment service", zap.Error(err))
	}

	checkoutHandlers, err := handlers.NewCheckoutHandlers(checkoutService, fulfillmentService)
	if err != nil {
		logger.Fatal("failed to initialise checkout handlers", zap.Error(err))
	}
	couponHandlers, err := handlers.NewCouponHandlers(couponService)
	if err != nil {
		logger.Fatal("failed to initialise coupon handlers", zap.Error(err))
	}
	webhookHandlers, err := handlers.NewWebhookHandlers(fulfillmentService)
	if err != nil {
		logger.Fatal("failed to initialise webhook handlers", zap.Error(err))
	}

	authenticator := auth.NewAuthenticator(cfg.Auth.CustomerTokenSecret)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(dbPinger{db})),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithCheckoutMiddlewares(authenticator.OptionalCustomerAuth()),
		handlers.WithCouponRoutes(couponHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  2 * cfg.HTTPTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("shoploft api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildMailer(logger *zap.Logger, cfg *config.Config) notifications.Mailer {
	if cfg.Mailer.APIKey == "" || cfg.Mailer.FromEmail == "" {
		logger.Warn("mailer not configured; notifications disabled")
		return notifications.NopMailer{}
	}
	mailer, err := notifications.NewResendMailer(notifications.ResendMailerConfig{
		APIKey:     cfg.Mailer.APIKey,
		BaseURL:    cfg.Mailer.APIBaseURL,
		FromEmail:  cfg.Mailer.FromEmail,
		OwnerEmail: cfg.Mailer.OwnerEmail,
	})
	if err != nil {
		logger.Warn("mailer init failed; notifications disabled", zap.Error(err))
		return notifications.NopMailer{}
	}
	return mailer
}

type dbPinger struct {
	db *sql.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return postgres.Ping(ctx, p.db)
}
