package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-payments/internal/cache"
	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	"storefront-payments/internal/event"
	"storefront-payments/internal/logger"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/server"
	"storefront-payments/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log = log.With(zap.String("env", cfg.Environment.Name))

	if cfg.Stripe.WebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET is empty, every webhook will be rejected")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn("AUTH_JWT_SECRET is empty, user endpoints will reject every request")
	}

	db, err := client.InitDBClient(&cfg.Database, log)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	stripeClient := client.NewStripeClient(&cfg.Stripe)

	redisClient, err := cache.NewRedisClient(&cfg.Redis, &cfg.Checkout, log)
	if err != nil {
		log.Fatal("redis init failed", zap.Error(err))
	}
	defer redisClient.Close()

	publisher := event.NewPublisher(&cfg.Kafka, log)
	defer publisher.Close()

	productRepo := repository.NewProductRepository(db)
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	if cfg.Database.SeedDemoData {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := productRepo.Seed(ctx); err != nil {
			log.Fatal("seed products failed", zap.Error(err))
		}
		if err := userRepo.Seed(ctx); err != nil {
			log.Fatal("seed users failed", zap.Error(err))
		}
		cancel()
		log.Info("demo data seeded")
	}

	services := server.Services{
		Checkout: service.NewCheckoutService(
			stripeClient,
			productRepo,
			userRepo,
			orderRepo,
			redisClient,
			cfg.BaseURL,
			cfg.Checkout,
			log,
		),
		Webhook: service.NewWebhookService(
			cfg.Stripe.WebhookSecret,
			stripeClient,
			orderRepo,
			subscriptionRepo,
			webhookEventRepo,
			publisher,
			cfg.Checkout.Currency,
			log,
		),
		Completion: service.NewCompletionService(stripeClient, orderRepo, redisClient, publisher, cfg.Checkout.Currency, log),
		Order:      service.NewOrderService(stripeClient, orderRepo, subscriptionRepo, publisher, log),
		Sweeper:    service.NewSweeperService(stripeClient, orderRepo, publisher, log),
	}

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(cfg, services, log)

	log.Info("starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
}
