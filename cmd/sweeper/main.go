package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-payments/internal/config"
	"storefront-payments/internal/logger"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
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

	if cfg.Cron.APIKey == "" {
		log.Fatal("CRON_API_KEY is required")
	}

	httpClient := &http.Client{Timeout: time.Minute}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = scheduler.AddFunc(cfg.Cron.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		processed, err := triggerSweep(ctx, httpClient, cfg.Cron.SweepURL, cfg.Cron.APIKey)
		if err != nil {
			log.Error("sweep failed", zap.Error(err))
			return
		}
		log.Info("sweep finished", zap.Int64("processed", processed))
	})
	if err != nil {
		log.Fatal("invalid CRON_SCHEDULE", zap.String("schedule", cfg.Cron.Schedule), zap.Error(err))
	}

	scheduler.Start()
	log.Info("sweeper started", zap.String("schedule", cfg.Cron.Schedule), zap.String("url", cfg.Cron.SweepURL))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("signal received, waiting for running sweep")
	<-scheduler.Stop().Done()
}
