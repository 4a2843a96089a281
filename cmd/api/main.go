package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"checkout-orchestrator/internal/checkout"
	"checkout-orchestrator/internal/client"
	"checkout-orchestrator/internal/config"
	"checkout-orchestrator/internal/push"
	"checkout-orchestrator/internal/repository"
	"checkout-orchestrator/internal/server"
	"checkout-orchestrator/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const resultsPerUser = 1024

func newLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		slog.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log).With("env", cfg.Environment.Name)
	slog.SetDefault(logger)

	db, err := client.OpenDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	paypalClient := client.NewPaypalClient(&cfg.Paypal)
	cryptoClient := client.NewCryptoClient(&cfg.Crypto)
	platformClient := client.NewPlatformClient(&cfg.Platform)

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	hub := push.NewHub(logger)

	orderService := service.NewOrderService(db, orderRepo)
	paymentService := service.NewPaymentService(paypalClient, cryptoClient, paymentRepo, cfg.BaseURL, logger)
	webhookService := service.NewWebhookService(paypalClient, cryptoClient, paymentRepo, webhookEventRepo, hub, logger)
	userService, err := service.NewUserService(resultsPerUser, logger)
	if err != nil {
		logger.Error("failed to create user service", "error", err)
		os.Exit(1)
	}

	deps := checkout.Deps{
		Cart:     platformClient,
		Orders:   orderService,
		Payments: paymentService,
		Statuses: paymentService,
		Ledger:   platformClient,
		Tokens:   platformClient,
		Balances: platformClient,
		Jobs:     platformClient,
		Notifier: hub,
		Results:  userService,
	}
	if cfg.BrainTree.MerchantID != "" {
		braintreeClient := client.NewBraintreeClient(&cfg.BrainTree)
		deps.Wallet = service.NewWalletService(braintreeClient, paymentRepo, cfg.Checkout.Currency, logger)
	} else {
		logger.Info("braintree not configured, wallet sheet rail disabled")
	}

	checkoutCfg := checkout.Config{
		Currency:            cfg.Checkout.Currency,
		PlatformAccountID:   cfg.Platform.AccountID,
		RegenerateCooldown:  cfg.Checkout.RegenerateCooldown,
		PollInterval:        cfg.Checkout.PollInterval,
		ConfirmationTimeout: cfg.Checkout.ConfirmationTimeout,
		ReconcileMaxElapsed: cfg.Checkout.ReconcileMaxElapsed,
		CooldownCacheSize:   cfg.Checkout.CooldownCacheSize,
		Logger:              logger.With("component", "checkout"),
	}
	registry := checkout.NewRegistry(checkoutCfg, deps)

	srv := server.NewServer(registry, webhookService, userService, server.Options{
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		InternalAPIKey: cfg.Auth.InternalAPIKey,
	}, logger)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	logger.Info("starting HTTP server", "addr", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	registry.Close()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
