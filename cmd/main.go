/**
 * @description
 * This is the main entry point for the verification-service. It receives Dojah
 * KYC webhooks, stages them in memory under their correlation id, and reconciles
 * them into the CarePro backend.
 *
 * Key features:
 * - Loads application configuration from environment variables.
 * - Starts the cron sweeper that purges expired staged records.
 * - Optionally publishes verification events to RabbitMQ.
 * - Implements graceful shutdown, draining background forwards before exit.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - The service's internal packages for config, API handling, storage and scheduling.
 */
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carepro/verification-service/internal/api"
	"github.com/carepro/verification-service/internal/app"
	"github.com/carepro/verification-service/internal/config"
	"github.com/carepro/verification-service/internal/store"
	"github.com/carepro/verification-service/pkg/backendclient"
	"github.com/carepro/verification-service/pkg/rabbitmq"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("cannot load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	correlationStore := store.NewMemoryStore(store.WithTTL(cfg.StagedRecordTTL()))

	backend := backendclient.NewClient(cfg.BackendAPIBaseURL, cfg.BackendTimeout(),
		backendclient.WithVerificationPath(cfg.BackendVerificationPath),
		backendclient.WithMethod(cfg.BackendVerificationMethod),
	)

	// Event publishing is optional; without a broker the service still stages and forwards.
	var publisher app.EventPublisher
	var producer *rabbitmq.EventProducer
	if cfg.RabbitMQURL != "" {
		producer, err = rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.VerificationEventsExchange)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = producer
		logger.Info("RabbitMQ producer connected", "exchange", cfg.VerificationEventsExchange)
	} else {
		logger.Warn("RABBITMQ_URL not set, verification events will not be published")
	}

	normalizer := app.NewNormalizer(cfg.CorrelationIDPrefix)
	forwarder := app.NewForwarder(correlationStore, normalizer, backend, publisher, logger, cfg.DeleteOnForwardSuccess)

	sweeper := app.NewSweeper(correlationStore, logger, cfg.SweepSchedule)
	if err := sweeper.Start(); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}
	logger.Info("sweeper started", "schedule", cfg.SweepSchedule, "ttl", cfg.StagedRecordTTL().String())

	service := app.NewService(correlationStore, forwarder, sweeper, publisher, logger, app.Options{
		ServiceToken:   cfg.BackendServiceToken,
		AutoForward:    cfg.AutoForward,
		ForwardTimeout: cfg.BackendTimeout(),
	})
	if cfg.AutoForward && cfg.BackendServiceToken == "" {
		logger.Warn("AUTO_FORWARD enabled without BACKEND_SERVICE_TOKEN, forwarding stays caller-driven")
	}

	router := api.NewRouter(
		api.NewWebhookHandler(service, api.NewSignatureVerifier(cfg.DojahWebhookSecret), logger),
		api.NewVerificationHandler(service, logger),
		api.NewAdminHandler(service, logger),
		api.RouterConfig{
			Auth: api.AuthConfig{
				Secret:   cfg.JWTSecret,
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
			},
			AdminRoles:     cfg.AdminRoleList(),
			AllowedOrigins: cfg.CORSOrigins(),
		},
	)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("could not start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := service.Wait(ctx); err != nil {
		logger.Warn("background forwards still running at shutdown", "error", err)
	}

	// Wait for the sweeper to finish any run in progress.
	<-sweeper.Stop().Done()
	logger.Info("server gracefully stopped")
}
