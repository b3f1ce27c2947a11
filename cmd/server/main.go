/**
 * @description
 * This is the main entry point for the Chargebee webhook service.
 * It initializes and wires together all the components of the application:
 * configuration, secrets, the Chargebee and mail server clients, one
 * reconciliation engine per tenant, and the HTTP router. Finally, it starts
 * the HTTP server to listen for incoming webhooks.
 */
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/api"
	"github.com/MarkM-Portfolio/atmail-webhooks/internal/config"
	"github.com/MarkM-Portfolio/atmail-webhooks/internal/engine"
	"github.com/MarkM-Portfolio/atmail-webhooks/internal/plan"
	"github.com/MarkM-Portfolio/atmail-webhooks/internal/secrets"
	"github.com/MarkM-Portfolio/atmail-webhooks/pkg/chargebeeclient"
	"github.com/MarkM-Portfolio/atmail-webhooks/pkg/mailserverclient"
)

func main() {
	// Initialize structured logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load application configuration from environment variables
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up channel to listen for OS signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Fetch credentials from Secrets Manager
	store, err := secrets.Load(ctx, cfg.AWSRegion, cfg.SecretID, cfg.Platform)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load secrets")
	}
	logger.Info().Msg("secrets loaded")

	// One mail server client is shared by every tenant.
	accounts := mailserverclient.NewClient(
		store.MailServer.APIURL,
		store.MailServer.Username,
		store.MailServer.Password,
	)

	// One engine per Chargebee instance, each with its own site client.
	engines := make(map[string]api.EventProcessor)
	for _, instance := range store.Instances() {
		creds, _ := store.Tenant(instance)
		billing := chargebeeclient.NewClient(instance, creds.APIKey)
		engines[instance] = engine.New(plan.ResolveTenant(instance), billing, accounts)
		logger.Info().Str("cb_instance", instance).Msg("engine initialised")
	}

	handler := api.NewWebhookHandler(engines, store, cfg.TestMode)
	router := api.NewRouter(handler, logger)

	// Configure and start the HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.ServerPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for an OS signal
	<-sigCh
	logger.Info().Msg("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
