package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/rates"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: log.ComponentWorker,
	})
	log.SetDefault(logger)

	logger.Info("Starting budget-worker")

	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// The budget worker is driven entirely by recompute messages; without a
	// broker it has nothing to do.
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for budget-worker")
		os.Exit(1)
	}

	// Initialize SQLite repository (runs migrations)
	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Initialize rate provider
	rateProvider := rates.NewProvider(rates.Config{
		SourceURL:    cfg.RateSourceURL,
		BaseCurrency: cfg.RateBaseCurrency,
		TTL:          cfg.RateCacheTTL,
		FetchTimeout: cfg.RateFetchTimeout,
	})

	// Initialize AMQP client for consuming recompute requests
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	aggregator := services.NewBudgetAggregator(repo, rateProvider)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := amqpClient.ConsumeBudgetRecompute(ctx, func(msg *amqp.BudgetRecomputeMessage) error {
			spent, err := aggregator.Recompute(ctx, msg.BudgetID)
			if err != nil {
				return err
			}
			logger.Info("Budget recomputed",
				"budget_id", msg.BudgetID,
				"reason", msg.Reason,
				"spent_cents", spent.Cents)
			return nil
		})
		if err != nil && err != context.Canceled {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down budget-worker...")
	cancel()

	// Wait for shutdown or timeout
	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(2 * time.Second):
		logger.Info("Budget-worker shutdown complete")
	}
}
