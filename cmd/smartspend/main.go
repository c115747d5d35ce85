package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartspend/internal/ai"
	"smartspend/internal/amqp"
	"smartspend/internal/config"
	apphttp "smartspend/internal/http"
	"smartspend/internal/services"
	"smartspend/internal/storage"
)

// invalidationFanout delivers committed-change events to the local
// dashboard cache and, when AMQP is configured, to other processes.
type invalidationFanout struct {
	amqp  *amqp.Client
	local func(userID string, accountIDs []string)
}

func (f *invalidationFanout) PublishInvalidation(ctx context.Context, userID string, accountIDs []string) error {
	if f.local != nil {
		f.local(userID, accountIDs)
	}
	if f.amqp != nil {
		return f.amqp.PublishInvalidation(ctx, userID, accountIDs)
	}
	return nil
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting smartspend API server")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite repository
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Initialize AMQP client for cross-process cache invalidation (optional)
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event bus", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - dashboard invalidation stays in-process")
	}

	// Initialize Gemini client for receipt scanning (optional)
	var scanner apphttp.ReceiptScanner
	if cfg.GeminiAPIKey != "" {
		aiClient, err := ai.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("Failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		scanner = aiClient
		logger.Info("Gemini client initialized")
	} else {
		logger.Info("Gemini disabled - receipt scanning unavailable")
	}

	events := &invalidationFanout{amqp: amqpClient}

	ledger := services.NewLedgerService(repo, events)
	budgets := services.NewBudgetMonitor(repo, nil)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Storage:            repo,
		Ledger:             ledger,
		Budgets:            budgets,
		Scanner:            scanner,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	events.local = srv.Invalidate

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Consume invalidation events produced by the sweeper process
	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeInvalidations(ctx, func(msg *amqp.InvalidationMessage) error {
				srv.Invalidate(msg.UserID, msg.AccountIDs)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("Invalidation consumer stopped", "error", err)
			}
		}()
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting smartspend server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
