// The sweeper runs the three background jobs: materializing due
// recurring transactions, checking budgets, and sending monthly reports.
// It shares the database with the API server and publishes invalidation
// events so server caches stay fresh.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"smartspend/internal/ai"
	"smartspend/internal/amqp"
	"smartspend/internal/config"
	"smartspend/internal/notify"
	"smartspend/internal/services"
	"smartspend/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting smartspend sweeper")

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

	// Initialize AMQP client so the API server hears about sweep results
	var amqpClient *amqp.Client
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event bus", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - API caches rely on TTL expiry")
	}

	// Mail goes out via SMTP when configured, otherwise to the log
	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	if cfg.SMTPHost != "" {
		dispatcher = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		logger.Info("SMTP mailer initialized", "host", cfg.SMTPHost)
	} else {
		logger.Info("SMTP disabled - mail will be logged")
	}

	// Report insights come from Gemini when configured
	var insights services.InsightGenerator
	if cfg.GeminiAPIKey != "" {
		aiClient, err := ai.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Failed to initialize Gemini client, reports will use fallback insights", "error", err)
		} else {
			insights = aiClient
			logger.Info("Gemini client initialized")
		}
	}

	processor := services.NewRecurringProcessor(repo, events)
	monitor := services.NewBudgetMonitor(repo, dispatcher)
	reports := services.NewReportService(repo, insights, dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return runRecurringSweep(ctx, processor, cfg.RecurringSweepInterval) })
	g.Go(func() error { return runBudgetChecks(ctx, monitor, cfg.BudgetCheckInterval) })
	g.Go(func() error { return runReportSchedule(ctx, reports, cfg.ReportCheckInterval) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Sweeper stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Sweeper stopped gracefully")
}

// runRecurringSweep materializes due recurring transactions on a fixed
// interval, starting with one sweep at boot.
func runRecurringSweep(ctx context.Context, processor *services.RecurringProcessor, interval time.Duration) error {
	if count, err := processor.ProcessDue(ctx, time.Now().UTC()); err != nil {
		slog.Error("Initial recurring sweep failed", "error", err)
	} else {
		slog.Info("Initial recurring sweep complete", "materialized", count)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			count, err := processor.ProcessDue(ctx, now.UTC())
			if err != nil {
				slog.Error("Recurring sweep failed", "error", err)
				continue
			}
			slog.Info("Recurring sweep complete",
				"materialized", count,
				"next_check", now.Add(interval).Format("15:04:05"))
		}
	}
}

func runBudgetChecks(ctx context.Context, monitor *services.BudgetMonitor, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			alerts, err := monitor.CheckAll(ctx, now.UTC())
			if err != nil {
				slog.Error("Budget check failed", "error", err)
				continue
			}
			slog.Info("Budget check complete", "alerts_sent", alerts)
		}
	}
}

// runReportSchedule checks periodically whether the month has rolled
// over and sends last month's reports on the first matching tick. The
// lastReported guard keeps one process from reporting the same month
// twice.
func runReportSchedule(ctx context.Context, reports *services.ReportService, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastReported time.Month

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			now = now.UTC()
			if now.Day() != 1 || now.Month() == lastReported {
				continue
			}
			sent, err := reports.GenerateAll(ctx, now)
			if err != nil {
				slog.Error("Monthly report generation failed", "error", err)
				continue
			}
			lastReported = now.Month()
			slog.Info("Monthly reports sent", "count", sent)
		}
	}
}
