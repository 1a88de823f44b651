package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tabi/internal/amqp"
	"tabi/internal/config"
	"tabi/internal/ledger"
	"tabi/internal/ledger/memory"
	"tabi/internal/ledger/script"
	"tabi/internal/ledger/sheets"
	applog "tabi/internal/log"
	"tabi/internal/services"
	"tabi/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New("worker")
	applog.SetDefault(logger)

	logger.Info("Starting tabi-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize local storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ledgerClient, err := buildLedger(cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", "error", err, "backend", cfg.LedgerBackend)
		os.Exit(1)
	}
	logger.Info("Ledger backend initialized", "backend", cfg.LedgerBackend)

	processor := services.NewOutboxProcessor(repo, ledgerClient, services.OutboxProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start outbox processor", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeSubmissionQueued(gctx, func(msg *amqp.SubmissionQueuedMessage) error {
				return processor.HandleQueuedMessage(gctx, msg.ID)
			})
		})
		logger.Info("Consuming outbox notifications", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - relying on outbox polling only")
	}

	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Error("Outbox processor shutdown error", "error", err)
	}

	logger.Info("Worker stopped gracefully")
}

func buildLedger(cfg *config.Config) (ledger.Client, error) {
	switch cfg.LedgerBackend {
	case "sheets":
		return sheets.NewFromEnv(context.Background())
	case "memory":
		return memory.New(), nil
	default:
		return script.New(cfg.ScriptURL,
			script.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout}))
	}
}
