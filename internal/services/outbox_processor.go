package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tabi/internal/ledger"
	"tabi/internal/storage"
)

// OutboxStore is the slice of the SQLite repository the processor needs.
type OutboxStore interface {
	PendingSubmissions(ctx context.Context, limit int) ([]storage.PendingSubmission, error)
	MarkSubmissionDone(ctx context.Context, id string) error
	RecordSubmissionError(ctx context.Context, id string, cause error, maxAttempts int) error
}

// OutboxProcessorConfig holds configuration for the outbox processor.
type OutboxProcessorConfig struct {
	// PollInterval is how often to check for pending entries (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of entries to process per cycle (default: 10)
	BatchSize int

	// MaxAttempts is the give-up threshold per entry (default: 5)
	MaxAttempts int
}

// DefaultOutboxProcessorConfig returns sensible defaults.
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
		MaxAttempts:  5,
	}
}

// OutboxProcessor drains the submission outbox against the ledger. AMQP
// events trigger an immediate pass; the poll loop is the backup for lost
// events and worker downtime.
type OutboxProcessor struct {
	store  OutboxStore
	ledger ledger.Submitter
	config OutboxProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewOutboxProcessor(store OutboxStore, l ledger.Submitter, config OutboxProcessorConfig) *OutboxProcessor {
	return &OutboxProcessor{store: store, ledger: l, config: config}
}

// Start begins the poll loop. Returns an error if already running.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("outbox processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Outbox processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Outbox processor stop timed out")
		return ctx.Err()
	}
}

func (p *OutboxProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// One pass at startup to pick up entries parked while the worker was
	// down.
	if err := p.ProcessPending(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup outbox pass failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if err := p.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Outbox pass failed", "error", err)
			}
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// HandleQueuedMessage reacts to an AMQP notification by running a pass over
// pending entries. The message only signals "there is work"; entries are read
// from SQLite.
func (p *OutboxProcessor) HandleQueuedMessage(ctx context.Context, msgID string) error {
	slog.InfoContext(ctx, "Processing outbox notification", "id", msgID)
	return p.ProcessPending(ctx)
}

// ProcessPending retries pending outbox entries, oldest first. Transport
// failures leave the entry pending for the next pass; the attempt counter
// eventually parks it as failed.
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	pending, err := p.store.PendingSubmissions(ctx, p.config.BatchSize)
	if err != nil {
		return fmt.Errorf("get pending submissions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending submissions", "count", len(pending))

	for _, entry := range pending {
		if err := p.ledger.Submit(ctx, entry.Input); err != nil {
			if rerr := p.store.RecordSubmissionError(ctx, entry.ID, err, p.config.MaxAttempts); rerr != nil {
				slog.ErrorContext(ctx, "Failed to record submission error", "id", entry.ID, "error", rerr)
			}
			// A permission failure will not heal on retry; say so loudly.
			if errors.Is(err, ledger.ErrPermission) {
				slog.ErrorContext(ctx, "Ledger deployment is not accessible; submissions cannot drain",
					"id", entry.ID, "error", err)
			}
			continue
		}
		if err := p.store.MarkSubmissionDone(ctx, entry.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark submission done", "id", entry.ID, "error", err)
		}
	}
	return nil
}
