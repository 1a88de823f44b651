// Package services holds the submission pipeline and the outbox retry
// processor.
package services

import (
	"context"
	"errors"
	"log/slog"

	"tabi/internal/core"
	"tabi/internal/ledger"
)

type (
	// Outbox parks entries whose direct submission failed in transit.
	Outbox interface {
		EnqueueSubmission(ctx context.Context, in core.NewExpenseInput) (string, error)
	}

	// QueuePublisher announces parked entries to the retry worker.
	QueuePublisher interface {
		PublishSubmissionQueued(ctx context.Context, id string) error
	}
)

// SubmitService validates and forwards new entries to the ledger. It never
// touches the expense store's cache: the caller reconciles with a forced
// refresh no matter how submission ends, so the remote stays the single
// source of truth.
type SubmitService struct {
	ledger ledger.Submitter
	outbox Outbox         // optional
	events QueuePublisher // optional
}

func NewSubmitService(l ledger.Submitter, outbox Outbox, events QueuePublisher) *SubmitService {
	return &SubmitService{ledger: l, outbox: outbox, events: events}
}

// SubmitEntry runs local validation and then delegates to the ledger.
// Validation failures return before any network call. Transport failures are
// surfaced to the caller and, when an outbox is configured, additionally
// parked for the retry worker.
func (s *SubmitService) SubmitEntry(ctx context.Context, in core.NewExpenseInput) error {
	if err := in.Validate(); err != nil {
		return ledger.ValidationErr(err.Error(), err)
	}

	err := s.ledger.Submit(ctx, in)
	if err == nil {
		return nil
	}

	if errors.Is(err, ledger.ErrTransport) && s.outbox != nil {
		id, qerr := s.outbox.EnqueueSubmission(ctx, in)
		if qerr != nil {
			slog.ErrorContext(ctx, "Failed to park submission in outbox", "error", qerr)
		} else if s.events != nil {
			if perr := s.events.PublishSubmissionQueued(ctx, id); perr != nil {
				// The worker polls the outbox anyway; a lost event only
				// delays the retry.
				slog.WarnContext(ctx, "Failed to publish outbox event", "id", id, "error", perr)
			}
		}
	}

	return err
}
