package ledger

import (
	"context"

	"tabi/internal/core"
)

// Ports for remote ledger adapters.
type (
	// Fetcher reads the full record set from the system of record.
	Fetcher interface {
		FetchAll(ctx context.Context) ([]core.ExpenseRecord, error)
	}

	// Submitter appends one entry to the system of record. Writes are
	// fire-and-forget at the parsing level: a nil error means the remote
	// was reached, not that the row is confirmed. Confirmation comes from
	// the next forced fetch.
	Submitter interface {
		Submit(ctx context.Context, in core.NewExpenseInput) error
	}

	// Client is a full read/write ledger adapter.
	Client interface {
		Fetcher
		Submitter
	}
)
