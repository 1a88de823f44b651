// Package storage is the local SQLite layer: durable app state for the
// checklist and shopping views, and the submission outbox that parks ledger
// writes which failed in transit.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tabi/internal/core"

	_ "modernc.org/sqlite"
)

// Fixed app-state keys, mirrored by the client. Each value is a
// JSON-serialized array.
const (
	StateKeyCheckedItems = "checked_items"
	StateKeyShoppingList = "shopping_list"
)

// ErrStateNotFound reports a state key that has never been written.
var ErrStateNotFound = errors.New("state key not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetState returns the raw JSON value stored under key.
func (r *Repository) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM app_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get state %q: %w", key, err)
	}
	return value, nil
}

// SetState upserts the raw JSON value under key.
func (r *Repository) SetState(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

// PendingSubmission is an outbox entry awaiting a retry against the ledger.
type PendingSubmission struct {
	ID        string
	Input     core.NewExpenseInput
	Attempts  int
	CreatedAt time.Time
}

// EnqueueSubmission parks an entry whose direct submission failed in
// transit. The worker retries it later; the entry never becomes a local
// record.
func (r *Repository) EnqueueSubmission(ctx context.Context, in core.NewExpenseInput) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO submission_outbox (id, item, payer, amount, currency, note)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, in.Item, string(in.Payer), in.Amount.String(), string(in.Currency), in.Note)
	if err != nil {
		return "", fmt.Errorf("enqueue submission: %w", err)
	}

	slog.InfoContext(ctx, "Submission parked in outbox",
		"id", id, "item", in.Item, "currency", in.Currency)
	return id, nil
}

// PendingSubmissions returns up to limit outbox entries still awaiting
// delivery, oldest first.
func (r *Repository) PendingSubmissions(ctx context.Context, limit int) ([]PendingSubmission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, item, payer, amount, currency, note, attempts, created_at
		 FROM submission_outbox WHERE status = 'pending'
		 ORDER BY created_at ASC, rowid ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending submissions: %w", err)
	}
	defer rows.Close()

	var out []PendingSubmission
	for rows.Next() {
		var (
			p         PendingSubmission
			amountStr string
		)
		if err := rows.Scan(&p.ID, &p.Input.Item, (*string)(&p.Input.Payer), &amountStr,
			(*string)(&p.Input.Currency), &p.Input.Note, &p.Attempts, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending submission: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parse outbox amount %q: %w", amountStr, err)
		}
		p.Input.Amount = amount
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSubmissionDone marks an outbox entry as delivered.
func (r *Repository) MarkSubmissionDone(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE submission_outbox SET status = 'done', updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark submission done: %w", err)
	}
	slog.InfoContext(ctx, "Outbox submission delivered", "id", id)
	return nil
}

// RecordSubmissionError bumps the attempt counter and, past maxAttempts,
// gives up on the entry.
func (r *Repository) RecordSubmissionError(ctx context.Context, id string, cause error, maxAttempts int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE submission_outbox
		 SET attempts = attempts + 1,
		     last_error = ?,
		     status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		cause.Error(), maxAttempts, id)
	if err != nil {
		return fmt.Errorf("record submission error: %w", err)
	}
	slog.WarnContext(ctx, "Outbox submission attempt failed", "id", id, "cause", cause)
	return nil
}
