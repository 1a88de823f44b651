// Package memory is an in-process ledger used as the dev backend and as a
// fake in tests. It plays the system of record: submissions become records
// here, with identity assigned on append.
package memory

import (
	"context"
	"sync"
	"time"

	"tabi/internal/core"
	"tabi/internal/ledger"
)

type Store struct {
	mu         sync.Mutex
	records    []core.ExpenseRecord
	fetchErr   error
	submitErr  error
	fetchCalls int
	now        func() time.Time
}

var _ ledger.Client = (*Store)(nil)

func New(seed ...core.ExpenseRecord) *Store {
	return &Store{
		records: append([]core.ExpenseRecord(nil), seed...),
		now:     time.Now,
	}
}

func (s *Store) FetchAll(_ context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make([]core.ExpenseRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Store) Submit(_ context.Context, in core.NewExpenseInput) error {
	if err := in.Validate(); err != nil {
		return ledger.ValidationErr(err.Error(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return s.submitErr
	}
	rec := core.ExpenseRecord{
		RowIndex: len(s.records) + 2, // row 1 is the sheet header
		Date:     s.now().Format(time.RFC3339),
		Item:     in.Item,
		Payer:    string(in.Payer),
		Note:     in.Note,
	}
	switch in.Currency {
	case core.CurrencyTWD:
		rec.AmountTWD = in.Amount
	case core.CurrencyJPY:
		rec.AmountJPY = in.Amount
	}
	s.records = append(s.records, rec)
	return nil
}

// FailFetchWith makes subsequent fetches return err; nil restores normal
// behavior.
func (s *Store) FailFetchWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

// FailSubmitWith makes subsequent submissions return err; nil restores
// normal behavior.
func (s *Store) FailSubmitWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitErr = err
}

// FetchCalls reports how many fetches were issued, failed ones included.
func (s *Store) FetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

// Len reports the current record count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
