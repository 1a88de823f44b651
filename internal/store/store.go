// Package store owns the local read cache of ledger records. It is the only
// writer of that cache: refreshes replace the whole record set atomically,
// and failures keep the previous records visible alongside the classified
// error.
package store

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"tabi/internal/core"
	"tabi/internal/ledger"
)

// State is the store's fetch lifecycle. Every state is re-enterable via
// Refresh.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Snapshot is a point-in-time view of the store for rendering.
type Snapshot struct {
	State       State
	FetchedOnce bool
	LastError   error
	Count       int
}

type Store struct {
	fetcher ledger.Fetcher
	group   singleflight.Group

	mu          sync.RWMutex
	records     []core.ExpenseRecord
	state       State
	lastErr     error
	fetchedOnce bool
	// appliedGen fences out responses that resolve after a newer one has
	// already replaced the cache.
	appliedGen uint64
	nextGen    uint64
}

func New(fetcher ledger.Fetcher) *Store {
	return &Store{fetcher: fetcher, state: StateIdle}
}

type fetchResult struct {
	records []core.ExpenseRecord
	gen     uint64
}

// Refresh synchronizes the cache with the ledger. When a fetch has already
// succeeded and force is false this is a no-op: the cache is valid until
// explicitly invalidated by a forced call. Concurrent refreshes coalesce
// into a single remote fetch.
func (s *Store) Refresh(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.fetchedOnce && !force {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoading
	s.lastErr = nil
	s.nextGen++
	gen := s.nextGen
	s.mu.Unlock()

	v, err, _ := s.group.Do("refresh", func() (any, error) {
		records, err := s.fetcher.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		return fetchResult{records: records, gen: gen}, nil
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// Keep the stale cache; record the failure unless a newer refresh
		// already landed a result.
		if gen > s.appliedGen {
			s.state = StateFailed
			s.lastErr = err
		}
		return err
	}

	res := v.(fetchResult)
	if res.gen > s.appliedGen {
		s.records = append([]core.ExpenseRecord(nil), res.records...)
		s.appliedGen = res.gen
		s.fetchedOnce = true
		s.state = StateLoaded
		s.lastErr = nil
	}
	return nil
}

// Records returns a copy of the current cache. A failed refresh leaves the
// previous records in place, so callers may be looking at stale data; the
// snapshot's LastError says so.
func (s *Store) Records() []core.ExpenseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ExpenseRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Totals folds the current cache into per-currency sums.
func (s *Store) Totals() core.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.SumTotals(s.records)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:       s.state,
		FetchedOnce: s.fetchedOnce,
		LastError:   s.lastErr,
		Count:       len(s.records),
	}
}
