package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabi/internal/core"
	"tabi/internal/ledger"
	"tabi/internal/ledger/memory"
)

func seedRecords() []core.ExpenseRecord {
	return []core.ExpenseRecord{
		{RowIndex: 2, Item: "午餐", Payer: "想想", AmountJPY: decimal.NewFromInt(1200)},
		{RowIndex: 3, Item: "夜市", Payer: "錢錢", AmountTWD: decimal.NewFromInt(350)},
	}
}

func TestRefresh_CachesUntilForced(t *testing.T) {
	backend := memory.New(seedRecords()...)
	s := New(backend)

	require.NoError(t, s.Refresh(context.Background(), false))
	require.NoError(t, s.Refresh(context.Background(), false))
	assert.Equal(t, 1, backend.FetchCalls(), "unforced refresh after a success must not refetch")

	require.NoError(t, s.Refresh(context.Background(), true))
	assert.Equal(t, 2, backend.FetchCalls())

	snap := s.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.True(t, snap.FetchedOnce)
	assert.NoError(t, snap.LastError)
	assert.Equal(t, 2, snap.Count)
}

func TestRefresh_FirstCallFetches(t *testing.T) {
	backend := memory.New(seedRecords()...)
	s := New(backend)

	assert.Equal(t, StateIdle, s.Snapshot().State)
	require.NoError(t, s.Refresh(context.Background(), false))
	assert.Equal(t, 1, backend.FetchCalls())
	assert.Len(t, s.Records(), 2)
}

func TestRefresh_FailureKeepsStaleCache(t *testing.T) {
	backend := memory.New(seedRecords()...)
	s := New(backend)
	require.NoError(t, s.Refresh(context.Background(), false))

	backend.FailFetchWith(ledger.TransportErr("connection refused", nil))
	err := s.Refresh(context.Background(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrTransport)

	snap := s.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.True(t, snap.FetchedOnce, "a past success stays acknowledged across failures")
	assert.ErrorIs(t, snap.LastError, ledger.ErrTransport)
	assert.Len(t, s.Records(), 2, "failed refresh must not wipe the cache")
}

func TestRefresh_RecoveryClearsError(t *testing.T) {
	backend := memory.New(seedRecords()...)
	s := New(backend)
	require.NoError(t, s.Refresh(context.Background(), false))

	backend.FailFetchWith(ledger.PermissionErr("sign-in page", nil))
	require.Error(t, s.Refresh(context.Background(), true))

	backend.FailFetchWith(nil)
	require.NoError(t, s.Refresh(context.Background(), true))

	snap := s.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.NoError(t, snap.LastError)
}

func TestRefresh_FirstFetchFailureLeavesEmptyCache(t *testing.T) {
	backend := memory.New()
	backend.FailFetchWith(ledger.TransportErr("dns failure", nil))
	s := New(backend)

	require.Error(t, s.Refresh(context.Background(), false))
	snap := s.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.False(t, snap.FetchedOnce)
	assert.Empty(t, s.Records())

	// Unforced refresh retries because no fetch has ever succeeded.
	backend.FailFetchWith(nil)
	require.NoError(t, s.Refresh(context.Background(), false))
	assert.Equal(t, 2, backend.FetchCalls())
}

func TestTotals(t *testing.T) {
	backend := memory.New(seedRecords()...)
	s := New(backend)

	assert.True(t, s.Totals().JPY.IsZero(), "totals before any fetch are zero")

	require.NoError(t, s.Refresh(context.Background(), false))
	totals := s.Totals()
	assert.True(t, totals.TWD.Equal(decimal.NewFromInt(350)), "TWD = %s", totals.TWD)
	assert.True(t, totals.JPY.Equal(decimal.NewFromInt(1200)), "JPY = %s", totals.JPY)
}

func TestRecords_ReturnsCopy(t *testing.T) {
	backend := memory.New(seedRecords()...)
	s := New(backend)
	require.NoError(t, s.Refresh(context.Background(), false))

	got := s.Records()
	got[0].Item = "mutated"
	assert.Equal(t, "午餐", s.Records()[0].Item)
}

func TestRefresh_ConcurrentForcedCallsCoalesce(t *testing.T) {
	backend := memory.New(seedRecords()...)
	s := New(backend)

	const n = 8
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			done <- s.Refresh(context.Background(), true)
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}
	assert.LessOrEqual(t, backend.FetchCalls(), n)
	assert.GreaterOrEqual(t, backend.FetchCalls(), 1)
	assert.Equal(t, StateLoaded, s.Snapshot().State)
	assert.Len(t, s.Records(), 2)
}
