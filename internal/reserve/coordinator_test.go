package reserve

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockgate/internal/store"
	"stockgate/internal/testutil"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewManualClock(time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	return New(s, WithClock(clock))
}

func stockOf(t *testing.T, co *Coordinator, key string) int64 {
	t.Helper()
	stocks, err := co.GetStocks(context.Background(), []string{key})
	require.NoError(t, err)
	return stocks[key]
}

func TestReserve_DecrementsAndWritesLines(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))
	require.NoError(t, co.Reserve(ctx, "r1", []Item{{Key: "p1", Quantity: 3}}))

	assert.Equal(t, int64(2), stockOf(t, co, "p1"))

	lines, err := co.Lines(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, store.StatusReserved, lines[0].Status)
	assert.Equal(t, int64(3), lines[0].Quantity)
	assert.Empty(t, lines[0].SessionID)
}

func TestReserve_InsufficientStock(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))

	err := co.Reserve(ctx, "r2", []Item{{Key: "p1", Quantity: 6}})
	require.Error(t, err)
	assert.True(t, IsInsufficientStock(err))

	var is *InsufficientStockError
	require.ErrorAs(t, err, &is)
	assert.Equal(t, "p1", is.ItemKey)

	// Stock unchanged, no lines written.
	assert.Equal(t, int64(5), stockOf(t, co, "p1"))
	lines, err := co.Lines(ctx, "r2")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestReserve_AllOrNothing(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))
	require.NoError(t, co.SetStock(ctx, "p2", 0))

	// p1 would succeed, p2 fails: the whole call must leave no trace.
	err := co.Reserve(ctx, "r3", []Item{
		{Key: "p1", Quantity: 2},
		{Key: "p2", Quantity: 1},
	})
	require.Error(t, err)
	assert.True(t, IsInsufficientStock(err))

	assert.Equal(t, int64(5), stockOf(t, co, "p1"))
	lines, err := co.Lines(ctx, "r3")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestReserve_UnknownItem(t *testing.T) {
	co := newTestCoordinator(t)

	err := co.Reserve(context.Background(), "r1", []Item{{Key: "ghost", Quantity: 1}})
	require.Error(t, err)
	assert.True(t, IsInsufficientStock(err))
}

func TestReserve_InvalidQuantity(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))

	for _, quantity := range []int64{0, -1} {
		err := co.Reserve(ctx, "r1", []Item{{Key: "p1", Quantity: quantity}})
		require.Error(t, err)
		assert.True(t, IsInvalidQuantity(err), "quantity %d", quantity)
	}

	err := co.Reserve(ctx, "r1", nil)
	require.Error(t, err)
	assert.True(t, IsInvalidQuantity(err))

	// Rejected before any store mutation.
	assert.Equal(t, int64(5), stockOf(t, co, "p1"))
}

func TestReserve_MixedValidityRejectedWhole(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))

	err := co.Reserve(ctx, "r1", []Item{
		{Key: "p1", Quantity: 2},
		{Key: "p1", Quantity: 0},
	})
	require.Error(t, err)
	assert.True(t, IsInvalidQuantity(err))
	assert.Equal(t, int64(5), stockOf(t, co, "p1"))
}

func TestRelease_RestoresStockOnce(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))
	require.NoError(t, co.Reserve(ctx, "r1", []Item{{Key: "p1", Quantity: 3}}))
	require.Equal(t, int64(2), stockOf(t, co, "p1"))

	require.NoError(t, co.Release(ctx, "r1"))
	assert.Equal(t, int64(5), stockOf(t, co, "p1"))

	// Redelivered release must not double-restore.
	require.NoError(t, co.Release(ctx, "r1"))
	assert.Equal(t, int64(5), stockOf(t, co, "p1"))

	lines, err := co.Lines(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, store.StatusReleased, lines[0].Status)
}

func TestRelease_UnknownReservationIsNoOp(t *testing.T) {
	co := newTestCoordinator(t)
	assert.NoError(t, co.Release(context.Background(), "ghost"))
}

func TestRelease_MultiItem(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))
	require.NoError(t, co.SetStock(ctx, "p2", 4))
	require.NoError(t, co.Reserve(ctx, "r1", []Item{
		{Key: "p1", Quantity: 2},
		{Key: "p2", Quantity: 3},
	}))
	require.NoError(t, co.Release(ctx, "r1"))

	assert.Equal(t, int64(5), stockOf(t, co, "p1"))
	assert.Equal(t, int64(4), stockOf(t, co, "p2"))
}

func TestCommitBySession_IdempotentAndKeepsStock(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))
	require.NoError(t, co.Reserve(ctx, "r1", []Item{{Key: "p1", Quantity: 3}}))
	require.NoError(t, co.LinkToSession(ctx, "s1", "r1"))

	n, err := co.CommitBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(2), stockOf(t, co, "p1"), "commit must not restore stock")

	// Second delivery: zero rows affected, still success.
	n, err = co.CommitBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(2), stockOf(t, co, "p1"))
}

func TestRelease_AfterCommitIsNoOp(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))
	require.NoError(t, co.Reserve(ctx, "r1", []Item{{Key: "p1", Quantity: 3}}))
	require.NoError(t, co.LinkToSession(ctx, "s1", "r1"))
	_, err := co.CommitBySession(ctx, "s1")
	require.NoError(t, err)

	// A late expiry event for a committed reservation must not restore.
	require.NoError(t, co.Release(ctx, "r1"))
	assert.Equal(t, int64(2), stockOf(t, co, "p1"))

	lines, err := co.Lines(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, store.StatusCommitted, lines[0].Status)
}

func TestFindReservedReservationIDBySession(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))
	require.NoError(t, co.Reserve(ctx, "r1", []Item{{Key: "p1", Quantity: 1}}))
	require.NoError(t, co.LinkToSession(ctx, "s1", "r1"))

	id, ok, err := co.FindReservedReservationIDBySession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r1", id)

	_, ok, err = co.FindReservedReservationIDBySession(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, co.Release(ctx, "r1"))
	_, ok, err = co.FindReservedReservationIDBySession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok, "released reservation should no longer resolve")
}

func TestLinkToSession_Rebind(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 5))
	require.NoError(t, co.Reserve(ctx, "r1", []Item{{Key: "p1", Quantity: 1}}))
	require.NoError(t, co.LinkToSession(ctx, "s1", "r1"))
	require.NoError(t, co.LinkToSession(ctx, "s2", "r1"))

	// First attachment wins; committing the stray session touches nothing.
	n, err := co.CommitBySession(ctx, "s2")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = co.CommitBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSetStock_RejectsNegative(t *testing.T) {
	co := newTestCoordinator(t)

	err := co.SetStock(context.Background(), "p1", -1)
	require.Error(t, err)
	assert.True(t, IsInvalidQuantity(err))
}

func TestStockNeverNegative_ConcurrentReserves(t *testing.T) {
	co := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.SetStock(ctx, "p1", 10))

	// 20 goroutines race for 10 units; exactly 10 single-unit reserves can
	// succeed and stock must land at 0, never below.
	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results <- co.Reserve(ctx, fmt.Sprintf("r-%d", n), []Item{{Key: "p1", Quantity: 1}})
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.True(t, IsInsufficientStock(err), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, int64(0), stockOf(t, co, "p1"))
}
