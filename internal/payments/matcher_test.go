package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noelye/agentic-pos/internal/ledger"
)

type fakeOrderStore struct {
	mu    sync.Mutex
	calls []string
	err   error
	delay time.Duration
}

func (f *fakeOrderStore) MarkPaid(ctx context.Context, orderID, signature string, paidAt time.Time) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, orderID+"/"+signature)
	return f.err
}

func (f *fakeOrderStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestMatcher() (*Matcher, *ledger.Ledger, *fakeOrderStore) {
	l := ledger.New()
	orders := &fakeOrderStore{}
	return NewMatcher(l, orders, zap.NewNop()), l, orders
}

func TestMatchWithinTolerance(t *testing.T) {
	m, l, orders := newTestMatcher()
	l.Create("A1", decimal.RequireFromString("5"), decimal.RequireFromString("0.05"))

	// exactly Tolerance away still matches
	res := m.Match(context.Background(), decimal.RequireFromString("0.050001"), "sig-1")
	require.True(t, res.Matched)
	require.Equal(t, "A1", res.OrderID)
	require.Equal(t, 1, orders.callCount())
	require.Equal(t, 0, l.Len())
}

func TestMatchBeyondToleranceFails(t *testing.T) {
	m, l, orders := newTestMatcher()
	l.Create("A1", decimal.RequireFromString("5"), decimal.RequireFromString("0.05"))

	res := m.Match(context.Background(), decimal.RequireFromString("0.0500011"), "sig-1")
	require.False(t, res.Matched)
	require.Equal(t, 0, orders.callCount())
	require.Equal(t, 1, l.Len(), "an unmatched payment must not mutate the ledger")
}

func TestMatchAtMostOnce(t *testing.T) {
	m, l, _ := newTestMatcher()
	l.Create("A1", decimal.RequireFromString("10"), decimal.RequireFromString("0.1"))

	first := m.Match(context.Background(), decimal.RequireFromString("0.1"), "sig-1")
	require.True(t, first.Matched)

	second := m.Match(context.Background(), decimal.RequireFromString("0.1"), "sig-1")
	require.False(t, second.Matched, "a settled entry must not match again")
}

func TestMatchPicksEarliestCreated(t *testing.T) {
	m, l, _ := newTestMatcher()
	older := l.Create("A1", decimal.RequireFromString("10"), decimal.RequireFromString("0.1"))
	time.Sleep(2 * time.Millisecond)
	l.Create("A2", decimal.RequireFromString("10"), decimal.RequireFromString("0.1"))

	res := m.Match(context.Background(), decimal.RequireFromString("0.1"), "sig-1")
	require.True(t, res.Matched)
	require.Equal(t, "A1", res.OrderID)
	require.Equal(t, older.PaymentID, res.PaymentID)

	// the newer entry is still pending
	require.NotNil(t, l.FindByOrderID("A2"))
	require.Nil(t, l.FindByOrderID("A1"))
}

func TestMatchProceedsWhenOrderUpdateFails(t *testing.T) {
	m, l, orders := newTestMatcher()
	orders.err = errors.New("order store down")
	l.Create("A1", decimal.RequireFromString("10"), decimal.RequireFromString("0.1"))

	// Accepted-lossy policy: the update failure is logged and dropped, the
	// entry is still consumed so it cannot settle twice.
	res := m.Match(context.Background(), decimal.RequireFromString("0.1"), "sig-1")
	require.True(t, res.Matched)
	require.Equal(t, 0, l.Len())

	again := m.Match(context.Background(), decimal.RequireFromString("0.1"), "sig-1")
	require.False(t, again.Matched)
}

func TestMatchConcurrentDeliveriesSettleOnce(t *testing.T) {
	m, l, orders := newTestMatcher()
	// a slow order store widens the window between scan and remove
	orders.delay = 50 * time.Millisecond
	l.Create("A1", decimal.RequireFromString("10"), decimal.RequireFromString("0.1"))

	// the stream session and the reconcile poll can both observe the same
	// transaction; only one delivery may consummate the entry
	results := make([]MatchResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Match(context.Background(), decimal.RequireFromString("0.1"), "sig-dup")
		}(i)
	}
	wg.Wait()

	matched := 0
	for _, res := range results {
		if res.Matched {
			matched++
		}
	}
	require.Equal(t, 1, matched)
	require.Equal(t, 1, orders.callCount())
	require.Equal(t, 0, l.Len())
}

func TestMatchEmptyLedger(t *testing.T) {
	m, _, orders := newTestMatcher()
	res := m.Match(context.Background(), decimal.RequireFromString("0.1"), "sig-1")
	require.False(t, res.Matched)
	require.Equal(t, 0, orders.callCount())
}
