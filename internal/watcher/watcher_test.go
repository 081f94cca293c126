package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noelye/agentic-pos/internal/chain"
	"github.com/noelye/agentic-pos/internal/payments"
)

const merchant = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

type recordingSink struct {
	mu      sync.Mutex
	amounts []decimal.Decimal
}

func (r *recordingSink) Match(ctx context.Context, received decimal.Decimal, signature string) payments.MatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.amounts = append(r.amounts, received)
	return payments.MatchResult{}
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.amounts)
}

func subscribedWatcher(sink Sink, startedAt time.Time) *Watcher {
	w := New([]string{"ws://unused"}, merchant, "confirmed", sink, zap.NewNop())
	w.state = StateSubscribed
	w.startedAt = startedAt
	return w
}

func merchantEvent(blockTime time.Time) *chain.TxEvent {
	ev := &chain.TxEvent{
		Signature:   "sig-1",
		BlockTime:   blockTime.Unix(),
		Transaction: &chain.TxMessage{},
		Meta: &chain.TxMeta{
			PreBalances:  []uint64{1_000_000_000},
			PostBalances: []uint64{1_100_000_000},
		},
	}
	ev.Transaction.Message.AccountKeys = []string{merchant}
	return ev
}

func TestBackoffSequence(t *testing.T) {
	want := []time.Duration{
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond,
	}
	for i, expected := range want {
		require.Equal(t, expected, BackoffDelay(i+1), "attempt %d", i+1)
	}
	require.Equal(t, 30*time.Second, BackoffDelay(9))
}

func TestStaleEventsDiscarded(t *testing.T) {
	sink := &recordingSink{}
	startedAt := time.Now().UTC()
	w := subscribedWatcher(sink, startedAt)

	// predates the subscription: never reaches the matcher even though the
	// amount would otherwise match
	w.handleTransaction(context.Background(), merchantEvent(startedAt.Add(-time.Minute)))
	require.Equal(t, 0, sink.count())

	w.handleTransaction(context.Background(), merchantEvent(startedAt.Add(time.Minute)))
	require.Equal(t, 1, sink.count())
}

func TestEventWithoutTimestampDiscarded(t *testing.T) {
	sink := &recordingSink{}
	w := subscribedWatcher(sink, time.Now().UTC())

	ev := merchantEvent(time.Now().Add(time.Minute))
	ev.BlockTime = 0
	w.handleTransaction(context.Background(), ev)
	require.Equal(t, 0, sink.count())
}

func TestEventsIgnoredBeforeSubscribed(t *testing.T) {
	sink := &recordingSink{}
	w := New([]string{"ws://unused"}, merchant, "confirmed", sink, zap.NewNop())

	w.handleTransaction(context.Background(), merchantEvent(time.Now().Add(time.Minute)))
	require.Equal(t, 0, sink.count())
}

func TestStartIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	w := New([]string{"ws://127.0.0.1:1"}, merchant, "confirmed", sink, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// a connect request while a session is running is a no-op
	w.mu.Lock()
	w.running = true
	w.mu.Unlock()
	w.Start(ctx)
	require.Nil(t, w.cancel)

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.Start(ctx)
	require.NotNil(t, w.cancel)
	w.Stop()
}

func TestMarkSubscribedResetsAttempts(t *testing.T) {
	w := New([]string{"ws://unused"}, merchant, "confirmed", &recordingSink{}, zap.NewNop())
	w.attempts = 4
	w.markSubscribed()

	require.Equal(t, StateSubscribed, w.State())
	require.Equal(t, 0, w.attempts)
	require.False(t, w.startedAt.IsZero())
}

func TestFatalAfterMaxAttempts(t *testing.T) {
	w := New([]string{"ws://unused"}, merchant, "confirmed", &recordingSink{}, zap.NewNop())
	w.MaxAttempts = 3
	w.attempts = 3

	ok := w.scheduleRetry(context.Background())
	require.False(t, ok)
	require.Equal(t, StateFatal, w.State())
	require.True(t, w.Degraded())
}
