package watcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noelye/agentic-pos/internal/payments"
)

// runPoll is a periodic reconciliation pass over the oracle's recent-transactions
// endpoint, catching settlements the stream missed across a reconnect gap. It is
// only active when an RPC endpoint is configured.
func (w *Watcher) runPoll(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context) {
	events, err := w.RPC.RecentTransactions(ctx, w.Merchant, 10)
	if err != nil {
		w.Log.Warn("reconcile poll failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	cutoff := w.startedAt
	w.mu.Unlock()
	if cutoff.IsZero() {
		cutoff = w.createdAt
	}

	for i := range events {
		ev := &events[i]
		ts := ev.Time()
		if ts.IsZero() || ts.Before(cutoff) {
			continue
		}
		for _, amount := range payments.ExtractReceivedAmounts(ev, w.Merchant, w.Log) {
			w.Sink.Match(ctx, amount, ev.Signature)
		}
	}
}
