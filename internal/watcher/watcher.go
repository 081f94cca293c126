package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noelye/agentic-pos/internal/chain"
	"github.com/noelye/agentic-pos/internal/payments"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateFatal:
		return "fatal"
	default:
		return "disconnected"
	}
}

// Sink receives candidate amounts extracted from oracle events.
type Sink interface {
	Match(ctx context.Context, received decimal.Decimal, signature string) payments.MatchResult
}

// Watcher owns the streaming subscription to the chain oracle for one merchant
// account. It reads messages one at a time, discards events that predate the
// subscription, and feeds candidates through the filter into the matcher.
// Reconnects back off exponentially; after MaxAttempts the session goes fatal
// and stays down until its owner restarts it.
type Watcher struct {
	Endpoints    []string
	Merchant     string
	Commitment   string
	Sink         Sink
	RPC          *chain.RPCClient
	PollInterval time.Duration
	Keepalive    time.Duration
	MaxAttempts  int
	Log          *zap.Logger

	mu          sync.Mutex
	state       State
	startedAt   time.Time
	attempts    int
	running     bool
	cancel      context.CancelFunc
	endpointIdx int

	createdAt time.Time
	now       func() time.Time
}

func New(endpoints []string, merchant, commitment string, sink Sink, log *zap.Logger) *Watcher {
	return &Watcher{
		Endpoints:   endpoints,
		Merchant:    merchant,
		Commitment:  commitment,
		Sink:        sink,
		Keepalive:   30 * time.Second,
		MaxAttempts: 10,
		Log:         log,
		createdAt:   time.Now().UTC(),
		now:         time.Now,
	}
}

// Start launches the session. Calling it while the session is already running
// is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.attempts = 0
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	go w.run(runCtx)
	if w.RPC != nil && w.PollInterval > 0 {
		go w.runPoll(runCtx)
	}
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.running = false
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Degraded reports whether live settlement detection has stopped for good.
func (w *Watcher) Degraded() bool {
	return w.State() == StateFatal
}

func (w *Watcher) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			w.setState(StateDisconnected)
			return
		default:
		}

		w.setState(StateConnecting)
		endpoint := w.nextEndpoint()
		client := chain.NewWSClient(endpoint)
		if err := client.Connect(ctx); err != nil {
			w.Log.Warn("oracle connect failed", zap.String("endpoint", endpoint), zap.Error(err))
			if !w.scheduleRetry(ctx) {
				return
			}
			continue
		}
		if err := client.Subscribe(w.Merchant, w.Commitment); err != nil {
			w.Log.Warn("oracle subscribe failed", zap.String("endpoint", endpoint), zap.Error(err))
			client.Close()
			if !w.scheduleRetry(ctx) {
				return
			}
			continue
		}
		w.Log.Info("oracle stream open", zap.String("endpoint", endpoint))

		w.session(ctx, client)
		w.setState(StateDisconnected)
		if !w.scheduleRetry(ctx) {
			return
		}
	}
}

// session reads until the socket drops. Messages are processed strictly in
// arrival order; there is no concurrent handling of two events from one socket.
func (w *Watcher) session(ctx context.Context, client *chain.WSClient) {
	stopPing := make(chan struct{})
	defer close(stopPing)
	defer client.Close()

	// unblock the read when the owner stops the session
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-stopPing:
		}
	}()

	keepaliveRunning := false
	for {
		msg, err := client.Read()
		if err != nil {
			if ctx.Err() == nil {
				w.Log.Warn("oracle read failed", zap.Error(err))
			}
			return
		}

		kind, ev, err := chain.ParseMessage(msg)
		if err != nil {
			w.Log.Debug("oracle message dropped", zap.Error(err))
			continue
		}

		switch kind {
		case chain.KindSubscribeAck:
			w.markSubscribed()
			// an oracle replaying the ack must not stack a second pinger
			if !keepaliveRunning {
				keepaliveRunning = true
				go w.keepalive(client, stopPing)
			}
		case chain.KindTransaction:
			w.handleTransaction(ctx, ev)
		case chain.KindAccount, chain.KindOther:
			// Keepalive replies and account snapshots carry no transfer deltas.
		}
	}
}

func (w *Watcher) handleTransaction(ctx context.Context, ev *chain.TxEvent) {
	w.mu.Lock()
	subscribed := w.state == StateSubscribed
	startedAt := w.startedAt
	w.mu.Unlock()
	if !subscribed {
		return
	}

	// Events predating the subscription are history, not settlements. An event
	// with no chain timestamp cannot be placed after the cutoff either.
	ts := ev.Time()
	if ts.IsZero() || ts.Before(startedAt) {
		w.Log.Debug("stale event discarded",
			zap.String("signature", ev.Signature),
			zap.Time("block_time", ts))
		return
	}

	for _, amount := range payments.ExtractReceivedAmounts(ev, w.Merchant, w.Log) {
		w.Sink.Match(ctx, amount, ev.Signature)
	}
}

func (w *Watcher) markSubscribed() {
	w.mu.Lock()
	w.state = StateSubscribed
	w.startedAt = w.now().UTC()
	w.attempts = 0
	w.mu.Unlock()
	w.Log.Info("oracle subscription confirmed", zap.String("merchant", w.Merchant))
}

func (w *Watcher) keepalive(client *chain.WSClient, stop <-chan struct{}) {
	ticker := time.NewTicker(w.Keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				w.Log.Debug("keepalive ping failed", zap.Error(err))
				return
			}
		}
	}
}

// scheduleRetry sleeps out the backoff for the next attempt. It returns false
// once the attempt budget is exhausted or the context is cancelled.
func (w *Watcher) scheduleRetry(ctx context.Context) bool {
	w.mu.Lock()
	w.attempts++
	attempt := w.attempts
	w.mu.Unlock()

	if attempt > w.MaxAttempts {
		w.setState(StateFatal)
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.Log.Error("reconnect attempts exhausted, settlement monitoring degraded",
			zap.Int("attempts", attempt-1))
		return false
	}

	delay := BackoffDelay(attempt)
	w.Log.Info("oracle reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		w.setState(StateDisconnected)
		return false
	case <-timer.C:
		return true
	}
}

// BackoffDelay is min(1000 * 2^attempt, 30000) milliseconds.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Duration(1000*(1<<attempt)) * time.Millisecond
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Watcher) nextEndpoint() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ep := w.Endpoints[w.endpointIdx%len(w.Endpoints)]
	w.endpointIdx++
	return ep
}
