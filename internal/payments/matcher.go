package payments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noelye/agentic-pos/internal/ledger"
	"github.com/noelye/agentic-pos/internal/models"
)

// Tolerance is the maximum difference, inclusive, between an expected native
// amount and an observed transfer for the two to be considered the same payment.
var Tolerance = decimal.RequireFromString("0.000001")

type OrderUpdater interface {
	MarkPaid(ctx context.Context, orderID, signature string, paidAt time.Time) error
}

type SettlementJournal interface {
	InsertSettlement(ctx context.Context, s *models.Settlement) error
}

type EventPublisher interface {
	Publish(event any)
}

type MatchResult struct {
	Matched   bool
	OrderID   string
	PaymentID string
}

// Matcher consumes candidate received amounts and settles pending payments at
// most once each. Journal and Events are optional.
type Matcher struct {
	Ledger  *ledger.Ledger
	Orders  OrderUpdater
	Journal SettlementJournal
	Events  EventPublisher
	Log     *zap.Logger

	// mu serializes the scan-update-remove sequence. The stream session and
	// the reconcile poll feed the same matcher and can observe the same
	// transaction; without this, both would see the entry pending.
	mu  sync.Mutex
	now func() time.Time
}

func NewMatcher(l *ledger.Ledger, orders OrderUpdater, log *zap.Logger) *Matcher {
	return &Matcher{Ledger: l, Orders: orders, Log: log, now: time.Now}
}

// Match scans the pending ledger for an entry within Tolerance of the received
// amount. Entries are visited oldest-first (then by payment id) so a tie between
// two entries at the same amount resolves deterministically. On a hit the order
// store is notified first, then the entry is removed; a failed notification is
// logged and dropped without rollback, so the entry cannot match twice.
func (m *Matcher) Match(ctx context.Context, received decimal.Decimal, signature string) MatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.Ledger.All()
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].PaymentID < entries[j].PaymentID
	})

	for _, entry := range entries {
		if received.Sub(entry.NativeAmount).Abs().Cmp(Tolerance) > 0 {
			continue
		}

		paidAt := m.now().UTC()
		if err := m.Orders.MarkPaid(ctx, entry.OrderID, signature, paidAt); err != nil {
			// Accepted-lossy: the order store missed this settlement, but the
			// payment itself is done and must not be matched again.
			m.Log.Warn("order status update failed",
				zap.String("order_id", entry.OrderID),
				zap.String("signature", signature),
				zap.Error(err))
		}

		if m.Journal != nil {
			s := &models.Settlement{
				Signature:  signature,
				OrderID:    entry.OrderID,
				PaymentID:  entry.PaymentID,
				Amount:     received,
				FiatAmount: entry.FiatAmount,
				PaidAt:     paidAt,
			}
			if err := m.Journal.InsertSettlement(ctx, s); err != nil {
				m.Log.Warn("settlement journal insert failed",
					zap.String("signature", signature), zap.Error(err))
			}
		}
		if m.Events != nil {
			m.Events.Publish(map[string]any{
				"type":      "order.paid",
				"orderId":   entry.OrderID,
				"paymentId": entry.PaymentID,
				"signature": signature,
				"amount":    received.String(),
				"paidAt":    paidAt.Format(time.RFC3339),
			})
		}

		m.Ledger.Remove(entry.PaymentID)
		m.Log.Info("payment settled",
			zap.String("order_id", entry.OrderID),
			zap.String("payment_id", entry.PaymentID),
			zap.String("amount", received.String()),
			zap.String("signature", signature))
		return MatchResult{Matched: true, OrderID: entry.OrderID, PaymentID: entry.PaymentID}
	}

	// Unrelated transfers to the merchant account land here; not an error.
	m.Log.Debug("no pending payment matches received amount",
		zap.String("amount", received.String()),
		zap.String("signature", signature))
	return MatchResult{}
}
