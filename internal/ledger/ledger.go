package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noelye/agentic-pos/internal/models"
)

// Ledger is the in-memory table of outstanding payment requests. It is not
// persisted: entries created before a crash are orphaned and show up as
// "unknown" on status queries.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*models.PendingPayment
	now     func() time.Time
}

func New() *Ledger {
	return &Ledger{
		entries: make(map[string]*models.PendingPayment),
		now:     time.Now,
	}
}

// Create inserts a new pending payment and returns it. The native amount is
// frozen here; later rate changes never alter the entry.
func (l *Ledger) Create(orderID string, fiat, native decimal.Decimal) *models.PendingPayment {
	entry := &models.PendingPayment{
		PaymentID:    uuid.NewString(),
		OrderID:      orderID,
		FiatAmount:   fiat,
		NativeAmount: native,
		CreatedAt:    l.now().UTC(),
	}
	l.mu.Lock()
	l.entries[entry.PaymentID] = entry
	l.mu.Unlock()
	return entry
}

func (l *Ledger) FindByOrderID(orderID string) *models.PendingPayment {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if entry.OrderID == orderID {
			return entry
		}
	}
	return nil
}

func (l *Ledger) Remove(paymentID string) {
	l.mu.Lock()
	delete(l.entries, paymentID)
	l.mu.Unlock()
}

// All returns a snapshot of the pending entries. Iteration order is unspecified.
func (l *Ledger) All() []*models.PendingPayment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.PendingPayment, 0, len(l.entries))
	for _, entry := range l.entries {
		out = append(out, entry)
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
