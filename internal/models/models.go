package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingPayment is one outstanding payment request. NativeAmount is frozen at
// creation; later rate changes never alter it.
type PendingPayment struct {
	PaymentID    string
	OrderID      string
	FiatAmount   decimal.Decimal
	NativeAmount decimal.Decimal
	CreatedAt    time.Time
}

// Settlement records a matched incoming transfer.
type Settlement struct {
	Signature  string
	OrderID    string
	PaymentID  string
	Amount     decimal.Decimal
	FiatAmount decimal.Decimal
	PaidAt     time.Time
	CreatedAt  time.Time
}
