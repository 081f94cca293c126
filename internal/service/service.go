package service

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/url"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noelye/agentic-pos/internal/ledger"
	"github.com/noelye/agentic-pos/internal/models"
	"github.com/noelye/agentic-pos/internal/pricing"
)

var (
	ErrMissingOrderID = errors.New("missing order id")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrUnknownOrder   = errors.New("unknown order")
)

// Service is the payment-creation and status boundary. Client input errors are
// rejected here, before anything reaches the ledger.
type Service struct {
	Pricing       *pricing.Oracle
	Ledger        *ledger.Ledger
	Merchant      string
	MerchantLabel string
	Log           *zap.Logger
}

type CreateResult struct {
	OrderID         string
	PaymentID       string
	MerchantAddress string
	PaymentURI      string
	NativeAmount    decimal.Decimal
	FiatAmount      decimal.Decimal
	Rate            decimal.Decimal
}

type StatusResult struct {
	OrderID      string
	Pending      bool
	FiatAmount   decimal.Decimal
	NativeAmount decimal.Decimal
	Rate         decimal.Decimal
}

func (s *Service) Create(ctx context.Context, orderID string, fiat decimal.Decimal) (*CreateResult, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	if fiat.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	rate := s.Pricing.Rate(ctx)
	native := fiat.Div(rate).Round(6)
	entry := s.Ledger.Create(orderID, fiat, native)

	s.Log.Info("payment created",
		zap.String("order_id", orderID),
		zap.String("payment_id", entry.PaymentID),
		zap.String("fiat", fiat.String()),
		zap.String("native", native.String()))

	return &CreateResult{
		OrderID:         orderID,
		PaymentID:       entry.PaymentID,
		MerchantAddress: s.Merchant,
		PaymentURI:      s.paymentURI(orderID, native),
		NativeAmount:    native,
		FiatAmount:      fiat,
		Rate:            rate,
	}, nil
}

// Status reports pending for entries the ledger still holds and unknown for
// everything else, whether never created, already settled, or lost to a restart.
func (s *Service) Status(ctx context.Context, orderID string) StatusResult {
	entry := s.Ledger.FindByOrderID(orderID)
	if entry == nil {
		return StatusResult{OrderID: orderID}
	}
	return StatusResult{
		OrderID:      orderID,
		Pending:      true,
		FiatAmount:   entry.FiatAmount,
		NativeAmount: entry.NativeAmount,
		Rate:         s.Pricing.Rate(ctx),
	}
}

// QRCode renders the payment URI for a still-pending order as a PNG.
func (s *Service) QRCode(orderID string) ([]byte, error) {
	entry := s.Ledger.FindByOrderID(orderID)
	if entry == nil {
		return nil, ErrUnknownOrder
	}
	return renderQR(s.paymentURI(orderID, entry.NativeAmount))
}

// Pending exposes the ledger entry for an order, for display surfaces.
func (s *Service) Pending(orderID string) *models.PendingPayment {
	return s.Ledger.FindByOrderID(orderID)
}

func (s *Service) paymentURI(orderID string, native decimal.Decimal) string {
	label := url.PathEscape(s.MerchantLabel + " Order " + orderID)
	message := url.PathEscape("Payment for order " + orderID)
	return "solana:" + s.Merchant +
		"?amount=" + native.String() +
		"&label=" + label +
		"&message=" + message
}

func renderQR(uri string) ([]byte, error) {
	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	code, err = barcode.Scale(code, 256, 256)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
