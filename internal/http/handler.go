package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noelye/agentic-pos/internal/service"
	"github.com/noelye/agentic-pos/internal/store"
	"github.com/noelye/agentic-pos/internal/watcher"
)

type EventPublisher interface {
	Publish(event any)
}

type Handler struct {
	Payments *service.Service
	Watcher  *watcher.Watcher
	Journal  *store.Store
	Events   EventPublisher
}

func NewHandler(payments *service.Service, w *watcher.Watcher, journal *store.Store, events EventPublisher) *Handler {
	return &Handler{Payments: payments, Watcher: w, Journal: journal, Events: events}
}

type createPaymentRequest struct {
	OrderID    string           `json:"orderId"`
	FiatAmount *decimal.Decimal `json:"fiatAmount"`
	// The web client historically sends "amount".
	Amount *decimal.Decimal `json:"amount"`
}

type createPaymentResponse struct {
	OrderID         string          `json:"orderId"`
	PaymentID       string          `json:"paymentId"`
	MerchantAddress string          `json:"merchantAddress"`
	PaymentURI      string          `json:"paymentUri"`
	NativeAmount    decimal.Decimal `json:"nativeAmount"`
	FiatAmount      decimal.Decimal `json:"fiatAmount"`
	Rate            decimal.Decimal `json:"rate"`
}

type statusResponse struct {
	OrderID      string           `json:"orderId"`
	Status       string           `json:"status"`
	FiatAmount   *decimal.Decimal `json:"fiatAmount,omitempty"`
	NativeAmount *decimal.Decimal `json:"nativeAmount,omitempty"`
	Rate         *decimal.Decimal `json:"rate,omitempty"`
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	fiat := decimal.Zero
	if req.FiatAmount != nil {
		fiat = *req.FiatAmount
	} else if req.Amount != nil {
		fiat = *req.Amount
	}

	result, err := h.Payments.Create(r.Context(), req.OrderID, fiat)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingOrderID):
			writeError(w, http.StatusBadRequest, "order id is required")
		case errors.Is(err, service.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "amount must be positive")
		default:
			writeError(w, http.StatusInternalServerError, "create payment failed")
		}
		return
	}

	if h.Events != nil {
		h.Events.Publish(map[string]any{
			"type":         "payment.created",
			"orderId":      result.OrderID,
			"paymentId":    result.PaymentID,
			"nativeAmount": result.NativeAmount.String(),
		})
	}

	writeJSON(w, http.StatusOK, createPaymentResponse{
		OrderID:         result.OrderID,
		PaymentID:       result.PaymentID,
		MerchantAddress: result.MerchantAddress,
		PaymentURI:      result.PaymentURI,
		NativeAmount:    result.NativeAmount,
		FiatAmount:      result.FiatAmount,
		Rate:            result.Rate,
	})
}

func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	status := h.Payments.Status(r.Context(), orderID)
	resp := statusResponse{OrderID: orderID, Status: "unknown"}
	if status.Pending {
		resp.Status = "pending"
		resp.FiatAmount = &status.FiatAmount
		resp.NativeAmount = &status.NativeAmount
		resp.Rate = &status.Rate
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) PaymentQR(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	img, err := h.Payments.QRCode(orderID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownOrder) {
			writeError(w, http.StatusNotFound, "no pending payment for order")
			return
		}
		writeError(w, http.StatusInternalServerError, "qr render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

type settlementResponse struct {
	Signature string `json:"signature"`
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Amount    string `json:"amount"`
	Fiat      string `json:"fiatAmount"`
	PaidAt    string `json:"paidAt"`
}

func (h *Handler) Settlements(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		writeError(w, http.StatusNotFound, "settlement journal disabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	list, err := h.Journal.ListRecent(ctx, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list settlements failed")
		return
	}

	out := make([]settlementResponse, 0, len(list))
	for _, s := range list {
		out = append(out, settlementResponse{
			Signature: s.Signature,
			OrderID:   s.OrderID,
			PaymentID: s.PaymentID,
			Amount:    s.Amount.String(),
			Fiat:      s.FiatAmount.String(),
			PaidAt:    s.PaidAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.Watcher != nil {
		resp["monitor"] = h.Watcher.State().String()
		resp["degraded"] = h.Watcher.Degraded()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
