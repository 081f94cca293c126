package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noelye/agentic-pos/internal/ledger"
	"github.com/noelye/agentic-pos/internal/pricing"
	"github.com/noelye/agentic-pos/internal/service"
)

const merchant = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price":100}`))
	}))
	t.Cleanup(priceSrv.Close)

	svc := &service.Service{
		Pricing:       pricing.New(priceSrv.URL, time.Minute, pricing.FallbackRate, zap.NewNop()),
		Ledger:        ledger.New(),
		Merchant:      merchant,
		MerchantLabel: "Agentic POS",
		Log:           zap.NewNop(),
	}
	handler := NewHandler(svc, nil, nil, nil)
	srv := httptest.NewServer(NewServer(handler, nil).Router)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAndStatus(t *testing.T) {
	api := newTestAPI(t)

	resp := postJSON(t, api.URL+"/create", `{"orderId":"A1","fiatAmount":10}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decodeBody(t, resp)
	require.Equal(t, "A1", created["orderId"])
	require.NotEmpty(t, created["paymentId"])
	require.Equal(t, merchant, created["merchantAddress"])
	require.Equal(t, "0.1", created["nativeAmount"])
	require.Contains(t, created["paymentUri"], "solana:"+merchant)

	statusResp, err := http.Get(api.URL + "/status/A1")
	require.NoError(t, err)
	status := decodeBody(t, statusResp)
	require.Equal(t, "pending", status["status"])
	require.Equal(t, "0.1", status["nativeAmount"])

	unknownResp, err := http.Get(api.URL + "/status/other")
	require.NoError(t, err)
	unknown := decodeBody(t, unknownResp)
	require.Equal(t, "unknown", unknown["status"])
	require.NotContains(t, unknown, "nativeAmount")
}

func TestCreateAcceptsLegacyAmountField(t *testing.T) {
	api := newTestAPI(t)

	resp := postJSON(t, api.URL+"/create", `{"orderId":"A2","amount":12.99}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decodeBody(t, resp)
	require.Equal(t, "0.1299", created["nativeAmount"])
}

func TestCreateRejectsClientErrors(t *testing.T) {
	api := newTestAPI(t)

	resp := postJSON(t, api.URL+"/create", `not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, api.URL+"/create", `{"fiatAmount":10}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, api.URL+"/create", `{"orderId":"A1","fiatAmount":0}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, api.URL+"/create", `{"orderId":"A1"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestQRRoute(t *testing.T) {
	api := newTestAPI(t)

	resp := postJSON(t, api.URL+"/create", `{"orderId":"A1","fiatAmount":10}`)
	resp.Body.Close()

	qrResp, err := http.Get(api.URL + "/qr/A1")
	require.NoError(t, err)
	defer qrResp.Body.Close()
	require.Equal(t, http.StatusOK, qrResp.StatusCode)
	require.Equal(t, "image/png", qrResp.Header.Get("Content-Type"))

	missing, err := http.Get(api.URL + "/qr/none")
	require.NoError(t, err)
	missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	resp, err := http.Get(api.URL + "/health")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	require.Equal(t, "ok", body["status"])
}

func TestSettlementsDisabled(t *testing.T) {
	api := newTestAPI(t)

	resp, err := http.Get(api.URL + "/settlements")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
