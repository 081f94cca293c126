package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FallbackRate is used when no rate has ever been fetched and the provider is
// unreachable. Price unavailability must not block order creation.
var FallbackRate = decimal.NewFromInt(100)

// nativePrecision is the number of fractional digits a native amount carries.
const nativePrecision = 6

// Oracle caches the fiat-per-native exchange rate with a TTL. The mutex is held
// across the refresh so concurrent callers collapse onto a single network fetch.
type Oracle struct {
	url      string
	ttl      time.Duration
	fallback decimal.Decimal
	client   *http.Client
	log      *zap.Logger

	mu          sync.Mutex
	rate        decimal.Decimal
	lastFetched time.Time
	now         func() time.Time
}

func New(url string, ttl time.Duration, fallback decimal.Decimal, log *zap.Logger) *Oracle {
	if fallback.Sign() <= 0 {
		fallback = FallbackRate
	}
	return &Oracle{
		url:      url,
		ttl:      ttl,
		fallback: fallback,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
		now:      time.Now,
	}
}

// Rate returns the cached rate if fresh, refreshing it otherwise. It never fails:
// on refresh failure the stale rate is reused if present, else the fallback.
func (o *Oracle) Rate(ctx context.Context) decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.rate.Sign() > 0 && o.now().Sub(o.lastFetched) < o.ttl {
		return o.rate
	}

	rate, err := o.fetch(ctx)
	if err != nil {
		o.log.Warn("exchange rate fetch failed", zap.Error(err))
		if o.rate.Sign() > 0 {
			return o.rate
		}
		return o.fallback
	}

	o.rate = rate
	o.lastFetched = o.now()
	return o.rate
}

// Convert maps a fiat amount to native units at the current rate, rounded to 6
// fractional digits, half away from zero.
func (o *Oracle) Convert(ctx context.Context, fiat decimal.Decimal) decimal.Decimal {
	return fiat.Div(o.Rate(ctx)).Round(nativePrecision)
}

func (o *Oracle) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("price http status %d", resp.StatusCode)
	}

	var body struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, err
	}
	if body.Price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("price is not positive: %s", body.Price)
	}
	return body.Price, nil
}
