package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RPCClient queries the oracle's enhanced-transactions endpoint. Used by the
// optional poll reconciliation pass; the subscription stream is the primary path.
type RPCClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRPCClient(baseURL, apiKey string) *RPCClient {
	return &RPCClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// RecentTransactions returns the latest transactions touching the given address,
// newest first, in the same event shape the subscription stream delivers.
func (c *RPCClient) RecentTransactions(ctx context.Context, address string, limit int) ([]TxEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	endpoint := c.baseURL + "/v0/addresses/" + url.PathEscape(address) + "/transactions"
	values := url.Values{}
	values.Set("limit", strconv.Itoa(limit))
	if c.apiKey != "" {
		values.Set("api-key", c.apiKey)
	}
	endpoint += "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return nil, fmt.Errorf("oracle http status %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("oracle http status %d", resp.StatusCode)
	}

	var out []TxEvent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
