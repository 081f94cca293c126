package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client updates order status in the external order store. Orders themselves are
// owned by that service; this side only issues the paid transition.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type markPaidRequest struct {
	Status               string `json:"status"`
	TransactionSignature string `json:"transactionSignature"`
	PaidAt               string `json:"paidAt"`
}

func (c *Client) MarkPaid(ctx context.Context, orderID, signature string, paidAt time.Time) error {
	body, err := json.Marshal(markPaidRequest{
		Status:               "paid",
		TransactionSignature: signature,
		PaidAt:               paidAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/orders/" + url.PathEscape(orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		trimmed := strings.TrimSpace(string(msg))
		if trimmed != "" {
			return fmt.Errorf("order store status %d: %s", resp.StatusCode, trimmed)
		}
		return fmt.Errorf("order store status %d", resp.StatusCode)
	}
	return nil
}
