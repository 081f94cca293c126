package chain

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

type WSClient struct {
	Endpoint string
	Conn     *websocket.Conn
}

func NewWSClient(endpoint string) *WSClient {
	return &WSClient{Endpoint: endpoint}
}

func (c *WSClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.Endpoint, nil)
	if err != nil {
		return err
	}
	c.Conn = conn
	return nil
}

func (c *WSClient) Close() {
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

// Subscribe requests transaction notifications for every transaction that
// includes the merchant account, at the given commitment level.
func (c *WSClient) Subscribe(merchant, commitment string) error {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      subscribeID,
		"method":  "transactionSubscribe",
		"params": []any{
			map[string]any{
				"accountInclude": []string{merchant},
			},
			map[string]any{
				"commitment": commitment,
			},
		},
	}
	return c.Conn.WriteJSON(payload)
}

func (c *WSClient) Read() ([]byte, error) {
	_, msg, err := c.Conn.ReadMessage()
	return msg, err
}

// Ping keeps idle connections alive; stream providers drop sockets that stay
// silent past their idle timeout.
func (c *WSClient) Ping() error {
	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}
