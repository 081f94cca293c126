package chain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LamportsPerNative is the fixed unit conversion: 1 native unit = 10^9 lamports.
const LamportsPerNative = 1_000_000_000

// NativeTransfer is one entry of an enhanced-transaction transfer list. Amount is
// reported by the oracle already in native-asset decimal units.
type NativeTransfer struct {
	FromUserAccount string          `json:"fromUserAccount"`
	ToUserAccount   string          `json:"toUserAccount"`
	Amount          decimal.Decimal `json:"amount"`
}

// TxEvent is a transaction event as delivered by the oracle, in either of the two
// shapes the filter understands: a transfer list, or a full balance snapshot.
type TxEvent struct {
	Signature       string           `json:"signature"`
	Slot            int64            `json:"slot"`
	BlockTime       int64            `json:"blockTime"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	Transaction     *TxMessage       `json:"transaction"`
	Meta            *TxMeta          `json:"meta"`
}

type TxMessage struct {
	Message struct {
		AccountKeys []string `json:"accountKeys"`
	} `json:"message"`
}

type TxMeta struct {
	PreBalances  []uint64 `json:"preBalances"`
	PostBalances []uint64 `json:"postBalances"`
}

// Time returns the chain-reported timestamp, zero if the oracle omitted it.
func (e *TxEvent) Time() time.Time {
	if e.BlockTime <= 0 {
		return time.Time{}
	}
	return time.Unix(e.BlockTime, 0).UTC()
}
