package payments

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noelye/agentic-pos/internal/chain"
)

var lamportsPerNative = decimal.NewFromInt(chain.LamportsPerNative)

// ExtractReceivedAmounts yields the native-asset amounts the merchant received in
// one oracle event. Two shapes are understood: a transfer list (amounts already in
// native units) and a full balance snapshot (lamport deltas). Malformed or partial
// events yield nothing; they are not an error.
func ExtractReceivedAmounts(ev *chain.TxEvent, merchant string, log *zap.Logger) []decimal.Decimal {
	if ev == nil {
		return nil
	}

	if len(ev.NativeTransfers) > 0 {
		var out []decimal.Decimal
		for _, t := range ev.NativeTransfers {
			if t.ToUserAccount != merchant {
				continue
			}
			if t.Amount.Sign() <= 0 {
				continue
			}
			out = append(out, t.Amount)
		}
		return out
	}

	if ev.Transaction == nil || ev.Meta == nil {
		log.Debug("event without transfers or balances", zap.String("signature", ev.Signature))
		return nil
	}

	keys := ev.Transaction.Message.AccountKeys
	idx := -1
	for i, key := range keys {
		if key == merchant {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if idx >= len(ev.Meta.PreBalances) || idx >= len(ev.Meta.PostBalances) {
		log.Debug("balance snapshot shorter than account list", zap.String("signature", ev.Signature))
		return nil
	}

	pre := decimal.NewFromUint64(ev.Meta.PreBalances[idx])
	post := decimal.NewFromUint64(ev.Meta.PostBalances[idx])
	delta := post.Sub(pre)
	// Outgoing transfers and zero deltas are not received payments.
	if delta.Sign() <= 0 {
		return nil
	}
	return []decimal.Decimal{delta.Div(lamportsPerNative)}
}
