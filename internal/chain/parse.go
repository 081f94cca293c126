package chain

import (
	"encoding/json"
	"errors"
)

type MessageKind int

const (
	KindOther MessageKind = iota
	KindSubscribeAck
	KindTransaction
	KindAccount
)

const (
	methodTransactionNotification = "transactionNotification"
	methodAccountNotification     = "accountNotification"
)

// subscribeID is the request id used for the subscribe call; responses carrying it
// are subscription acknowledgments, everything else with a bare result is a
// keepalive reply.
const subscribeID = 1

// ParseMessage classifies one inbound oracle message. A transaction notification
// yields the decoded event; partial or malformed payloads are not an error for the
// caller, they come back as KindOther.
func ParseMessage(msg []byte) (MessageKind, *TxEvent, error) {
	var env struct {
		ID     *int64          `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Params json.RawMessage `json:"params"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		return KindOther, nil, err
	}
	if env.Error != nil {
		return KindOther, nil, errors.New(env.Error.Message)
	}

	if env.Method == "" {
		if env.ID != nil && *env.ID == subscribeID && len(env.Result) > 0 {
			return KindSubscribeAck, nil, nil
		}
		return KindOther, nil, nil
	}

	switch env.Method {
	case methodTransactionNotification:
		var params struct {
			Subscription int64   `json:"subscription"`
			Result       TxEvent `json:"result"`
		}
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return KindOther, nil, err
		}
		return KindTransaction, &params.Result, nil
	case methodAccountNotification:
		// Carries a bare balance, not a delta attributable to one transfer.
		return KindAccount, nil, nil
	default:
		return KindOther, nil, nil
	}
}
