package chain

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// ValidateAddress checks that s is a base58-encoded 32-byte public key.
func ValidateAddress(s string) error {
	if s == "" {
		return errors.New("address is empty")
	}
	raw := base58.Decode(s)
	if len(raw) != 32 {
		return errors.New("address is not a 32-byte base58 key")
	}
	return nil
}
