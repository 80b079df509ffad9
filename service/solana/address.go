package solana

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned for strings that cannot be Solana account addresses.
var ErrInvalidAddress = errors.New("invalid solana address")

const (
	minAddressLength = 32
	maxAddressLength = 44
)

// isBase58 reports whether s is non-empty and decodes as base58.
func isBase58(s string) bool {
	if s == "" {
		return false
	}
	_, err := base58.Decode(s)
	return err == nil
}

// ValidateAddress checks that address is a base58 encoded 32-byte public key.
func ValidateAddress(address string) error {
	if n := len(address); n < minAddressLength || n > maxAddressLength {
		return fmt.Errorf("%w: length %d outside [%d, %d]", ErrInvalidAddress, n, minAddressLength, maxAddressLength)
	}
	if !isBase58(address) {
		return fmt.Errorf("%w: non-base58 characters in %q", ErrInvalidAddress, address)
	}
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return nil
}
