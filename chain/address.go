// Package chain provides address utilities and a CosmWasm smart-query
// client for the Cosmos chains smart accounts live on.
package chain

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// EqualAddresses is the canonical case-insensitive address comparison. All
// self-grant and authenticator matching goes through this one helper.
func EqualAddresses(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ValidateAddress checks that addr is a well-formed bech32 address with the
// expected prefix.
func ValidateAddress(addr, prefix string) error {
	hrp, _, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return fmt.Errorf("invalid bech32 address %q: %w", addr, err)
	}
	if hrp != prefix {
		return fmt.Errorf("address %q has prefix %q, want %q", addr, hrp, prefix)
	}
	return nil
}

// encodeBech32 converts 8-bit address bytes into a bech32 string.
func encodeBech32(prefix string, data []byte) (string, error) {
	converted, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	encoded, err := bech32.Encode(prefix, converted)
	if err != nil {
		return "", fmt.Errorf("failed to bech32-encode address: %w", err)
	}
	return encoded, nil
}

// moduleHash implements the Cosmos SDK address.Hash scheme:
// sha256(sha256(typ) || key).
func moduleHash(typ string, key []byte) []byte {
	th := sha256.Sum256([]byte(typ))
	preimage := make([]byte, 0, len(th)+len(key))
	preimage = append(preimage, th[:]...)
	preimage = append(preimage, key...)
	sum := sha256.Sum256(preimage)
	return sum[:]
}

// lengthPrefix prepends the single-byte length of bz, the framing the wasm
// module uses inside its predictable-address preimage.
func lengthPrefix(bz []byte) ([]byte, error) {
	if len(bz) > 255 {
		return nil, fmt.Errorf("length-prefixed segment exceeds 255 bytes: %d", len(bz))
	}
	return append([]byte{byte(len(bz))}, bz...), nil
}

// AccountSalt derives the instantiation salt for a smart account from its
// first authenticator. The salt is the sha256 of "type:credential", so the
// same credential always predicts the same account address.
func AccountSalt(authenticatorType, credential string) []byte {
	sum := sha256.Sum256([]byte(authenticatorType + ":" + credential))
	return sum[:]
}

// PredictAccountAddress computes the deterministic address the contract
// factory will assign to a smart account, using the same salted derivation
// the wasm module applies for predictable instantiation: the creator
// address, the contract code checksum, and the account salt are
// length-prefixed into one preimage and module-hashed under "wasm".
func PredictAccountAddress(creator string, checksum []byte, salt []byte, prefix string) (string, error) {
	if len(checksum) == 0 {
		return "", fmt.Errorf("contract checksum is required")
	}
	if len(salt) == 0 {
		return "", fmt.Errorf("account salt is required")
	}

	_, data5, err := bech32.DecodeNoLimit(creator)
	if err != nil {
		return "", fmt.Errorf("invalid creator address %q: %w", creator, err)
	}
	creatorBytes, err := bech32.ConvertBits(data5, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("failed to decode creator address: %w", err)
	}

	key := make([]byte, 0, len(checksum)+len(creatorBytes)+len(salt)+3)
	for _, segment := range [][]byte{checksum, creatorBytes, salt} {
		prefixed, err := lengthPrefix(segment)
		if err != nil {
			return "", err
		}
		key = append(key, prefixed...)
	}

	return encodeBech32(prefix, moduleHash("wasm", key))
}
