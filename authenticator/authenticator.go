// Package authenticator classifies credential strings into the authenticator
// types a smart account can register.
package authenticator

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Type identifies how a credential proves control of a smart account.
// The values match the JSON keys the account contract uses when it reports
// its registered authenticators.
type Type string

const (
	// TypeJWT is a JSON Web Token credential, identified by its aud/sub claims.
	TypeJWT Type = "JWT"

	// TypeEthWallet is an Ethereum-style wallet address credential.
	TypeEthWallet Type = "EthWallet"

	// TypePasskey is a WebAuthn passkey credential.
	TypePasskey Type = "Passkey"

	// TypeSecp256K1 is a raw secp256k1 public key credential.
	TypeSecp256K1 Type = "Secp256K1"
)

// String returns the wire representation of the type.
func (t Type) String() string {
	return string(t)
}

// Classify infers the authenticator type from the shape of a credential
// string. The checks are order-sensitive:
//
//  1. contains "." and is not 0x-prefixed: JWT
//  2. 0x-prefixed, or a bare 40-char hex address: EthWallet
//  3. "passkey:" prefix or contains "webauthn": Passkey
//  4. anything else: Secp256K1
//
// The fallback cannot distinguish Secp256K1 from Ed25519 or Sr25519 keys;
// the string alone does not carry enough information. Callers that know the
// curve should not rely on Classify for it.
func Classify(credential string) Type {
	switch {
	case strings.Contains(credential, ".") && !strings.HasPrefix(credential, "0x"):
		return TypeJWT
	case strings.HasPrefix(credential, "0x") || common.IsHexAddress(credential):
		return TypeEthWallet
	case strings.HasPrefix(credential, "passkey:") || strings.Contains(credential, "webauthn"):
		return TypePasskey
	default:
		return TypeSecp256K1
	}
}

// NormalizeEthAddress returns the EIP-55 checksummed form of an Ethereum
// address credential. Non-address inputs are returned unchanged.
func NormalizeEthAddress(credential string) string {
	if !common.IsHexAddress(credential) {
		return credential
	}
	return common.HexToAddress(credential).Hex()
}
