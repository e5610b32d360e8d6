// Package session manages the short-lived session keypair that acts as
// grantee, and the persistence of its pairing with a granter account.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160"
)

// Keypair is a secp256k1 session keypair. Its address is the standard
// Cosmos derivation: bech32(ripemd160(sha256(compressed pubkey))).
type Keypair struct {
	priv    *secp256k1.PrivateKey
	address string
}

// GenerateKeypair creates a fresh session keypair with the given bech32
// prefix.
func GenerateKeypair(prefix string) (*Keypair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	return newKeypair(priv, prefix)
}

// KeypairFromHex restores a keypair from its hex-serialized private key.
func KeypairFromHex(prefix, privHex string) (*Keypair, error) {
	raw, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("invalid session key encoding: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid session key length: %d", len(raw))
	}
	return newKeypair(secp256k1.PrivKeyFromBytes(raw), prefix)
}

func newKeypair(priv *secp256k1.PrivateKey, prefix string) (*Keypair, error) {
	pub := priv.PubKey().SerializeCompressed()

	shaSum := sha256.Sum256(pub)
	ripemd := ripemd160.New()
	ripemd.Write(shaSum[:])
	addrBytes := ripemd.Sum(nil)

	converted, err := bech32.ConvertBits(addrBytes, 8, 5, true)
	if err != nil {
		return nil, fmt.Errorf("failed to convert address bits: %w", err)
	}
	address, err := bech32.Encode(prefix, converted)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session address: %w", err)
	}

	return &Keypair{priv: priv, address: address}, nil
}

// Address returns the keypair's bech32 account address.
func (k *Keypair) Address() string {
	return k.address
}

// PublicKey returns the compressed secp256k1 public key.
func (k *Keypair) PublicKey() []byte {
	return k.priv.PubKey().SerializeCompressed()
}

// Sign produces a 64-byte r||s signature over sha256(msg).
func (k *Keypair) Sign(_ context.Context, msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	compact := secpecdsa.SignCompact(k.priv, digest[:], true)
	// SignCompact prepends a recovery byte; chain signatures are bare r||s.
	return compact[1:], nil
}

// ExportHex serializes the private key for persistence.
func (k *Keypair) ExportHex() string {
	return hex.EncodeToString(k.priv.Serialize())
}
