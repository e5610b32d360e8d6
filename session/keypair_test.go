package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeypair(t *testing.T) {
	kp, err := GenerateKeypair("xion")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(kp.Address(), "xion1"), "address %q lacks prefix", kp.Address())
	assert.Len(t, kp.PublicKey(), 33, "public key should be compressed")

	other, err := GenerateKeypair("xion")
	require.NoError(t, err)
	assert.NotEqual(t, kp.Address(), other.Address())
}

func TestKeypairHexRoundtrip(t *testing.T) {
	kp, err := GenerateKeypair("xion")
	require.NoError(t, err)

	restored, err := KeypairFromHex("xion", kp.ExportHex())
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), restored.Address())
	assert.Equal(t, kp.PublicKey(), restored.PublicKey())
}

func TestKeypairFromHexRejectsBadInput(t *testing.T) {
	_, err := KeypairFromHex("xion", "zz-not-hex")
	assert.ErrorContains(t, err, "invalid session key encoding")

	_, err = KeypairFromHex("xion", "abcd")
	assert.ErrorContains(t, err, "invalid session key length")
}

func TestSign(t *testing.T) {
	kp, err := GenerateKeypair("xion")
	require.NoError(t, err)

	sig, err := kp.Sign(context.Background(), []byte("sign doc"))
	require.NoError(t, err)
	assert.Len(t, sig, 64, "signature should be bare r||s")

	// Signing is deterministic (RFC 6979).
	again, err := kp.Sign(context.Background(), []byte("sign doc"))
	require.NoError(t, err)
	assert.Equal(t, sig, again)
}
