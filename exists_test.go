package abstraxion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnt-labs/abstraxion-core/authenticator"
)

type scriptedStrategy struct {
	accounts []SmartAccountWithCodeID
	err      error
}

func (s *scriptedStrategy) Name() string { return "scripted" }

func (s *scriptedStrategy) Fetch(_ context.Context, _ string, _ authenticator.Type) ([]SmartAccountWithCodeID, error) {
	return s.accounts, s.err
}

func TestCheckAccountExistsFound(t *testing.T) {
	strategy := &scriptedStrategy{accounts: []SmartAccountWithCodeID{{
		SmartAccount: SmartAccount{
			ID: "xion1account",
			Authenticators: []Authenticator{
				{Authenticator: "other-cred", AuthenticatorIndex: 0},
				{Authenticator: "0xabc", AuthenticatorIndex: 2},
			},
		},
		CodeID: 793,
	}}}

	result, err := CheckAccountExists(context.Background(), strategy, "0xabc", authenticator.TypeEthWallet)
	require.NoError(t, err)
	assert.True(t, result.Exists)
	assert.Equal(t, "xion1account", result.SmartAccountAddress)
	assert.Equal(t, uint64(793), result.CodeID)
	assert.Equal(t, 2, result.AuthenticatorIndex)
	assert.Len(t, result.Accounts, 1)
}

func TestCheckAccountExistsCaseInsensitiveMatch(t *testing.T) {
	strategy := &scriptedStrategy{accounts: []SmartAccountWithCodeID{{
		SmartAccount: SmartAccount{
			ID:             "xion1account",
			Authenticators: []Authenticator{{Authenticator: "0xABC", AuthenticatorIndex: 1}},
		},
	}}}

	result, err := CheckAccountExists(context.Background(), strategy, "0xabc", authenticator.TypeEthWallet)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AuthenticatorIndex)
}

func TestCheckAccountExistsNoAuthenticatorMatch(t *testing.T) {
	// The account still exists; the index just defaults to 0.
	strategy := &scriptedStrategy{accounts: []SmartAccountWithCodeID{{
		SmartAccount: SmartAccount{
			ID:             "xion1account",
			Authenticators: []Authenticator{{Authenticator: "someone-else", AuthenticatorIndex: 5}},
		},
	}}}

	result, err := CheckAccountExists(context.Background(), strategy, "0xabc", authenticator.TypeEthWallet)
	require.NoError(t, err)
	assert.True(t, result.Exists)
	assert.Equal(t, 0, result.AuthenticatorIndex)
}

func TestCheckAccountExistsNotFound(t *testing.T) {
	result, err := CheckAccountExists(context.Background(), &scriptedStrategy{}, "0xabc", authenticator.TypeEthWallet)
	require.NoError(t, err)
	assert.False(t, result.Exists)
	assert.Empty(t, result.SmartAccountAddress)
}

func TestCheckAccountExistsDiscoveryFailure(t *testing.T) {
	strategy := &scriptedStrategy{err: errors.New("all backends down")}
	_, err := CheckAccountExists(context.Background(), strategy, "0xabc", authenticator.TypeEthWallet)
	assert.Error(t, err, "a broken backend must never read as a missing account")
}

func TestCheckAccountExistsMultipleAccounts(t *testing.T) {
	// The lexicographically smallest address wins regardless of order.
	strategy := &scriptedStrategy{accounts: []SmartAccountWithCodeID{
		{SmartAccount: SmartAccount{ID: "xion1zzz"}, CodeID: 2},
		{SmartAccount: SmartAccount{ID: "xion1aaa"}, CodeID: 1},
	}}

	result, err := CheckAccountExists(context.Background(), strategy, "0xabc", authenticator.TypeEthWallet)
	require.NoError(t, err)
	assert.Equal(t, "xion1aaa", result.SmartAccountAddress)
	assert.Equal(t, uint64(1), result.CodeID)

	// All candidates are still reported in input order.
	require.Len(t, result.Accounts, 2)
	assert.Equal(t, "xion1zzz", result.Accounts[0].ID)
}
