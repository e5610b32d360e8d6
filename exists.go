package abstraxion

import (
	"context"
	"sort"

	"github.com/burnt-labs/abstraxion-core/authenticator"
	"github.com/burnt-labs/abstraxion-core/chain"
)

// CheckAccountExists resolves a credential through a discovery strategy
// (usually a composite) and selects the account and authenticator index the
// session should use.
//
// When a backend returns more than one candidate account, the account with
// the lexicographically smallest address is selected. The choice itself is
// arbitrary, but it is deterministic and stable across backends that return
// the same set in different orders.
//
// The authenticator index comes from the entry whose credential matches
// case-insensitively; when no entry matches, the index defaults to 0 even
// though the account exists.
//
// A returned error means discovery itself failed; it never means the
// account does not exist.
func CheckAccountExists(ctx context.Context, strategy DiscoveryStrategy, credential string, authType authenticator.Type) (AccountExistenceResult, error) {
	accounts, err := strategy.Fetch(ctx, credential, authType)
	if err != nil {
		return AccountExistenceResult{}, err
	}
	if len(accounts) == 0 {
		return AccountExistenceResult{Exists: false}, nil
	}

	selected := accounts[0]
	if len(accounts) > 1 {
		sorted := make([]SmartAccountWithCodeID, len(accounts))
		copy(sorted, accounts)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].ID < sorted[j].ID
		})
		selected = sorted[0]
	}

	index := 0
	for _, auth := range selected.Authenticators {
		if chain.EqualAddresses(auth.Authenticator, credential) {
			index = auth.AuthenticatorIndex
			break
		}
	}

	return AccountExistenceResult{
		Exists:              true,
		Accounts:            accounts,
		SmartAccountAddress: selected.ID,
		CodeID:              selected.CodeID,
		AuthenticatorIndex:  index,
	}, nil
}
