package grant

import (
	abstraxion "github.com/burnt-labs/abstraxion-core"
	"github.com/burnt-labs/abstraxion-core/chain"
)

// IsContractGrantConfigValid is the self-grant security gate: it returns
// false iff any configured contract address case-insensitively equals the
// granter account's own address. Granting a session key execution rights on
// the account contract itself would let it rewrite its own authorization.
//
// Entries with no address (the fail-closed decode of a wrong-typed value)
// also return false. An empty config is valid. Structurally malformed
// descriptions never reach this gate: ContractGrantDescription's decoder
// raises InvalidContractGrantError for those.
func IsContractGrantConfigValid(contracts []abstraxion.ContractGrantDescription, account abstraxion.SmartAccount) bool {
	for _, desc := range contracts {
		if desc.Address == "" {
			return false
		}
		if chain.EqualAddresses(desc.Address, account.ID) {
			return false
		}
	}
	return true
}
