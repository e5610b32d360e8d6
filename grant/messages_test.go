package grant

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	abstraxion "github.com/burnt-labs/abstraxion-core"
)

var testExpiration = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

// decodeGrant unpacks a MsgGrant's body for assertions.
func decodeGrant(t *testing.T, msg abstraxion.Msg) (granter, grantee string, authorization map[string]any, expiration string) {
	t.Helper()
	require.Equal(t, TypeMsgGrant, msg.TypeURL)

	var body struct {
		Granter string `json:"granter"`
		Grantee string `json:"grantee"`
		Grant   struct {
			Authorization map[string]any `json:"authorization"`
			Expiration    string         `json:"expiration"`
		} `json:"grant"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	return body.Granter, body.Grantee, body.Grant.Authorization, body.Grant.Expiration
}

func TestBuildGrantMessagesEmptyConfig(t *testing.T) {
	// An empty config is "nothing to authorize", not an error.
	msgs, err := BuildGrantMessages("xion1granter", "xion1grantee", testExpiration, abstraxion.GrantConfig{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestBuildGrantMessagesRequiresAddresses(t *testing.T) {
	_, err := BuildGrantMessages("", "xion1grantee", testExpiration, abstraxion.GrantConfig{})
	assert.ErrorContains(t, err, "granter address is required")

	_, err = BuildGrantMessages("xion1granter", "", testExpiration, abstraxion.GrantConfig{})
	assert.ErrorContains(t, err, "grantee address is required")
}

func TestBuildGrantMessagesContracts(t *testing.T) {
	msgs, err := BuildGrantMessages("xion1granter", "xion1grantee", testExpiration, abstraxion.GrantConfig{
		Contracts: []abstraxion.ContractGrantDescription{
			{Address: "xion1contract1"},
			{Address: "xion1contract2", Amounts: []abstraxion.SpendLimit{{Denom: "uxion", Amount: "500"}}},
		},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	granter, grantee, authorization, expiration := decodeGrant(t, msgs[0])
	assert.Equal(t, "xion1granter", granter)
	assert.Equal(t, "xion1grantee", grantee)
	assert.Equal(t, "2026-10-01T12:00:00Z", expiration)
	assert.Equal(t, TypeContractExecutionAuthorization, authorization["@type"])

	grants, ok := authorization["grants"].([]any)
	require.True(t, ok)
	require.Len(t, grants, 2)

	// A bare address gets a call-count limit.
	first := grants[0].(map[string]any)
	assert.Equal(t, "xion1contract1", first["contract"])
	assert.Equal(t, TypeMaxCallsLimit, first["limit"].(map[string]any)["@type"])
	assert.Equal(t, TypeAllowAllMessagesFilter, first["filter"].(map[string]any)["@type"])

	// An address with amounts gets a combined limit.
	second := grants[1].(map[string]any)
	assert.Equal(t, TypeCombinedLimit, second["limit"].(map[string]any)["@type"])
}

func TestBuildGrantMessagesRejectsSelfGrant(t *testing.T) {
	_, err := BuildGrantMessages("xion1granter", "xion1grantee", testExpiration, abstraxion.GrantConfig{
		Contracts: []abstraxion.ContractGrantDescription{{Address: "xion1granter"}},
	})

	var grantErr *abstraxion.InvalidContractGrantError
	require.ErrorAs(t, err, &grantErr)
	assert.Contains(t, grantErr.Reason, "cannot be the same as the granter")

	// Case differences do not slip past the gate.
	_, err = BuildGrantMessages("xion1granter", "xion1grantee", testExpiration, abstraxion.GrantConfig{
		Contracts: []abstraxion.ContractGrantDescription{{Address: "XION1GRANTER"}},
	})
	assert.ErrorAs(t, err, &grantErr)
}

func TestBuildGrantMessagesRejectsMissingAddress(t *testing.T) {
	_, err := BuildGrantMessages("xion1granter", "xion1grantee", testExpiration, abstraxion.GrantConfig{
		Contracts: []abstraxion.ContractGrantDescription{{}},
	})

	var grantErr *abstraxion.InvalidContractGrantError
	require.ErrorAs(t, err, &grantErr)
	assert.Contains(t, grantErr.Reason, "no address")
}

func TestBuildGrantMessagesBank(t *testing.T) {
	msgs, err := BuildGrantMessages("xion1granter", "xion1grantee", testExpiration, abstraxion.GrantConfig{
		Bank: []abstraxion.SpendLimit{{Denom: "uxion", Amount: "1000"}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	_, _, authorization, _ := decodeGrant(t, msgs[0])
	assert.Equal(t, TypeSendAuthorization, authorization["@type"])

	limits := authorization["spend_limit"].([]any)
	require.Len(t, limits, 1)
	assert.Equal(t, "uxion", limits[0].(map[string]any)["denom"])
	assert.Equal(t, "1000", limits[0].(map[string]any)["amount"])
}

func TestBuildGrantMessagesStake(t *testing.T) {
	msgs, err := BuildGrantMessages("xion1granter", "xion1grantee", testExpiration, abstraxion.GrantConfig{
		Stake: true,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4, "three stake authorizations plus reward withdrawal")

	var authzTypes []string
	for _, msg := range msgs[:3] {
		_, _, authorization, _ := decodeGrant(t, msg)
		assert.Equal(t, TypeStakeAuthorization, authorization["@type"])
		authzTypes = append(authzTypes, authorization["authorization_type"].(string))
	}
	assert.Equal(t, []string{
		"AUTHORIZATION_TYPE_DELEGATE",
		"AUTHORIZATION_TYPE_UNDELEGATE",
		"AUTHORIZATION_TYPE_REDELEGATE",
	}, authzTypes)

	_, _, withdraw, _ := decodeGrant(t, msgs[3])
	assert.Equal(t, TypeGenericAuthorization, withdraw["@type"])
	assert.Equal(t, TypeMsgWithdrawDelegatorReward, withdraw["msg"])
}

func TestBuildGrantMessagesOrdering(t *testing.T) {
	// Categories always come out contracts, bank, stake.
	msgs, err := BuildGrantMessages("xion1granter", "xion1grantee", testExpiration, abstraxion.GrantConfig{
		Contracts: []abstraxion.ContractGrantDescription{{Address: "xion1contract"}},
		Bank:      []abstraxion.SpendLimit{{Denom: "uxion", Amount: "1"}},
		Stake:     true,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 6)

	_, _, first, _ := decodeGrant(t, msgs[0])
	assert.Equal(t, TypeContractExecutionAuthorization, first["@type"])
	_, _, second, _ := decodeGrant(t, msgs[1])
	assert.Equal(t, TypeSendAuthorization, second["@type"])
	_, _, third, _ := decodeGrant(t, msgs[2])
	assert.Equal(t, TypeStakeAuthorization, third["@type"])
}
