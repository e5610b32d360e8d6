package abstraxion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractGrantDescriptionUnmarshal(t *testing.T) {
	// Bare string form.
	var desc ContractGrantDescription
	require.NoError(t, json.Unmarshal([]byte(`"xion1contract"`), &desc))
	assert.Equal(t, "xion1contract", desc.Address)
	assert.Empty(t, desc.Amounts)

	// Object form with spend limits.
	desc = ContractGrantDescription{}
	require.NoError(t, json.Unmarshal([]byte(`{"address":"xion1contract","amounts":[{"denom":"uxion","amount":"10"}]}`), &desc))
	assert.Equal(t, "xion1contract", desc.Address)
	require.Len(t, desc.Amounts, 1)
	assert.Equal(t, "uxion", desc.Amounts[0].Denom)
}

func TestContractGrantDescriptionUnmarshalMalformed(t *testing.T) {
	// An object with properties but no address is a configuration bug.
	var desc ContractGrantDescription
	err := json.Unmarshal([]byte(`{"amounts":[{"denom":"uxion","amount":"10"}]}`), &desc)
	var grantErr *InvalidContractGrantError
	require.ErrorAs(t, err, &grantErr)
	assert.Contains(t, grantErr.Reason, "missing an address")

	// A non-string address is rejected too.
	err = json.Unmarshal([]byte(`{"address":42}`), &desc)
	assert.ErrorAs(t, err, &grantErr)
}

func TestContractGrantDescriptionUnmarshalWrongType(t *testing.T) {
	// Outright wrong JSON types decode to a zero description, which the
	// grant validator rejects fail-closed.
	for _, raw := range []string{`42`, `true`, `[1,2]`, `null`} {
		var desc ContractGrantDescription
		require.NoError(t, json.Unmarshal([]byte(raw), &desc), "input %s", raw)
		assert.Empty(t, desc.Address, "input %s", raw)
	}
}

func TestContractGrantDescriptionMarshal(t *testing.T) {
	// Bare addresses round-trip to the compact string form.
	raw, err := json.Marshal(ContractGrantDescription{Address: "xion1contract"})
	require.NoError(t, err)
	assert.JSONEq(t, `"xion1contract"`, string(raw))

	// With amounts the object form is used.
	raw, err = json.Marshal(ContractGrantDescription{
		Address: "xion1contract",
		Amounts: []SpendLimit{{Denom: "uxion", Amount: "10"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"xion1contract","amounts":[{"denom":"uxion","amount":"10"}]}`, string(raw))
}

func TestGrantConfigEmpty(t *testing.T) {
	assert.True(t, GrantConfig{}.Empty())
	assert.True(t, GrantConfig{FeeGranter: "xion1fee"}.Empty(), "a fee granter alone requests no authority")
	assert.False(t, GrantConfig{Treasury: "xion1treasury"}.Empty())
	assert.False(t, GrantConfig{Stake: true}.Empty())
	assert.False(t, GrantConfig{Bank: []SpendLimit{{Denom: "uxion", Amount: "1"}}}.Empty())
	assert.False(t, GrantConfig{Contracts: []ContractGrantDescription{{Address: "xion1c"}}}.Empty())
}

func TestBroadcastResultSucceeded(t *testing.T) {
	assert.True(t, (&BroadcastResult{TxHash: "AB12", Code: 0}).Succeeded())
	assert.False(t, (&BroadcastResult{TxHash: "AB12", Code: 5}).Succeeded())
	assert.False(t, (*BroadcastResult)(nil).Succeeded())
}

func TestNewMsg(t *testing.T) {
	msg, err := NewMsg("/cosmos.authz.v1beta1.MsgGrant", map[string]string{"granter": "xion1g"})
	require.NoError(t, err)
	assert.Equal(t, "/cosmos.authz.v1beta1.MsgGrant", msg.TypeURL)
	assert.JSONEq(t, `{"granter":"xion1g"}`, string(msg.Value))
}
