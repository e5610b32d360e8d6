package grant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	abstraxion "github.com/burnt-labs/abstraxion-core"
)

func TestIsContractGrantConfigValid(t *testing.T) {
	account := abstraxion.SmartAccount{ID: "xion1abc"}

	tests := []struct {
		name      string
		contracts []abstraxion.ContractGrantDescription
		want      bool
	}{
		{
			name: "distinct addresses are valid",
			contracts: []abstraxion.ContractGrantDescription{
				{Address: "xion1contract1"},
				{Address: "xion1contract2"},
			},
			want: true,
		},
		{
			name:      "empty config is valid",
			contracts: nil,
			want:      true,
		},
		{
			name: "granting the account itself is invalid",
			contracts: []abstraxion.ContractGrantDescription{
				{Address: "xion1abc"},
			},
			want: false,
		},
		{
			name: "the comparison is case-insensitive",
			contracts: []abstraxion.ContractGrantDescription{
				{Address: "xion1ABC"},
			},
			want: false,
		},
		{
			name: "one bad entry poisons the whole config",
			contracts: []abstraxion.ContractGrantDescription{
				{Address: "xion1contract1"},
				{Address: "xion1abc"},
			},
			want: false,
		},
		{
			name: "an entry with no address fails closed",
			contracts: []abstraxion.ContractGrantDescription{
				{Address: ""},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsContractGrantConfigValid(tt.contracts, account))
		})
	}
}
