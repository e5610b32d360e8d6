// Package grant builds and validates the delegation messages that scope
// what a session key may do on behalf of its granter: authz grants for
// contract execution, bank sends, and staking, plus fee-grant allowances.
package grant

import (
	"fmt"
	"time"

	abstraxion "github.com/burnt-labs/abstraxion-core"
)

// Proto type URLs for the messages and authorizations the builder emits.
const (
	TypeMsgGrant          = "/cosmos.authz.v1beta1.MsgGrant"
	TypeMsgGrantAllowance = "/cosmos.feegrant.v1beta1.MsgGrantAllowance"

	TypeGenericAuthorization           = "/cosmos.authz.v1beta1.GenericAuthorization"
	TypeSendAuthorization              = "/cosmos.bank.v1beta1.SendAuthorization"
	TypeStakeAuthorization             = "/cosmos.staking.v1beta1.StakeAuthorization"
	TypeContractExecutionAuthorization = "/cosmwasm.wasm.v1.ContractExecutionAuthorization"

	TypeMaxCallsLimit          = "/cosmwasm.wasm.v1.MaxCallsLimit"
	TypeCombinedLimit          = "/cosmwasm.wasm.v1.CombinedLimit"
	TypeAllowAllMessagesFilter = "/cosmwasm.wasm.v1.AllowAllMessagesFilter"

	TypeBasicAllowance      = "/cosmos.feegrant.v1beta1.BasicAllowance"
	TypeAllowedMsgAllowance = "/cosmos.feegrant.v1beta1.AllowedMsgAllowance"
	TypeContractsAllowance  = "/xion.v1.ContractsAllowance"
	TypeMultiAnyAllowance   = "/xion.v1.MultiAnyAllowance"

	TypeMsgWithdrawDelegatorReward = "/cosmos.distribution.v1beta1.MsgWithdrawDelegatorReward"
)

// Stake authorization variants.
const (
	authzTypeDelegate   = "AUTHORIZATION_TYPE_DELEGATE"
	authzTypeUndelegate = "AUTHORIZATION_TYPE_UNDELEGATE"
	authzTypeRedelegate = "AUTHORIZATION_TYPE_REDELEGATE"
)

// maxContractCalls caps per-contract call counts on contract grants.
const maxContractCalls = "255"

// anyJSON builds the proto-JSON encoding of a packed Any value.
func anyJSON(typeURL string, fields map[string]any) map[string]any {
	body := make(map[string]any, len(fields)+1)
	body["@type"] = typeURL
	for k, v := range fields {
		body[k] = v
	}
	return body
}

// msgGrantBody is the proto-JSON body of a MsgGrant.
type msgGrantBody struct {
	Granter string        `json:"granter"`
	Grantee string        `json:"grantee"`
	Grant   grantContents `json:"grant"`
}

type grantContents struct {
	Authorization map[string]any `json:"authorization"`
	Expiration    string         `json:"expiration"`
}

func newMsgGrant(granter, grantee string, expiration time.Time, authorization map[string]any) (abstraxion.Msg, error) {
	return abstraxion.NewMsg(TypeMsgGrant, msgGrantBody{
		Granter: granter,
		Grantee: grantee,
		Grant: grantContents{
			Authorization: authorization,
			Expiration:    expiration.UTC().Format(time.RFC3339),
		},
	})
}

// BuildGrantMessages turns a manual permission config into one authz grant
// message per non-empty category, in deterministic order: contracts, bank,
// stake. An entirely empty config yields an empty slice, which callers must
// read as "no authorization work needed", not as an error.
func BuildGrantMessages(granter, grantee string, expiration time.Time, cfg abstraxion.GrantConfig) ([]abstraxion.Msg, error) {
	if granter == "" {
		return nil, fmt.Errorf("granter address is required")
	}
	if grantee == "" {
		return nil, fmt.Errorf("grantee address is required")
	}

	var msgs []abstraxion.Msg

	if len(cfg.Contracts) > 0 {
		authorization, err := contractExecutionAuthorization(cfg.Contracts)
		if err != nil {
			return nil, err
		}
		if !IsContractGrantConfigValid(cfg.Contracts, abstraxion.SmartAccount{ID: granter}) {
			return nil, &abstraxion.InvalidContractGrantError{
				Reason: "Contract address cannot be the same as the granter account",
			}
		}
		msg, err := newMsgGrant(granter, grantee, expiration, authorization)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	if len(cfg.Bank) > 0 {
		msg, err := newMsgGrant(granter, grantee, expiration, anyJSON(TypeSendAuthorization, map[string]any{
			"spend_limit": cfg.Bank,
		}))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	if cfg.Stake {
		stakeMsgs, err := stakeGrantMessages(granter, grantee, expiration)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, stakeMsgs...)
	}

	return msgs, nil
}

// contractExecutionAuthorization builds the wasm authorization covering
// every configured contract. A bare address gets a call-count limit; an
// address with amounts gets a combined call-count and funds limit.
func contractExecutionAuthorization(contracts []abstraxion.ContractGrantDescription) (map[string]any, error) {
	grants := make([]map[string]any, 0, len(contracts))
	for _, desc := range contracts {
		if desc.Address == "" {
			return nil, &abstraxion.InvalidContractGrantError{
				Reason: "contract grant has no address",
			}
		}

		var limit map[string]any
		if len(desc.Amounts) > 0 {
			limit = anyJSON(TypeCombinedLimit, map[string]any{
				"calls_remaining": maxContractCalls,
				"amounts":         desc.Amounts,
			})
		} else {
			limit = anyJSON(TypeMaxCallsLimit, map[string]any{
				"remaining": maxContractCalls,
			})
		}

		grants = append(grants, map[string]any{
			"contract": desc.Address,
			"limit":    limit,
			"filter":   anyJSON(TypeAllowAllMessagesFilter, nil),
		})
	}

	return anyJSON(TypeContractExecutionAuthorization, map[string]any{
		"grants": grants,
	}), nil
}

// stakeGrantMessages emits the three stake authorizations plus the generic
// authorization needed to withdraw rewards.
func stakeGrantMessages(granter, grantee string, expiration time.Time) ([]abstraxion.Msg, error) {
	msgs := make([]abstraxion.Msg, 0, 4)

	for _, authzType := range []string{authzTypeDelegate, authzTypeUndelegate, authzTypeRedelegate} {
		msg, err := newMsgGrant(granter, grantee, expiration, anyJSON(TypeStakeAuthorization, map[string]any{
			"authorization_type": authzType,
		}))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	msg, err := newMsgGrant(granter, grantee, expiration, anyJSON(TypeGenericAuthorization, map[string]any{
		"msg": TypeMsgWithdrawDelegatorReward,
	}))
	if err != nil {
		return nil, err
	}
	return append(msgs, msg), nil
}
