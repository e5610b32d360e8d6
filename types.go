package abstraxion

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Authenticator is one credential registered on a smart account.
type Authenticator struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Authenticator      string `json:"authenticator"`
	AuthenticatorIndex int    `json:"authenticatorIndex"`
}

// SmartAccount is an on-chain programmable wallet contract capable of
// delegating authority. ID is the account's chain address.
type SmartAccount struct {
	ID             string          `json:"id"`
	Authenticators []Authenticator `json:"authenticators"`
}

// SmartAccountWithCodeID adds the contract bytecode identity to a smart
// account. Some discovery backends cannot supply it and must fill it from
// external configuration.
type SmartAccountWithCodeID struct {
	SmartAccount
	CodeID uint64 `json:"codeId"`
}

// AccountExistenceResult is the outcome of resolving a credential to a smart
// account. Exists reports whether any account was found; discovery failures
// are reported through the error return of CheckAccountExists, never through
// this struct, so "not found" and "discovery broken" stay distinguishable.
type AccountExistenceResult struct {
	Exists              bool
	Accounts            []SmartAccountWithCodeID
	SmartAccountAddress string
	CodeID              uint64
	AuthenticatorIndex  int
}

// SpendLimit is a single denomination cap on a grant.
type SpendLimit struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// ContractGrantDescription scopes a contract-execution grant. On the wire it
// is either a bare contract address string or an object carrying an address
// and per-denom spend limits; UnmarshalJSON accepts both encodings.
type ContractGrantDescription struct {
	Address string       `json:"address"`
	Amounts []SpendLimit `json:"amounts,omitempty"`
}

// UnmarshalJSON decodes either encoding of a contract grant description.
// An object that carries properties but no address is a configuration bug
// and fails with InvalidContractGrantError. Values of an outright wrong
// JSON type (numbers, booleans, arrays) decode to a zero description, which
// downstream validation rejects without raising.
func (d *ContractGrantDescription) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '"':
		var addr string
		if err := json.Unmarshal(trimmed, &addr); err != nil {
			return err
		}
		d.Address = addr
		d.Amounts = nil
		return nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		rawAddr, ok := obj["address"]
		if !ok {
			if len(obj) > 0 {
				return &InvalidContractGrantError{
					Reason: "contract grant object is missing an address field",
				}
			}
			// Empty object: zero description, rejected fail-closed later.
			*d = ContractGrantDescription{}
			return nil
		}
		if err := json.Unmarshal(rawAddr, &d.Address); err != nil {
			return &InvalidContractGrantError{
				Reason: fmt.Sprintf("contract grant address is not a string: %v", err),
			}
		}
		if rawAmounts, ok := obj["amounts"]; ok {
			if err := json.Unmarshal(rawAmounts, &d.Amounts); err != nil {
				return &InvalidContractGrantError{
					Reason: fmt.Sprintf("contract grant amounts are malformed: %v", err),
				}
			}
		}
		return nil
	default:
		// Wrong runtime type: fail closed instead of loud.
		*d = ContractGrantDescription{}
		return nil
	}
}

// MarshalJSON emits the compact string encoding when no amounts are set.
func (d ContractGrantDescription) MarshalJSON() ([]byte, error) {
	if len(d.Amounts) == 0 {
		return json.Marshal(d.Address)
	}
	type alias ContractGrantDescription
	return json.Marshal(alias(d))
}

// GrantConfig describes the authority a session key requests from its
// granter. An entirely empty config is legal and means no authorization
// work is needed.
type GrantConfig struct {
	// Treasury is the address of a treasury contract that declares the grant
	// policy on-chain. When set, grant messages are derived from the treasury
	// first, falling back to the manual fields below if the query fails.
	Treasury string `json:"treasury,omitempty"`

	Contracts []ContractGrantDescription `json:"contracts,omitempty"`
	Bank      []SpendLimit               `json:"bank,omitempty"`
	Stake     bool                       `json:"stake,omitempty"`

	// FeeGranter pays transaction fees on behalf of the granter.
	FeeGranter string `json:"feeGranter,omitempty"`

	// DaodaoIndexerURL selects an alternative indexer for treasury
	// grant-policy lookup before the on-chain query.
	DaodaoIndexerURL string `json:"daodaoIndexerUrl,omitempty"`
}

// Empty reports whether the config requests no authority at all.
func (c GrantConfig) Empty() bool {
	return c.Treasury == "" && len(c.Contracts) == 0 && len(c.Bank) == 0 && !c.Stake
}

// Msg is a chain message in proto-JSON form: a type URL plus the JSON
// encoding of the message body. An external signer assembles and broadcasts
// the transaction.
type Msg struct {
	TypeURL string          `json:"typeUrl"`
	Value   json.RawMessage `json:"value"`
}

// NewMsg marshals body into a Msg. Encoding only fails for unmarshalable Go
// values, which indicates a programming error in message construction.
func NewMsg(typeURL string, body any) (Msg, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Msg{}, fmt.Errorf("failed to encode %s: %w", typeURL, err)
	}
	return Msg{TypeURL: typeURL, Value: raw}, nil
}

// BroadcastResult reports the outcome of a broadcast transaction.
type BroadcastResult struct {
	TxHash string `json:"txHash"`
	Code   uint32 `json:"code"`
	RawLog string `json:"rawLog,omitempty"`
}

// Succeeded reports whether the transaction was accepted by the chain.
func (r *BroadcastResult) Succeeded() bool {
	return r != nil && r.Code == 0
}

// AccountInfo is the connected smart account as seen by the orchestrator.
// It is created once per successful connection and discarded on reset.
type AccountInfo struct {
	Address            string `json:"address"`
	CodeID             uint64 `json:"codeId,omitempty"`
	AuthenticatorIndex int    `json:"authenticatorIndex"`
}
