package grant

import (
	"encoding/json"
	"fmt"

	abstraxion "github.com/burnt-labs/abstraxion-core"
	"github.com/burnt-labs/abstraxion-core/chain"
)

// Allowance is the recursive fee-allowance policy tree. Exactly four
// variants exist: AllowedMsgAllowance, ContractsAllowance,
// MultiAnyAllowance, and UnknownAllowance for any tag the validator does
// not understand. Unknown always validates to false; there is no unchecked
// default branch.
type Allowance interface {
	allowanceTypeURL() string
}

// AllowedMsgAllowance permits only the listed message type URLs.
// AllowedMessages is nil when the field was absent from the wire form,
// which is a structural error, distinct from an explicitly empty list.
type AllowedMsgAllowance struct {
	AllowedMessages []string
	Inner           Allowance
}

func (*AllowedMsgAllowance) allowanceTypeURL() string { return TypeAllowedMsgAllowance }

// ContractsAllowance scopes a nested allowance to a set of contract
// addresses.
type ContractsAllowance struct {
	ContractAddresses []string
	Inner             Allowance
}

func (*ContractsAllowance) allowanceTypeURL() string { return TypeContractsAllowance }

// MultiAnyAllowance validates if any child allowance validates. Children
// stay in wire form so one malformed child cannot poison the others.
type MultiAnyAllowance struct {
	Allowances []json.RawMessage
}

func (*MultiAnyAllowance) allowanceTypeURL() string { return TypeMultiAnyAllowance }

// UnknownAllowance is the fail-closed arm for unrecognized or missing tags.
type UnknownAllowance struct {
	TypeURL string
	Raw     json.RawMessage
}

func (u *UnknownAllowance) allowanceTypeURL() string { return u.TypeURL }

// DecodeAllowance parses the proto-JSON encoding of an allowance node.
// Unknown tags decode successfully into UnknownAllowance; only inputs that
// are not valid JSON objects fail.
func DecodeAllowance(raw json.RawMessage) (Allowance, error) {
	var tag struct {
		TypeURL string `json:"@type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, &abstraxion.InvalidAllowanceError{
			Reason: fmt.Sprintf("allowance is not a JSON object: %v", err),
		}
	}

	switch tag.TypeURL {
	case TypeAllowedMsgAllowance:
		var body struct {
			Allowance       json.RawMessage `json:"allowance"`
			AllowedMessages []string        `json:"allowed_messages"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, &abstraxion.InvalidAllowanceError{
				Reason: fmt.Sprintf("malformed AllowedMsgAllowance: %v", err),
			}
		}
		decoded := &AllowedMsgAllowance{AllowedMessages: body.AllowedMessages}
		if len(body.Allowance) > 0 {
			inner, err := DecodeAllowance(body.Allowance)
			if err != nil {
				return nil, err
			}
			decoded.Inner = inner
		}
		return decoded, nil

	case TypeContractsAllowance:
		var body struct {
			Allowance         json.RawMessage `json:"allowance"`
			ContractAddresses []string        `json:"contract_addresses"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, &abstraxion.InvalidAllowanceError{
				Reason: fmt.Sprintf("malformed ContractsAllowance: %v", err),
			}
		}
		decoded := &ContractsAllowance{ContractAddresses: body.ContractAddresses}
		if len(body.Allowance) > 0 {
			inner, err := DecodeAllowance(body.Allowance)
			if err != nil {
				return nil, err
			}
			decoded.Inner = inner
		}
		return decoded, nil

	case TypeMultiAnyAllowance:
		var body struct {
			Allowances []json.RawMessage `json:"allowances"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, &abstraxion.InvalidAllowanceError{
				Reason: fmt.Sprintf("malformed MultiAnyAllowance: %v", err),
			}
		}
		return &MultiAnyAllowance{Allowances: body.Allowances}, nil

	default:
		return &UnknownAllowance{TypeURL: tag.TypeURL, Raw: raw}, nil
	}
}

// ValidateActions recursively evaluates whether the allowance permits every
// requested action, optionally on behalf of userAddress.
//
// Structural problems (an AllowedMsgAllowance with no allowed_messages
// field, a ContractsAllowance with no nested allowance) raise
// InvalidAllowanceError; a well-formed tree that simply denies the actions
// returns false with no error.
func ValidateActions(requestedActions []string, allowance Allowance, userAddress string) (bool, error) {
	switch a := allowance.(type) {
	case *AllowedMsgAllowance:
		if a.AllowedMessages == nil {
			return false, &abstraxion.InvalidAllowanceError{
				Reason: "AllowedMsgAllowance has no allowed_messages field",
			}
		}
		allowed := make(map[string]struct{}, len(a.AllowedMessages))
		for _, msg := range a.AllowedMessages {
			allowed[msg] = struct{}{}
		}
		for _, action := range requestedActions {
			if _, ok := allowed[action]; !ok {
				return false, nil
			}
		}
		return true, nil

	case *ContractsAllowance:
		if userAddress != "" {
			found := false
			for _, addr := range a.ContractAddresses {
				if chain.EqualAddresses(addr, userAddress) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
		if a.Inner == nil {
			return false, &abstraxion.InvalidAllowanceError{
				Reason: "ContractsAllowance has no nested allowance",
			}
		}
		return ValidateActions(requestedActions, a.Inner, userAddress)

	case *MultiAnyAllowance:
		if len(a.Allowances) == 0 {
			return false, nil
		}
		evaluated := 0
		for _, raw := range a.Allowances {
			child, err := DecodeAllowance(raw)
			if err != nil {
				// Malformed children are skipped, not fatal.
				continue
			}
			ok, err := ValidateActions(requestedActions, child, userAddress)
			if err != nil {
				continue
			}
			evaluated++
			if ok {
				return true, nil
			}
		}
		if evaluated == 0 {
			return false, &abstraxion.InvalidAllowanceError{
				Reason: "MultiAnyAllowance has no well-formed children",
			}
		}
		return false, nil

	case *UnknownAllowance:
		// Fail closed on anything this validator does not understand.
		return false, nil

	case nil:
		return false, &abstraxion.InvalidAllowanceError{Reason: "allowance is nil"}

	default:
		// Unreachable with the variants above, kept explicit so a new
		// variant cannot silently validate.
		return false, nil
	}
}
