package abstraxion

import (
	"fmt"
	"strings"
)

// Machine-readable codes carried by FeeGrantValidationError.
const (
	ErrCodeNetworkError      = "NETWORK_ERROR"
	ErrCodeHTTPError         = "HTTP_ERROR"
	ErrCodeMalformedResponse = "MALFORMED_RESPONSE"
	ErrCodeInvalidAllowance  = "INVALID_ALLOWANCE"
	ErrCodeInvalidInput      = "INVALID_INPUT"
)

// StrategyFailure records one discovery backend's failure inside an
// aggregate error.
type StrategyFailure struct {
	Strategy string
	Err      error
}

func (f StrategyFailure) String() string {
	return fmt.Sprintf("%s: %v", f.Strategy, f.Err)
}

// DiscoveryAggregateError is raised when every discovery strategy in a chain
// failed. It is distinct from the empty result, which means no account
// exists yet: callers must not offer account creation when discovery itself
// is broken.
type DiscoveryAggregateError struct {
	Failures []StrategyFailure
}

func (e *DiscoveryAggregateError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("all discovery strategies failed: [%s]", strings.Join(parts, "; "))
}

// AccountCreationError is raised when a new smart account cannot be created,
// for example because the authenticator type has no creation path.
type AccountCreationError struct {
	AuthenticatorType string
	Reason            string
}

func (e *AccountCreationError) Error() string {
	if e.AuthenticatorType != "" {
		return fmt.Sprintf("cannot create account for authenticator type %s: %s", e.AuthenticatorType, e.Reason)
	}
	return fmt.Sprintf("cannot create account: %s", e.Reason)
}

// InvalidContractGrantError is raised for malformed contract grant
// descriptions. It indicates a caller or configuration bug and is always
// raised immediately rather than degraded into a false result.
type InvalidContractGrantError struct {
	Reason string
}

func (e *InvalidContractGrantError) Error() string {
	return fmt.Sprintf("invalid contract grant: %s", e.Reason)
}

// InvalidAllowanceError is raised when a fee allowance tree is structurally
// malformed, such as an AllowedMsgAllowance with no allowed messages field.
type InvalidAllowanceError struct {
	Reason string
}

func (e *InvalidAllowanceError) Error() string {
	return fmt.Sprintf("invalid allowance: %s", e.Reason)
}

// FeeGrantValidationError reports why a fee grant could not be confirmed.
// Code is one of the ErrCode constants; StatusCode is set for HTTP errors.
type FeeGrantValidationError struct {
	Code       string
	StatusCode int
	Message    string
}

func (e *FeeGrantValidationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fee grant validation failed (%s, status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fee grant validation failed (%s): %s", e.Code, e.Message)
}

// SessionRestorationError reports that a persisted session existed but its
// on-chain grants no longer validate. The session has already been cleared
// when this error is returned.
type SessionRestorationError struct {
	Reason string
}

func (e *SessionRestorationError) Error() string {
	return fmt.Sprintf("session restoration failed: %s", e.Reason)
}

// TransitionError is raised by the account state machine when an action is
// dispatched from a state that does not permit it.
type TransitionError struct {
	From   StateKind
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: action %s from state %s", e.Action, e.From)
}
