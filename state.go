package abstraxion

import "sync"

// StateKind enumerates the account connection states.
type StateKind string

const (
	StateIdle                   StateKind = "idle"
	StateInitializing           StateKind = "initializing"
	StateRedirecting            StateKind = "redirecting"
	StateConnecting             StateKind = "connecting"
	StateConfiguringPermissions StateKind = "configuring-permissions"
	StateConnected              StateKind = "connected"
	StateError                  StateKind = "error"
)

// Action enumerates the events the state machine accepts.
type Action string

const (
	ActionInitialize                  Action = "INITIALIZE"
	ActionStartRedirect               Action = "START_REDIRECT"
	ActionStartConnect                Action = "START_CONNECT"
	ActionStartConfiguringPermissions Action = "START_CONFIGURING_PERMISSIONS"
	ActionSetConnected                Action = "SET_CONNECTED"
	ActionSetError                    Action = "SET_ERROR"
	ActionReset                       Action = "RESET"
)

// State is the current position of the connection flow plus the payload that
// position carries. Only the fields relevant to Kind are set.
type State struct {
	Kind StateKind

	// DashboardURL is set while redirecting.
	DashboardURL string

	// ConnectorID is set while connecting, when known.
	ConnectorID string

	// SmartAccountAddress is set while configuring permissions.
	SmartAccountAddress string

	// Account and SigningClient are set while connected.
	Account       *AccountInfo
	SigningClient SigningClient

	// Message is set in the error state.
	Message string
}

// Event is an action plus the payload its target state requires.
type Event struct {
	Action Action

	DashboardURL        string
	ConnectorID         string
	SmartAccountAddress string
	Account             *AccountInfo
	SigningClient       SigningClient
	Message             string
}

// StateMachine owns the connection state. Dispatch is the single entry
// point and rejects illegal transitions, so the guard cannot be bypassed by
// dispatching directly.
type StateMachine struct {
	mu    sync.Mutex
	state State
}

// NewStateMachine starts in the idle state.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: State{Kind: StateIdle}}
}

// State returns a snapshot of the current state.
func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CanTransition reports whether the action is legal from the current state.
func (m *StateMachine) CanTransition(action Action) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return isLegal(m.state.Kind, action)
}

func isLegal(from StateKind, action Action) bool {
	switch action {
	case ActionReset:
		return true
	case ActionInitialize:
		return from == StateIdle
	case ActionStartRedirect, ActionStartConnect:
		return from == StateInitializing
	case ActionStartConfiguringPermissions:
		return from == StateConnecting || from == StateRedirecting
	case ActionSetConnected:
		return from == StateConfiguringPermissions
	case ActionSetError:
		// connected and error are terminal for SET_ERROR.
		return from != StateConnected && from != StateError
	default:
		return false
	}
}

// Dispatch applies the event and returns the resulting state. Illegal
// transitions leave the state untouched and return a TransitionError.
func (m *StateMachine) Dispatch(ev Event) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isLegal(m.state.Kind, ev.Action) {
		return m.state, &TransitionError{From: m.state.Kind, Action: ev.Action}
	}

	switch ev.Action {
	case ActionReset:
		// Account and signing client live exactly one connection.
		m.state = State{Kind: StateIdle}
	case ActionInitialize:
		m.state = State{Kind: StateInitializing}
	case ActionStartRedirect:
		m.state = State{Kind: StateRedirecting, DashboardURL: ev.DashboardURL}
	case ActionStartConnect:
		m.state = State{Kind: StateConnecting, ConnectorID: ev.ConnectorID}
	case ActionStartConfiguringPermissions:
		m.state = State{Kind: StateConfiguringPermissions, SmartAccountAddress: ev.SmartAccountAddress}
	case ActionSetConnected:
		m.state = State{Kind: StateConnected, Account: ev.Account, SigningClient: ev.SigningClient}
	case ActionSetError:
		m.state = State{Kind: StateError, Message: ev.Message}
	}

	return m.state, nil
}
