// Package abstraxion lets a short-lived session keypair act on behalf of a
// long-lived smart account within strict, revocable bounds: it discovers
// smart accounts across possibly-unavailable backends, builds and validates
// the delegation grants that scope the session key, and drives the
// connect, discover, authorize, ready sequence as an explicit state machine.
package abstraxion

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/burnt-labs/abstraxion-core/authenticator"
	"github.com/burnt-labs/abstraxion-core/chain"
)

// defaultGrantExpiration bounds how long session grants stay valid when the
// caller does not choose an expiration.
const defaultGrantExpiration = 30 * 24 * time.Hour

// creatableTypes are the authenticator types with a server-side account
// creation path. Passkeys need a browser-side ceremony and cannot be
// created here.
var creatableTypes = map[authenticator.Type]bool{
	authenticator.TypeSecp256K1: true,
	authenticator.TypeEthWallet: true,
	authenticator.TypeJWT:       true,
}

// OrchestratorConfig wires the orchestrator's collaborators. Discovery,
// Grants, Session, and NewSigningClient are required; Creator is only
// needed when new accounts may have to be created.
type OrchestratorConfig struct {
	// ChainID is passed to connectors.
	ChainID string

	// Discovery resolves credentials to existing smart accounts, usually a
	// discovery.CompositeStrategy.
	Discovery DiscoveryStrategy

	// Grants builds and validates delegation messages.
	Grants GrantClient

	// Session persists the keypair/granter pairing.
	Session SessionManager

	// Creator creates smart accounts for credentials that have none
	// (optional).
	Creator AccountCreator

	// GrantConfig is the authority requested for the session key.
	GrantConfig GrantConfig

	// GrantExpiration bounds grant validity (default 30 days).
	GrantExpiration time.Duration

	// NewSigningClient builds the per-connection signing handle.
	NewSigningClient SigningClientFactory

	// NewGrantSigner builds the signer that broadcasts grant messages for a
	// freshly connected account (optional; required when grants must be
	// broadcast).
	NewGrantSigner GrantSignerFactory

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// ConnectOutcome is what Connect resolves: the smart account, whether it
// was freshly created, and the session keypair acting as grantee.
type ConnectOutcome struct {
	Account           AccountInfo
	Created           bool
	Credential        string
	AuthenticatorType authenticator.Type
	Keypair           Keypair
	Conn              *ConnectResult
}

// Orchestrator sequences session-restore, connect, discover-or-create,
// authorize, and redirect flows. It owns all state transitions; callers
// observe them through the state machine and must serialize user-triggered
// actions themselves, since concurrent Connect calls are not deduplicated.
type Orchestrator struct {
	config  OrchestratorConfig
	machine *StateMachine
	logger  *zap.Logger
}

// NewOrchestrator creates an orchestrator from its collaborators.
func NewOrchestrator(config OrchestratorConfig) (*Orchestrator, error) {
	if config.Discovery == nil {
		return nil, fmt.Errorf("discovery strategy is required")
	}
	if config.Grants == nil {
		return nil, fmt.Errorf("grant client is required")
	}
	if config.Session == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if config.NewSigningClient == nil {
		return nil, fmt.Errorf("signing client factory is required")
	}
	if config.GrantExpiration == 0 {
		config.GrantExpiration = defaultGrantExpiration
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		config:  config,
		machine: NewStateMachine(),
		logger:  logger,
	}, nil
}

// State returns the current connection state.
func (o *Orchestrator) State() State {
	return o.machine.State()
}

// Machine exposes the state machine for callers that subscribe to it.
func (o *Orchestrator) Machine() *StateMachine {
	return o.machine
}

// advance dispatches a sequence of events, stopping on the first illegal
// transition.
func (o *Orchestrator) advance(events ...Event) error {
	for _, ev := range events {
		if _, err := o.machine.Dispatch(ev); err != nil {
			return err
		}
	}
	return nil
}

// fail moves the machine into the error state. Failures in terminal states
// are logged and otherwise ignored.
func (o *Orchestrator) fail(message string) {
	if _, err := o.machine.Dispatch(Event{Action: ActionSetError, Message: message}); err != nil {
		o.logger.Debug("error state unreachable", zap.String("message", message), zap.Error(err))
	}
}

// RestoreSession resumes a previously authorized session. It returns
// (false, nil) when nothing is persisted, which is the normal first-visit
// case, and (false, *SessionRestorationError) when a persisted session
// exists but its grants no longer validate; the stale session is cleared
// before returning. On success the machine lands in the connected state.
func (o *Orchestrator) RestoreSession(ctx context.Context) (bool, error) {
	keypair, err := o.config.Session.LocalKeypair(ctx)
	if err != nil {
		return false, err
	}
	granter, err := o.config.Session.Granter(ctx)
	if err != nil {
		return false, err
	}
	if keypair == nil || granter == "" {
		return false, nil
	}

	if err := o.config.Session.Authenticate(ctx); err != nil {
		o.logger.Info("persisted session failed re-validation, logging out",
			zap.String("granter", granter),
			zap.Error(err))
		if logoutErr := o.config.Session.Logout(ctx); logoutErr != nil {
			o.logger.Warn("failed to clear stale session", zap.Error(logoutErr))
		}
		return false, &SessionRestorationError{Reason: err.Error()}
	}

	signingClient, err := o.config.NewSigningClient(ctx, keypair, granter)
	if err != nil {
		return false, &SessionRestorationError{
			Reason: fmt.Sprintf("failed to build signing client: %v", err),
		}
	}

	account := &AccountInfo{Address: granter}
	if err := o.advance(
		Event{Action: ActionReset},
		Event{Action: ActionInitialize},
		Event{Action: ActionStartConnect},
		Event{Action: ActionStartConfiguringPermissions, SmartAccountAddress: granter},
		Event{Action: ActionSetConnected, Account: account, SigningClient: signingClient},
	); err != nil {
		return false, err
	}
	return true, nil
}

// Connect obtains a credential from the connector, classifies it, and
// resolves or creates the smart account it controls. The machine is left in
// the connecting state; ConnectAndSetup drives it the rest of the way.
func (o *Orchestrator) Connect(ctx context.Context, connector Connector) (*ConnectOutcome, error) {
	if connector == nil {
		return nil, fmt.Errorf("connector is required")
	}
	if err := o.advance(
		Event{Action: ActionReset},
		Event{Action: ActionInitialize},
		Event{Action: ActionStartConnect, ConnectorID: connector.ID()},
	); err != nil {
		return nil, err
	}

	conn, err := connector.Connect(ctx, o.config.ChainID)
	if err != nil {
		o.fail(fmt.Sprintf("connector %s failed: %v", connector.ID(), err))
		return nil, fmt.Errorf("connector %s failed: %w", connector.ID(), err)
	}

	authType := authenticator.Classify(conn.Credential)
	result, err := CheckAccountExists(ctx, o.config.Discovery, conn.Credential, authType)
	if err != nil {
		o.fail(fmt.Sprintf("account discovery failed: %v", err))
		return nil, fmt.Errorf("account discovery failed: %w", err)
	}

	outcome := &ConnectOutcome{
		Credential:        conn.Credential,
		AuthenticatorType: authType,
		Conn:              conn,
	}

	if result.Exists {
		outcome.Account = AccountInfo{
			Address:            result.SmartAccountAddress,
			CodeID:             result.CodeID,
			AuthenticatorIndex: result.AuthenticatorIndex,
		}
	} else {
		created, err := o.createAccount(ctx, conn.Credential, authType)
		if err != nil {
			o.fail(err.Error())
			return nil, err
		}
		outcome.Account = AccountInfo{Address: created.ID, CodeID: created.CodeID}
		outcome.Created = true
	}

	keypair, err := o.config.Session.LocalKeypair(ctx)
	if err != nil {
		o.fail(err.Error())
		return nil, err
	}
	if keypair == nil {
		keypair, err = o.config.Session.GenerateAndStoreTempAccount(ctx)
		if err != nil {
			o.fail(err.Error())
			return nil, err
		}
	}
	outcome.Keypair = keypair

	o.logger.Info("connected credential resolved",
		zap.String("connector", connector.ID()),
		zap.String("type", authType.String()),
		zap.String("account", outcome.Account.Address),
		zap.Bool("created", outcome.Created))
	return outcome, nil
}

// createAccount runs the type-specific creation path. Unsupported
// authenticator types fail explicitly; they are never silently skipped.
func (o *Orchestrator) createAccount(ctx context.Context, credential string, authType authenticator.Type) (*SmartAccountWithCodeID, error) {
	if !creatableTypes[authType] {
		return nil, &AccountCreationError{
			AuthenticatorType: authType.String(),
			Reason:            "authenticator type has no account creation path",
		}
	}
	if o.config.Creator == nil {
		return nil, &AccountCreationError{
			AuthenticatorType: authType.String(),
			Reason:            "no account creator configured",
		}
	}
	return o.config.Creator.CreateAccount(ctx, credential, authType, "")
}

// CreateGrants authorizes the session keypair on the smart account. It is
// idempotent: when the persisted granter already matches the target account
// it returns immediately without touching the chain. Messages come from the
// treasury policy when one is configured, falling back to the manual
// config; the granter address is persisted only after a successful
// broadcast, and an empty message set persists the granter without
// broadcasting at all.
func (o *Orchestrator) CreateGrants(ctx context.Context, account AccountInfo, keypair Keypair, signer Signer) error {
	if keypair == nil {
		return fmt.Errorf("session keypair is required")
	}

	granter, err := o.config.Session.Granter(ctx)
	if err != nil {
		return err
	}
	if granter != "" && chain.EqualAddresses(granter, account.Address) {
		o.logger.Debug("grants already in place", zap.String("granter", granter))
		return nil
	}

	msgs, err := o.buildGrantMessages(ctx, account.Address, keypair.Address())
	if err != nil {
		return err
	}

	if len(msgs) > 0 {
		if signer == nil {
			return fmt.Errorf("grant messages require a signer to broadcast")
		}
		res, err := signer.SignAndBroadcast(ctx, msgs, "abstraxion session grants")
		if err != nil {
			return fmt.Errorf("failed to broadcast grants: %w", err)
		}
		if !res.Succeeded() {
			return fmt.Errorf("grant transaction rejected (code %d): %s", res.Code, res.RawLog)
		}
		o.logger.Info("grants broadcast",
			zap.String("granter", account.Address),
			zap.String("grantee", keypair.Address()),
			zap.String("tx", res.TxHash))
	}

	return o.config.Session.SetGranter(ctx, account.Address)
}

// buildGrantMessages prefers the treasury policy and falls back to the
// manual config when the treasury query fails for any reason.
func (o *Orchestrator) buildGrantMessages(ctx context.Context, granter, grantee string) ([]Msg, error) {
	cfg := o.config.GrantConfig
	expiration := time.Now().Add(o.config.GrantExpiration)

	if cfg.Treasury != "" {
		msgs, err := o.config.Grants.BuildTreasuryGrantMessages(ctx, cfg.Treasury, granter, grantee, expiration)
		if err == nil {
			return msgs, nil
		}
		o.logger.Warn("treasury grant policy unavailable, using manual config",
			zap.String("treasury", cfg.Treasury),
			zap.Error(err))
	}

	return o.config.Grants.BuildGrantMessages(granter, grantee, expiration, cfg)
}

// ConnectAndSetup composes Connect, CreateGrants, and signing-client
// construction into one all-or-nothing outcome: any failure moves the
// machine into the error state and nothing partial is left behind.
func (o *Orchestrator) ConnectAndSetup(ctx context.Context, connector Connector) (State, error) {
	outcome, err := o.Connect(ctx, connector)
	if err != nil {
		return o.machine.State(), err
	}

	if err := o.advance(Event{
		Action:              ActionStartConfiguringPermissions,
		SmartAccountAddress: outcome.Account.Address,
	}); err != nil {
		return o.machine.State(), err
	}

	signer, err := o.grantSigner(ctx, outcome)
	if err != nil {
		o.fail(err.Error())
		return o.machine.State(), err
	}
	if err := o.CreateGrants(ctx, outcome.Account, outcome.Keypair, signer); err != nil {
		err = fmt.Errorf("failed to authorize session for %s: %w", outcome.Account.Address, err)
		o.fail(err.Error())
		return o.machine.State(), err
	}

	signingClient, err := o.config.NewSigningClient(ctx, outcome.Keypair, outcome.Account.Address)
	if err != nil {
		err = fmt.Errorf("failed to build signing client: %w", err)
		o.fail(err.Error())
		return o.machine.State(), err
	}

	account := outcome.Account
	if err := o.advance(Event{
		Action:        ActionSetConnected,
		Account:       &account,
		SigningClient: signingClient,
	}); err != nil {
		return o.machine.State(), err
	}
	return o.machine.State(), nil
}

// grantSigner builds the grant broadcaster lazily; flows that end up with
// no messages to broadcast work without one.
func (o *Orchestrator) grantSigner(ctx context.Context, outcome *ConnectOutcome) (Signer, error) {
	if o.config.NewGrantSigner == nil {
		return nil, nil
	}
	signer, err := o.config.NewGrantSigner(ctx, outcome.Account, outcome.Conn)
	if err != nil {
		return nil, fmt.Errorf("failed to build grant signer: %w", err)
	}
	return signer, nil
}

// InitiateRedirect starts the alternative flow where authorization happens
// on an external dashboard. It returns the dashboard URL and leaves the
// machine in the redirecting state.
func (o *Orchestrator) InitiateRedirect(ctx context.Context, redirectURI string) (string, error) {
	if err := o.advance(
		Event{Action: ActionReset},
		Event{Action: ActionInitialize},
	); err != nil {
		return "", err
	}

	keypair, err := o.config.Session.LocalKeypair(ctx)
	if err != nil {
		o.fail(err.Error())
		return "", err
	}
	if keypair == nil {
		keypair, err = o.config.Session.GenerateAndStoreTempAccount(ctx)
		if err != nil {
			o.fail(err.Error())
			return "", err
		}
	}

	dashboardURL, err := o.config.Session.DashboardRedirectURL(keypair.Address(), redirectURI, o.config.GrantConfig)
	if err != nil {
		o.fail(err.Error())
		return "", err
	}

	if err := o.advance(Event{Action: ActionStartRedirect, DashboardURL: dashboardURL}); err != nil {
		return "", err
	}
	return dashboardURL, nil
}

// CompleteRedirect consumes the dashboard's callback parameters. It fails
// when the dashboard never completed login; there is no silent empty
// success. On success the machine lands in the connected state.
func (o *Orchestrator) CompleteRedirect(ctx context.Context, params url.Values) (State, error) {
	granter := params.Get("granter")
	if params.Get("granted") != "true" || granter == "" {
		err := errors.New("redirect did not complete login: no granter in callback")
		o.fail(err.Error())
		return o.machine.State(), err
	}

	keypair, err := o.config.Session.LocalKeypair(ctx)
	if err != nil {
		o.fail(err.Error())
		return o.machine.State(), err
	}
	if keypair == nil {
		err := errors.New("no session keypair for redirect completion")
		o.fail(err.Error())
		return o.machine.State(), err
	}

	if err := o.advance(Event{
		Action:              ActionStartConfiguringPermissions,
		SmartAccountAddress: granter,
	}); err != nil {
		return o.machine.State(), err
	}

	// The dashboard already broadcast the grants; persisting the granter
	// here keeps the broadcast-before-persist ordering.
	if err := o.config.Session.SetGranter(ctx, granter); err != nil {
		o.fail(err.Error())
		return o.machine.State(), err
	}

	signingClient, err := o.config.NewSigningClient(ctx, keypair, granter)
	if err != nil {
		err = fmt.Errorf("failed to build signing client: %w", err)
		o.fail(err.Error())
		return o.machine.State(), err
	}

	if err := o.advance(Event{
		Action:        ActionSetConnected,
		Account:       &AccountInfo{Address: granter},
		SigningClient: signingClient,
	}); err != nil {
		return o.machine.State(), err
	}
	return o.machine.State(), nil
}

// Disconnect clears the persisted session and returns the machine to idle.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	if err := o.config.Session.Logout(ctx); err != nil {
		return err
	}
	_, err := o.machine.Dispatch(Event{Action: ActionReset})
	return err
}
