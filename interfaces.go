package abstraxion

import (
	"context"
	"time"

	"github.com/burnt-labs/abstraxion-core/authenticator"
)

// DiscoveryStrategy looks up existing smart accounts for a credential.
// Implementations must never block indefinitely and must never mutate
// shared state; callers bound each call with a context deadline.
type DiscoveryStrategy interface {
	// Name identifies the strategy in logs and aggregate errors.
	Name() string

	// Fetch returns every smart account registered for the credential.
	// An empty slice with a nil error means no account exists, which is a
	// normal signal feeding the create-new-account path. A non-nil error
	// means the backend itself failed.
	Fetch(ctx context.Context, credential string, authType authenticator.Type) ([]SmartAccountWithCodeID, error)
}

// GrantClient builds and validates delegation messages.
type GrantClient interface {
	// BuildGrantMessages turns a manual grant config into authz grant
	// messages. An empty config yields an empty slice, not an error.
	BuildGrantMessages(granter, grantee string, expiration time.Time, cfg GrantConfig) ([]Msg, error)

	// BuildTreasuryGrantMessages derives grant messages from the policy a
	// treasury contract declares on-chain. Callers fall back to
	// BuildGrantMessages when it fails.
	BuildTreasuryGrantMessages(ctx context.Context, treasury, granter, grantee string, expiration time.Time) ([]Msg, error)

	// HasActiveGrants reports whether at least one unexpired authz grant
	// from granter to grantee exists on-chain.
	HasActiveGrants(ctx context.Context, granter, grantee string) (bool, error)
}

// Keypair is a session keypair acting as grantee. Implementations hold the
// private key; the orchestrator only ever sees this interface.
type Keypair interface {
	Address() string
	PublicKey() []byte
	Sign(ctx context.Context, msg []byte) ([]byte, error)
}

// SessionManager persists the session keypair and granter address and knows
// how to re-validate or abandon them.
type SessionManager interface {
	// LocalKeypair returns the persisted session keypair, or (nil, nil)
	// when none has been stored yet.
	LocalKeypair(ctx context.Context) (Keypair, error)

	// GenerateAndStoreTempAccount creates and persists a fresh session
	// keypair, replacing any existing one.
	GenerateAndStoreTempAccount(ctx context.Context) (Keypair, error)

	// Granter returns the persisted granter address, or "" when none is set.
	Granter(ctx context.Context) (string, error)

	// SetGranter persists the granter address. Call only after the
	// corresponding grant broadcast succeeded.
	SetGranter(ctx context.Context, granter string) error

	// Authenticate re-validates the persisted session against on-chain
	// grants.
	Authenticate(ctx context.Context) error

	// Logout removes the persisted keypair and granter.
	Logout(ctx context.Context) error

	// DashboardRedirectURL builds the URL of the external dashboard that
	// performs authorization in the redirect flow.
	DashboardRedirectURL(grantee, redirectURI string, cfg GrantConfig) (string, error)
}

// StorageStrategy is the key/value persistence collaborator. A missing key
// reads as the empty string with no error.
type StorageStrategy interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// MessageSigner signs arbitrary bytes with the connected credential.
type MessageSigner interface {
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// ConnectResult is what a connector yields: the credential it controls plus
// a signing capability over it.
type ConnectResult struct {
	Credential string
	Signer     MessageSigner
	Metadata   map[string]string
}

// Connector obtains a credential and signing capability from an external
// wallet, social login, or passkey flow.
type Connector interface {
	// ID identifies the connector for diagnostics and state reporting.
	ID() string

	Connect(ctx context.Context, chainID string) (*ConnectResult, error)
}

// Signer signs and broadcasts chain messages on behalf of the smart account.
// The orchestrator uses it to submit grant transactions.
type Signer interface {
	Address() string
	SignAndBroadcast(ctx context.Context, msgs []Msg, memo string) (*BroadcastResult, error)
}

// SigningClient is the per-connection signing handle handed to callers in
// the connected state. It is created once per successful connection and
// discarded on reset or error.
type SigningClient interface {
	GranteeAddress() string
	Granter() string
	SignAndBroadcast(ctx context.Context, msgs []Msg, memo string) (*BroadcastResult, error)
}

// AccountCreator creates a new smart account for a credential that has none.
type AccountCreator interface {
	CreateAccount(ctx context.Context, credential string, authType authenticator.Type, salt string) (*SmartAccountWithCodeID, error)
}

// SigningClientFactory builds the SigningClient for a connected session.
type SigningClientFactory func(ctx context.Context, keypair Keypair, granter string) (SigningClient, error)

// GrantSignerFactory builds the Signer used to broadcast grant messages for
// a freshly connected account.
type GrantSignerFactory func(ctx context.Context, account AccountInfo, conn *ConnectResult) (Signer, error)
