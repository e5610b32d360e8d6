package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	abstraxion "github.com/burnt-labs/abstraxion-core"
)

// Storage keys for the persisted session. These names are shared with the
// other Abstraxion SDKs so sessions survive implementation swaps.
const (
	GranterKey     = "xion-authz-granter-account"
	TempAccountKey = "xion-authz-temp-account"
)

// GrantChecker reports whether an unexpired authz grant exists on-chain.
type GrantChecker interface {
	HasActiveGrants(ctx context.Context, granter, grantee string) (bool, error)
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Storage persists the keypair and granter address.
	Storage abstraxion.StorageStrategy

	// AddressPrefix is the bech32 prefix for session addresses.
	AddressPrefix string

	// Grants re-validates persisted sessions against the chain.
	Grants GrantChecker

	// DashboardURL is the base URL of the authorization dashboard used by
	// the redirect flow (optional).
	DashboardURL string

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Manager implements abstraxion.SessionManager on top of a storage
// strategy.
type Manager struct {
	storage      abstraxion.StorageStrategy
	prefix       string
	grants       GrantChecker
	dashboardURL string
	logger       *zap.Logger
}

// NewManager creates a session manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Storage == nil {
		return nil, fmt.Errorf("storage strategy is required")
	}
	if config.AddressPrefix == "" {
		return nil, fmt.Errorf("address prefix is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		storage:      config.Storage,
		prefix:       config.AddressPrefix,
		grants:       config.Grants,
		dashboardURL: strings.TrimRight(config.DashboardURL, "/"),
		logger:       logger,
	}, nil
}

// LocalKeypair returns the persisted session keypair, or (nil, nil) when
// none has been stored.
func (m *Manager) LocalKeypair(ctx context.Context) (abstraxion.Keypair, error) {
	serialized, err := m.storage.GetItem(ctx, TempAccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session keypair: %w", err)
	}
	if serialized == "" {
		return nil, nil
	}
	kp, err := KeypairFromHex(m.prefix, serialized)
	if err != nil {
		return nil, fmt.Errorf("persisted session keypair is corrupt: %w", err)
	}
	return kp, nil
}

// GenerateAndStoreTempAccount creates and persists a fresh session keypair,
// replacing any existing one.
func (m *Manager) GenerateAndStoreTempAccount(ctx context.Context) (abstraxion.Keypair, error) {
	kp, err := GenerateKeypair(m.prefix)
	if err != nil {
		return nil, err
	}
	if err := m.storage.SetItem(ctx, TempAccountKey, kp.ExportHex()); err != nil {
		return nil, fmt.Errorf("failed to persist session keypair: %w", err)
	}
	m.logger.Debug("generated session keypair", zap.String("address", kp.Address()))
	return kp, nil
}

// Granter returns the persisted granter address, or "" when none is set.
func (m *Manager) Granter(ctx context.Context) (string, error) {
	granter, err := m.storage.GetItem(ctx, GranterKey)
	if err != nil {
		return "", fmt.Errorf("failed to read granter: %w", err)
	}
	return granter, nil
}

// SetGranter persists the granter address. Callers must only do this after
// the grant broadcast succeeded, so a persisted granter always has a grant.
func (m *Manager) SetGranter(ctx context.Context, granter string) error {
	if err := m.storage.SetItem(ctx, GranterKey, granter); err != nil {
		return fmt.Errorf("failed to persist granter: %w", err)
	}
	return nil
}

// Authenticate re-validates the persisted session against on-chain grants.
func (m *Manager) Authenticate(ctx context.Context) error {
	if m.grants == nil {
		return fmt.Errorf("no grant checker configured")
	}

	kp, err := m.LocalKeypair(ctx)
	if err != nil {
		return err
	}
	granter, err := m.Granter(ctx)
	if err != nil {
		return err
	}
	if kp == nil || granter == "" {
		return fmt.Errorf("no persisted session to authenticate")
	}

	active, err := m.grants.HasActiveGrants(ctx, granter, kp.Address())
	if err != nil {
		return fmt.Errorf("failed to check grants: %w", err)
	}
	if !active {
		return fmt.Errorf("no active grants from %s to %s", granter, kp.Address())
	}
	return nil
}

// Logout removes the persisted keypair and granter.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.storage.RemoveItem(ctx, TempAccountKey); err != nil {
		return fmt.Errorf("failed to remove session keypair: %w", err)
	}
	if err := m.storage.RemoveItem(ctx, GranterKey); err != nil {
		return fmt.Errorf("failed to remove granter: %w", err)
	}
	return nil
}

// DashboardRedirectURL builds the dashboard URL that performs authorization
// in the redirect flow. The grant config rides along as query parameters so
// the dashboard can present the requested permissions.
func (m *Manager) DashboardRedirectURL(grantee, redirectURI string, cfg abstraxion.GrantConfig) (string, error) {
	if m.dashboardURL == "" {
		return "", fmt.Errorf("no dashboard URL configured")
	}
	if grantee == "" {
		return "", fmt.Errorf("grantee address is required")
	}

	params := url.Values{}
	params.Set("grantee", grantee)
	if redirectURI != "" {
		params.Set("redirect_uri", redirectURI)
	}
	if cfg.Treasury != "" {
		params.Set("treasury", cfg.Treasury)
	}
	if len(cfg.Contracts) > 0 {
		contracts, err := json.Marshal(cfg.Contracts)
		if err != nil {
			return "", fmt.Errorf("failed to encode contract grants: %w", err)
		}
		params.Set("contracts", string(contracts))
	}
	if len(cfg.Bank) > 0 {
		bank, err := json.Marshal(cfg.Bank)
		if err != nil {
			return "", fmt.Errorf("failed to encode bank grants: %w", err)
		}
		params.Set("bank", string(bank))
	}
	if cfg.Stake {
		params.Set("stake", "true")
	}

	return m.dashboardURL + "?" + params.Encode(), nil
}
