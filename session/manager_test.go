package session

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	abstraxion "github.com/burnt-labs/abstraxion-core"
	"github.com/burnt-labs/abstraxion-core/storage"
)

type stubGrantChecker struct {
	active bool
	err    error
	calls  int
}

func (s *stubGrantChecker) HasActiveGrants(_ context.Context, granter, grantee string) (bool, error) {
	s.calls++
	return s.active, s.err
}

func newTestManager(t *testing.T, grants GrantChecker) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{
		Storage:       storage.NewMemoryStorage(),
		AddressPrefix: "xion",
		Grants:        grants,
		DashboardURL:  "https://settings.example.com/",
	})
	require.NoError(t, err)
	return m
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(ManagerConfig{AddressPrefix: "xion"})
	assert.ErrorContains(t, err, "storage strategy is required")

	_, err = NewManager(ManagerConfig{Storage: storage.NewMemoryStorage()})
	assert.ErrorContains(t, err, "address prefix is required")
}

func TestLocalKeypairLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	// Nothing persisted yet.
	kp, err := m.LocalKeypair(ctx)
	require.NoError(t, err)
	assert.Nil(t, kp)

	generated, err := m.GenerateAndStoreTempAccount(ctx)
	require.NoError(t, err)

	restored, err := m.LocalKeypair(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, generated.Address(), restored.Address())

	// Regenerating replaces the stored keypair.
	replaced, err := m.GenerateAndStoreTempAccount(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, generated.Address(), replaced.Address())

	restored, err = m.LocalKeypair(ctx)
	require.NoError(t, err)
	assert.Equal(t, replaced.Address(), restored.Address())
}

func TestLocalKeypairCorruptValue(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	m, err := NewManager(ManagerConfig{Storage: store, AddressPrefix: "xion"})
	require.NoError(t, err)

	require.NoError(t, store.SetItem(ctx, TempAccountKey, "garbage"))
	_, err = m.LocalKeypair(ctx)
	assert.ErrorContains(t, err, "corrupt")
}

func TestGranterRoundtrip(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	granter, err := m.Granter(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", granter)

	require.NoError(t, m.SetGranter(ctx, "xion1granter"))
	granter, err = m.Granter(ctx)
	require.NoError(t, err)
	assert.Equal(t, "xion1granter", granter)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	checker := &stubGrantChecker{active: true}
	m := newTestManager(t, checker)

	// Nothing persisted.
	assert.ErrorContains(t, m.Authenticate(ctx), "no persisted session")

	_, err := m.GenerateAndStoreTempAccount(ctx)
	require.NoError(t, err)
	require.NoError(t, m.SetGranter(ctx, "xion1granter"))

	require.NoError(t, m.Authenticate(ctx))
	assert.Equal(t, 1, checker.calls)

	// Expired or revoked grants fail authentication.
	checker.active = false
	assert.ErrorContains(t, m.Authenticate(ctx), "no active grants")
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	_, err := m.GenerateAndStoreTempAccount(ctx)
	require.NoError(t, err)
	require.NoError(t, m.SetGranter(ctx, "xion1granter"))

	require.NoError(t, m.Logout(ctx))

	kp, err := m.LocalKeypair(ctx)
	require.NoError(t, err)
	assert.Nil(t, kp)
	granter, err := m.Granter(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", granter)
}

func TestDashboardRedirectURL(t *testing.T) {
	m := newTestManager(t, nil)

	raw, err := m.DashboardRedirectURL("xion1grantee", "https://app.example.com/cb", abstraxion.GrantConfig{
		Treasury: "xion1treasury",
		Contracts: []abstraxion.ContractGrantDescription{
			{Address: "xion1contract"},
		},
		Bank: []abstraxion.SpendLimit{
			{Denom: "uxion", Amount: "1000"},
		},
		Stake: true,
	})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "xion1grantee", q.Get("grantee"))
	assert.Equal(t, "https://app.example.com/cb", q.Get("redirect_uri"))
	assert.Equal(t, "xion1treasury", q.Get("treasury"))
	assert.Equal(t, "true", q.Get("stake"))
	assert.JSONEq(t, `["xion1contract"]`, q.Get("contracts"))
	assert.JSONEq(t, `[{"denom":"uxion","amount":"1000"}]`, q.Get("bank"))
}

func TestDashboardRedirectURLErrors(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.DashboardRedirectURL("", "", abstraxion.GrantConfig{})
	assert.ErrorContains(t, err, "grantee address is required")

	noDash, err := NewManager(ManagerConfig{Storage: storage.NewMemoryStorage(), AddressPrefix: "xion"})
	require.NoError(t, err)
	_, err = noDash.DashboardRedirectURL("xion1grantee", "", abstraxion.GrantConfig{})
	assert.ErrorContains(t, err, "no dashboard URL configured")
}
