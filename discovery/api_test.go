package discovery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	abstraxion "github.com/burnt-labs/abstraxion-core"
	"github.com/burnt-labs/abstraxion-core/authenticator"
)

// makeJWT builds an unsigned test token with the given claims payload.
func makeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func newAPIStrategy(t *testing.T, handler http.HandlerFunc) *APIStrategy {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	strategy, err := NewAPIStrategy(APIConfig{BaseURL: server.URL})
	require.NoError(t, err)
	return strategy
}

func TestParseJWTClaims(t *testing.T) {
	claims, err := parseJWTClaims(makeJWT(t, map[string]any{"aud": "project-x", "sub": "user-1"}))
	require.NoError(t, err)
	assert.Equal(t, "project-x", string(claims.Aud))
	assert.Equal(t, "user-1", claims.Sub)

	// aud may arrive as an array; the first entry wins.
	claims, err = parseJWTClaims(makeJWT(t, map[string]any{"aud": []string{"a", "b"}, "sub": "user-1"}))
	require.NoError(t, err)
	assert.Equal(t, "a", string(claims.Aud))

	_, err = parseJWTClaims("only.two")
	assert.ErrorContains(t, err, "not a JWT")

	_, err = parseJWTClaims(makeJWT(t, map[string]any{"aud": "project-x"}))
	assert.ErrorContains(t, err, "missing aud or sub")
}

func TestAPIFetch(t *testing.T) {
	token := makeJWT(t, map[string]any{"aud": "project-x", "sub": "user-1"})
	strategy := newAPIStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jwt-accounts/project-x/user-1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"accounts": []map[string]any{{
				"id":     "xion1jwt",
				"codeId": 793,
			}},
		})
	})

	accounts, err := strategy.Fetch(context.Background(), token, authenticator.TypeJWT)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "xion1jwt", accounts[0].ID)
	assert.Equal(t, uint64(793), accounts[0].CodeID)
}

func TestAPIFetchNotFound(t *testing.T) {
	token := makeJWT(t, map[string]any{"aud": "project-x", "sub": "user-1"})
	strategy := newAPIStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	accounts, err := strategy.Fetch(context.Background(), token, authenticator.TypeJWT)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestAPIFetchHTTPError(t *testing.T) {
	token := makeJWT(t, map[string]any{"aud": "project-x", "sub": "user-1"})
	strategy := newAPIStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := strategy.Fetch(context.Background(), token, authenticator.TypeJWT)
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusInternalServerError, backendErr.StatusCode)
}

func TestAPIFetchNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	strategy, err := NewAPIStrategy(APIConfig{BaseURL: server.URL})
	require.NoError(t, err)
	server.Close()

	token := makeJWT(t, map[string]any{"aud": "project-x", "sub": "user-1"})
	_, err = strategy.Fetch(context.Background(), token, authenticator.TypeJWT)

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Zero(t, backendErr.StatusCode, "transport failures carry no HTTP status")
	assert.ErrorContains(t, err, "network failure")
}

func TestAPIFetchRejectsNonJWT(t *testing.T) {
	strategy := newAPIStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for a non-JWT credential")
	})

	_, err := strategy.Fetch(context.Background(), "0xabc", authenticator.TypeJWT)
	var backendErr *BackendError
	assert.ErrorAs(t, err, &backendErr)
}

func TestCreateAccount(t *testing.T) {
	strategy := newAPIStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/accounts", r.URL.Path)

		var body struct {
			Salt          string `json:"salt"`
			Authenticator struct {
				Type  string `json:"type"`
				Value string `json:"value"`
			} `json:"authenticator"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body.Salt, "a random salt is generated when none is given")
		assert.Equal(t, "EthWallet", body.Authenticator.Type)
		assert.Equal(t, "0xabc", body.Authenticator.Value)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"address": "xion1new", "codeId": 793})
	})

	created, err := strategy.CreateAccount(context.Background(), "0xabc", authenticator.TypeEthWallet, "")
	require.NoError(t, err)
	assert.Equal(t, "xion1new", created.ID)
	assert.Equal(t, uint64(793), created.CodeID)
	require.Len(t, created.Authenticators, 1)
	assert.Equal(t, "0xabc", created.Authenticators[0].Authenticator)
}

func TestCreateAccountFailure(t *testing.T) {
	strategy := newAPIStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "salt already used", http.StatusConflict)
	})

	_, err := strategy.CreateAccount(context.Background(), "0xabc", authenticator.TypeEthWallet, "fixed-salt")
	var creationErr *abstraxion.AccountCreationError
	require.ErrorAs(t, err, &creationErr)
	assert.Equal(t, "EthWallet", creationErr.AuthenticatorType)
	assert.Contains(t, creationErr.Reason, "409")
}

func TestCreateAccountMissingAddress(t *testing.T) {
	strategy := newAPIStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"codeId": 793})
	})

	_, err := strategy.CreateAccount(context.Background(), "0xabc", authenticator.TypeEthWallet, "")
	var creationErr *abstraxion.AccountCreationError
	require.ErrorAs(t, err, &creationErr)
	assert.Contains(t, creationErr.Reason, "no account address")
}
