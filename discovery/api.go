package discovery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	abstraxion "github.com/burnt-labs/abstraxion-core"
	"github.com/burnt-labs/abstraxion-core/authenticator"
)

// APIConfig configures an APIStrategy.
type APIConfig struct {
	// BaseURL is the account-abstraction API's base URL.
	BaseURL string

	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client

	// Timeout applies when no HTTPClient is supplied (default 30s).
	Timeout time.Duration

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// APIStrategy resolves JWT credentials through the account-abstraction REST
// API. It parses the token's aud and sub claims and looks the account up by
// them. The same service creates new accounts, so APIStrategy also
// implements abstraxion.AccountCreator.
type APIStrategy struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAPIStrategy creates an API-backed discovery strategy.
func NewAPIStrategy(config APIConfig) (*APIStrategy, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api base URL is required")
	}
	httpClient, logger := httpDefaults(config.HTTPClient, config.Timeout, config.Logger)

	return &APIStrategy{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name implements abstraxion.DiscoveryStrategy.
func (s *APIStrategy) Name() string {
	return "api"
}

// jwtClaims are the claims the lookup needs. aud may be a string or an
// array of strings in the wild; UnmarshalJSON flattens both.
type jwtClaims struct {
	Aud audience `json:"aud"`
	Sub string   `json:"sub"`
}

type audience string

func (a *audience) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = audience(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	if len(many) == 0 {
		return fmt.Errorf("aud claim is empty")
	}
	*a = audience(many[0])
	return nil
}

// parseJWTClaims decodes the payload segment of a JWT without verifying the
// signature; verification is the API's job.
func parseJWTClaims(token string) (*jwtClaims, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("credential is not a JWT: %d segments", len(segments))
	}
	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT payload: %w", err)
	}
	var claims jwtClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse JWT claims: %w", err)
	}
	if claims.Aud == "" || claims.Sub == "" {
		return nil, fmt.Errorf("JWT is missing aud or sub claim")
	}
	return &claims, nil
}

type apiAccountsResponse struct {
	Accounts []struct {
		ID             string                     `json:"id"`
		CodeID         uint64                     `json:"codeId"`
		Authenticators []abstraxion.Authenticator `json:"authenticators"`
	} `json:"accounts"`
}

// Fetch implements abstraxion.DiscoveryStrategy. Transport failures and
// HTTP failures are distinguished by the BackendError's StatusCode.
func (s *APIStrategy) Fetch(ctx context.Context, credential string, _ authenticator.Type) ([]abstraxion.SmartAccountWithCodeID, error) {
	claims, err := parseJWTClaims(credential)
	if err != nil {
		return nil, &BackendError{Strategy: s.Name(), Err: err}
	}

	endpoint := fmt.Sprintf(
		"%s/api/v1/jwt-accounts/%s/%s",
		s.baseURL,
		url.PathEscape(string(claims.Aud)),
		url.PathEscape(claims.Sub),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &BackendError{Strategy: s.Name(), Err: fmt.Errorf("network failure: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{Strategy: s.Name(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Strategy: s.Name(), Err: err}
	}

	var decoded apiAccountsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &BackendError{Strategy: s.Name(), Err: fmt.Errorf("malformed api response: %w", err)}
	}

	accounts := make([]abstraxion.SmartAccountWithCodeID, 0, len(decoded.Accounts))
	for _, record := range decoded.Accounts {
		accounts = append(accounts, abstraxion.SmartAccountWithCodeID{
			SmartAccount: abstraxion.SmartAccount{
				ID:             record.ID,
				Authenticators: record.Authenticators,
			},
			CodeID: record.CodeID,
		})
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return accounts, nil
}

type createAccountRequest struct {
	Salt          string `json:"salt"`
	Authenticator struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"authenticator"`
}

type createAccountResponse struct {
	Address string `json:"address"`
	CodeID  uint64 `json:"codeId"`
}

// CreateAccount implements abstraxion.AccountCreator by asking the API to
// instantiate a smart account for the credential. When salt is empty a
// random one is generated.
func (s *APIStrategy) CreateAccount(ctx context.Context, credential string, authType authenticator.Type, salt string) (*abstraxion.SmartAccountWithCodeID, error) {
	if salt == "" {
		salt = uuid.NewString()
	}

	var reqBody createAccountRequest
	reqBody.Salt = salt
	reqBody.Authenticator.Type = authType.String()
	reqBody.Authenticator.Value = credential

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/accounts", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create account request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &abstraxion.AccountCreationError{
			AuthenticatorType: authType.String(),
			Reason:            fmt.Sprintf("network failure: %v", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read create response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &abstraxion.AccountCreationError{
			AuthenticatorType: authType.String(),
			Reason:            fmt.Sprintf("api returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var created createAccountResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, &abstraxion.AccountCreationError{
			AuthenticatorType: authType.String(),
			Reason:            fmt.Sprintf("malformed create response: %v", err),
		}
	}
	if created.Address == "" {
		return nil, &abstraxion.AccountCreationError{
			AuthenticatorType: authType.String(),
			Reason:            "api returned no account address",
		}
	}

	s.logger.Info("created smart account",
		zap.String("address", created.Address),
		zap.String("type", authType.String()))

	return &abstraxion.SmartAccountWithCodeID{
		SmartAccount: abstraxion.SmartAccount{
			ID: created.Address,
			Authenticators: []abstraxion.Authenticator{{
				ID:                 "0",
				Type:               authType.String(),
				Authenticator:      credential,
				AuthenticatorIndex: 0,
			}},
		},
		CodeID: created.CodeID,
	}, nil
}
