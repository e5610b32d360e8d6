package grant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	abstraxion "github.com/burnt-labs/abstraxion-core"
	"github.com/burnt-labs/abstraxion-core/chain"
)

// ClientConfig configures a grant Client.
type ClientConfig struct {
	// RestURL is the chain's LCD/REST endpoint.
	RestURL string

	// Query issues treasury smart queries. Built from RestURL when nil.
	Query *chain.QueryClient

	// DaodaoIndexerURL, when set, is tried for treasury grant policies
	// before the on-chain query.
	DaodaoIndexerURL string

	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client

	// Timeout applies when no HTTPClient is supplied (default 30s).
	Timeout time.Duration

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Client implements abstraxion.GrantClient: it builds grant messages,
// translates treasury policies, and validates authz and fee grants against
// chain state.
type Client struct {
	restURL    string
	query      *chain.QueryClient
	daodaoURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a grant client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.RestURL == "" {
		return nil, fmt.Errorf("rest URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	query := config.Query
	if query == nil {
		var err error
		query, err = chain.NewQueryClient(chain.QueryClientConfig{
			RestURL:    config.RestURL,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		restURL:    strings.TrimRight(config.RestURL, "/"),
		query:      query,
		daodaoURL:  strings.TrimRight(config.DaodaoIndexerURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BuildGrantMessages implements abstraxion.GrantClient.
func (c *Client) BuildGrantMessages(granter, grantee string, expiration time.Time, cfg abstraxion.GrantConfig) ([]abstraxion.Msg, error) {
	return BuildGrantMessages(granter, grantee, expiration, cfg)
}

// ValidateFeeGrant fetches the on-chain allowance the fee granter holds for
// the granter and checks it against the requested actions. It returns nil
// when the grant covers the actions; every failure mode is a
// FeeGrantValidationError with a machine-readable code.
func (c *Client) ValidateFeeGrant(ctx context.Context, feeGranter, granter string, requestedActions []string, userAddress string) error {
	if feeGranter == "" || granter == "" {
		return &abstraxion.FeeGrantValidationError{
			Code:    abstraxion.ErrCodeInvalidInput,
			Message: "fee granter and granter addresses are required",
		}
	}
	if len(requestedActions) == 0 {
		return &abstraxion.FeeGrantValidationError{
			Code:    abstraxion.ErrCodeInvalidInput,
			Message: "no requested actions",
		}
	}

	endpoint := fmt.Sprintf(
		"%s/cosmos/feegrant/v1beta1/allowance/%s/%s",
		c.restURL,
		url.PathEscape(feeGranter),
		url.PathEscape(granter),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &abstraxion.FeeGrantValidationError{
			Code:    abstraxion.ErrCodeNetworkError,
			Message: err.Error(),
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &abstraxion.FeeGrantValidationError{
			Code:    abstraxion.ErrCodeNetworkError,
			Message: err.Error(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &abstraxion.FeeGrantValidationError{
			Code:    abstraxion.ErrCodeNetworkError,
			Message: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return &abstraxion.FeeGrantValidationError{
			Code:       abstraxion.ErrCodeHTTPError,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var envelope struct {
		Allowance *struct {
			Allowance json.RawMessage `json:"allowance"`
		} `json:"allowance"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &abstraxion.FeeGrantValidationError{
			Code:    abstraxion.ErrCodeMalformedResponse,
			Message: fmt.Sprintf("response is not JSON: %v", err),
		}
	}
	if envelope.Allowance == nil || len(envelope.Allowance.Allowance) == 0 {
		return &abstraxion.FeeGrantValidationError{
			Code:    abstraxion.ErrCodeMalformedResponse,
			Message: "response has no allowance",
		}
	}

	allowance, err := DecodeAllowance(envelope.Allowance.Allowance)
	if err != nil {
		return &abstraxion.FeeGrantValidationError{
			Code:    abstraxion.ErrCodeMalformedResponse,
			Message: err.Error(),
		}
	}

	ok, err := ValidateActions(requestedActions, allowance, userAddress)
	if err != nil {
		return &abstraxion.FeeGrantValidationError{
			Code:    abstraxion.ErrCodeMalformedResponse,
			Message: err.Error(),
		}
	}
	if !ok {
		return &abstraxion.FeeGrantValidationError{
			Code:    abstraxion.ErrCodeInvalidAllowance,
			Message: "allowance does not cover the requested actions",
		}
	}
	return nil
}

// HasActiveGrants implements abstraxion.GrantClient: it reports whether at
// least one unexpired authz grant from granter to grantee exists.
func (c *Client) HasActiveGrants(ctx context.Context, granter, grantee string) (bool, error) {
	if granter == "" || grantee == "" {
		return false, fmt.Errorf("granter and grantee addresses are required")
	}

	endpoint := fmt.Sprintf(
		"%s/cosmos/authz/v1beta1/grants?granter=%s&grantee=%s",
		c.restURL,
		url.QueryEscape(granter),
		url.QueryEscape(grantee),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create grants request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("grants request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read grants response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("grants query returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Grants []struct {
			Expiration *time.Time `json:"expiration"`
		} `json:"grants"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return false, fmt.Errorf("malformed grants response: %w", err)
	}

	now := time.Now()
	for _, g := range decoded.Grants {
		if g.Expiration == nil || g.Expiration.After(now) {
			return true, nil
		}
	}
	return false, nil
}
