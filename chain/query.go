package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrContractNotFound reports that no contract is deployed at the queried
// address. Discovery treats this as "no account", not as a failure.
var ErrContractNotFound = errors.New("contract not found")

// QueryError is a transport or chain-side failure of a smart query.
type QueryError struct {
	StatusCode int
	Message    string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("smart query failed (%d): %s", e.StatusCode, e.Message)
}

// QueryClientConfig configures a QueryClient.
type QueryClientConfig struct {
	// RestURL is the base URL of the chain's LCD/REST endpoint.
	RestURL string

	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client

	// Timeout applies when no HTTPClient is supplied (default 30s).
	Timeout time.Duration

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// QueryClient issues CosmWasm smart queries over the chain REST API.
type QueryClient struct {
	restURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewQueryClient creates a query client for the given REST endpoint.
func NewQueryClient(config QueryClientConfig) (*QueryClient, error) {
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

	return &QueryClient{
		restURL:    strings.TrimRight(config.RestURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// lcdError is the error envelope the REST endpoint returns on failure.
type lcdError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SmartQuery runs a smart query against a contract and decodes the
// response's data field into out. A missing contract maps to
// ErrContractNotFound; other failures map to QueryError.
func (c *QueryClient) SmartQuery(ctx context.Context, contractAddr string, query any, out any) error {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to encode smart query: %w", err)
	}

	endpoint := fmt.Sprintf(
		"%s/cosmwasm/wasm/v1/contract/%s/smart/%s",
		c.restURL,
		url.PathEscape(contractAddr),
		url.PathEscape(base64.StdEncoding.EncodeToString(queryJSON)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create smart query request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("smart query request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read smart query response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var lcdErr lcdError
		message := string(body)
		if json.Unmarshal(body, &lcdErr) == nil && lcdErr.Message != "" {
			message = lcdErr.Message
		}
		if resp.StatusCode == http.StatusNotFound || strings.Contains(message, "not found") {
			c.logger.Debug("contract not found",
				zap.String("contract", contractAddr),
				zap.Int("status", resp.StatusCode))
			return ErrContractNotFound
		}
		return &QueryError{StatusCode: resp.StatusCode, Message: message}
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode smart query envelope: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode smart query data: %w", err)
	}
	return nil
}

// ContractInfo is the chain's metadata for a deployed contract.
type ContractInfo struct {
	CodeID  uint64 `json:"code_id,string"`
	Creator string `json:"creator"`
	Label   string `json:"label"`
}

// GetContractInfo fetches contract metadata. A missing contract maps to
// ErrContractNotFound.
func (c *QueryClient) GetContractInfo(ctx context.Context, contractAddr string) (*ContractInfo, error) {
	endpoint := fmt.Sprintf("%s/cosmwasm/wasm/v1/contract/%s", c.restURL, url.PathEscape(contractAddr))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contract info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var lcdErr lcdError
		message := string(body)
		if json.Unmarshal(body, &lcdErr) == nil && lcdErr.Message != "" {
			message = lcdErr.Message
		}
		if resp.StatusCode == http.StatusNotFound || strings.Contains(message, "not found") {
			return nil, ErrContractNotFound
		}
		return nil, &QueryError{StatusCode: resp.StatusCode, Message: message}
	}

	var envelope struct {
		ContractInfo ContractInfo `json:"contract_info"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode contract info: %w", err)
	}
	return &envelope.ContractInfo, nil
}
