package discovery

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
	"github.com/burnt-labs/abstraxion-core/authenticator"
)

// IndexerConfig configures an IndexerStrategy.
type IndexerConfig struct {
	// BaseURL is the indexer's base URL.
	BaseURL string

	// Name overrides the diagnostic name (default "indexer").
	Name string

	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client

	// Timeout applies when no HTTPClient is supplied (default 30s).
	Timeout time.Duration

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// IndexerStrategy looks up smart accounts through an off-chain indexer's
// REST lookup endpoint. A 404 is the indexer's normal "not found" answer
// and yields an empty result; any other failure is a BackendError so the
// composite can fall back.
type IndexerStrategy struct {
	baseURL    string
	name       string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewIndexerStrategy creates an indexer-backed discovery strategy.
func NewIndexerStrategy(config IndexerConfig) (*IndexerStrategy, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("indexer base URL is required")
	}

	name := config.Name
	if name == "" {
		name = "indexer"
	}
	httpClient, logger := httpDefaults(config.HTTPClient, config.Timeout, config.Logger)

	return &IndexerStrategy{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		name:       name,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name implements abstraxion.DiscoveryStrategy.
func (s *IndexerStrategy) Name() string {
	return s.name
}

// indexerResponse is the shape of the details endpoint's response.
type indexerResponse struct {
	SmartAccounts []struct {
		ID             string                     `json:"id"`
		CodeID         uint64                     `json:"codeId"`
		Authenticators []abstraxion.Authenticator `json:"authenticators"`
	} `json:"smartAccounts"`
}

// Fetch implements abstraxion.DiscoveryStrategy.
func (s *IndexerStrategy) Fetch(ctx context.Context, credential string, _ authenticator.Type) ([]abstraxion.SmartAccountWithCodeID, error) {
	endpoint := fmt.Sprintf(
		"%s/authenticators/%s/smartAccounts/details",
		s.baseURL,
		url.PathEscape(credential),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &BackendError{Strategy: s.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{Strategy: s.name, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Strategy: s.name, Err: err}
	}

	var decoded indexerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &BackendError{Strategy: s.name, Err: fmt.Errorf("malformed indexer response: %w", err)}
	}

	accounts := make([]abstraxion.SmartAccountWithCodeID, 0, len(decoded.SmartAccounts))
	for _, record := range decoded.SmartAccounts {
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
