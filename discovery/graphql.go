package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	abstraxion "github.com/burnt-labs/abstraxion-core"
	"github.com/burnt-labs/abstraxion-core/authenticator"
)

// smartAccountsQuery filters smart accounts by registered authenticator.
const smartAccountsQuery = `query SmartAccounts($authenticator: String!) {
  smartAccounts(filter: {authenticators: {some: {authenticator: {equalTo: $authenticator}}}}) {
    nodes {
      id
      authenticators {
        nodes {
          id
          type
          authenticator
          authenticatorIndex
        }
      }
    }
  }
}`

// GraphQLConfig configures a GraphQLStrategy.
type GraphQLConfig struct {
	// URL is the GraphQL endpoint.
	URL string

	// CodeID is the contract code identity to stamp on results. The GraphQL
	// backend cannot supply it, so it must be configured externally.
	CodeID uint64

	// Name overrides the diagnostic name (default "graphql-indexer").
	Name string

	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client

	// Timeout applies when no HTTPClient is supplied (default 30s).
	Timeout time.Duration

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// GraphQLStrategy looks up smart accounts through a GraphQL indexer.
type GraphQLStrategy struct {
	url        string
	codeID     uint64
	name       string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGraphQLStrategy creates a GraphQL-backed discovery strategy.
func NewGraphQLStrategy(config GraphQLConfig) (*GraphQLStrategy, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("graphql URL is required")
	}
	if config.CodeID == 0 {
		return nil, fmt.Errorf("code ID is required: the graphql backend cannot supply it")
	}

	name := config.Name
	if name == "" {
		name = "graphql-indexer"
	}
	httpClient, logger := httpDefaults(config.HTTPClient, config.Timeout, config.Logger)

	return &GraphQLStrategy{
		url:        config.URL,
		codeID:     config.CodeID,
		name:       name,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name implements abstraxion.DiscoveryStrategy.
func (s *GraphQLStrategy) Name() string {
	return s.name
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		SmartAccounts struct {
			Nodes []struct {
				ID             string `json:"id"`
				Authenticators struct {
					Nodes []abstraxion.Authenticator `json:"nodes"`
				} `json:"authenticators"`
			} `json:"nodes"`
		} `json:"smartAccounts"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Fetch implements abstraxion.DiscoveryStrategy.
func (s *GraphQLStrategy) Fetch(ctx context.Context, credential string, _ authenticator.Type) ([]abstraxion.SmartAccountWithCodeID, error) {
	payload, err := json.Marshal(graphqlRequest{
		Query:     smartAccountsQuery,
		Variables: map[string]any{"authenticator": credential},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &BackendError{Strategy: s.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{Strategy: s.name, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Strategy: s.name, Err: err}
	}

	var decoded graphqlResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &BackendError{Strategy: s.name, Err: fmt.Errorf("malformed graphql response: %w", err)}
	}
	if len(decoded.Errors) > 0 {
		return nil, &BackendError{Strategy: s.name, Err: fmt.Errorf("graphql error: %s", decoded.Errors[0].Message)}
	}

	nodes := decoded.Data.SmartAccounts.Nodes
	accounts := make([]abstraxion.SmartAccountWithCodeID, 0, len(nodes))
	for _, node := range nodes {
		accounts = append(accounts, abstraxion.SmartAccountWithCodeID{
			SmartAccount: abstraxion.SmartAccount{
				ID:             node.ID,
				Authenticators: node.Authenticators.Nodes,
			},
			CodeID: s.codeID,
		})
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return accounts, nil
}
