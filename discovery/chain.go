package discovery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	abstraxion "github.com/burnt-labs/abstraxion-core"
	"github.com/burnt-labs/abstraxion-core/authenticator"
	"github.com/burnt-labs/abstraxion-core/chain"
)

// ChainConfig configures a ChainStrategy.
type ChainConfig struct {
	// Query issues the smart queries.
	Query *chain.QueryClient

	// Creator is the factory address that instantiates smart accounts.
	Creator string

	// Checksum is the smart account contract's code checksum, used in the
	// deterministic address derivation.
	Checksum []byte

	// AddressPrefix is the chain's bech32 prefix.
	AddressPrefix string

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// ChainStrategy discovers a smart account directly on-chain: it predicts
// the account's deterministic address from the credential and asks the
// contract for its registered authenticators. No deployed contract at the
// predicted address means no account, which is an empty result rather than
// an error; only genuine transport failures surface as errors.
type ChainStrategy struct {
	query    *chain.QueryClient
	creator  string
	checksum []byte
	prefix   string
	logger   *zap.Logger
}

// NewChainStrategy creates an on-chain discovery strategy.
func NewChainStrategy(config ChainConfig) (*ChainStrategy, error) {
	if config.Query == nil {
		return nil, fmt.Errorf("query client is required")
	}
	if config.Creator == "" {
		return nil, fmt.Errorf("creator address is required")
	}
	if len(config.Checksum) == 0 {
		return nil, fmt.Errorf("contract checksum is required")
	}
	if config.AddressPrefix == "" {
		return nil, fmt.Errorf("address prefix is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChainStrategy{
		query:    config.Query,
		creator:  config.Creator,
		checksum: config.Checksum,
		prefix:   config.AddressPrefix,
		logger:   logger,
	}, nil
}

// Name implements abstraxion.DiscoveryStrategy.
func (s *ChainStrategy) Name() string {
	return "chain"
}

// Fetch implements abstraxion.DiscoveryStrategy.
func (s *ChainStrategy) Fetch(ctx context.Context, credential string, authType authenticator.Type) ([]abstraxion.SmartAccountWithCodeID, error) {
	salt := chain.AccountSalt(authType.String(), credential)
	address, err := chain.PredictAccountAddress(s.creator, s.checksum, salt, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to predict account address: %w", err)
	}

	var ids []uint64
	err = s.query.SmartQuery(ctx, address, map[string]any{"authenticator_i_ds": map[string]any{}}, &ids)
	if errors.Is(err, chain.ErrContractNotFound) {
		s.logger.Debug("no contract at predicted address", zap.String("address", address))
		return nil, nil
	}
	if err != nil {
		return nil, &BackendError{Strategy: s.Name(), Err: err}
	}

	authenticators := make([]abstraxion.Authenticator, 0, len(ids))
	for _, id := range ids {
		auth, err := s.fetchAuthenticator(ctx, address, id)
		if err != nil {
			return nil, &BackendError{Strategy: s.Name(), Err: err}
		}
		authenticators = append(authenticators, auth)
	}

	info, err := s.query.GetContractInfo(ctx, address)
	if err != nil {
		return nil, &BackendError{Strategy: s.Name(), Err: err}
	}

	return []abstraxion.SmartAccountWithCodeID{{
		SmartAccount: abstraxion.SmartAccount{
			ID:             address,
			Authenticators: authenticators,
		},
		CodeID: info.CodeID,
	}}, nil
}

// fetchAuthenticator fetches one registered authenticator by id. The
// contract returns a base64-encoded JSON object keyed by authenticator
// type, e.g. {"EthWallet": {"address": "0x..."}}.
func (s *ChainStrategy) fetchAuthenticator(ctx context.Context, contractAddr string, id uint64) (abstraxion.Authenticator, error) {
	var encoded string
	err := s.query.SmartQuery(ctx, contractAddr, map[string]any{
		"authenticator_by_i_d": map[string]any{"id": id},
	}, &encoded)
	if err != nil {
		return abstraxion.Authenticator{}, fmt.Errorf("failed to fetch authenticator %d: %w", id, err)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return abstraxion.Authenticator{}, fmt.Errorf("authenticator %d is not base64: %w", id, err)
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return abstraxion.Authenticator{}, fmt.Errorf("authenticator %d is not JSON: %w", id, err)
	}
	if len(tagged) != 1 {
		return abstraxion.Authenticator{}, fmt.Errorf("authenticator %d has %d type tags, want 1", id, len(tagged))
	}

	for authType, body := range tagged {
		return abstraxion.Authenticator{
			ID:                 strconv.FormatUint(id, 10),
			Type:               authType,
			Authenticator:      credentialFromBody(authType, body),
			AuthenticatorIndex: int(id),
		}, nil
	}
	// Unreachable: the map has exactly one entry.
	return abstraxion.Authenticator{}, fmt.Errorf("authenticator %d is empty", id)
}

// credentialFromBody extracts the credential string for each authenticator
// encoding the contract uses.
func credentialFromBody(authType string, body json.RawMessage) string {
	switch authType {
	case authenticator.TypeEthWallet.String():
		var payload struct {
			Address string `json:"address"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Address != "" {
			return payload.Address
		}
	case authenticator.TypeSecp256K1.String():
		var payload struct {
			Pubkey string `json:"pubkey"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Pubkey != "" {
			return payload.Pubkey
		}
	case authenticator.TypeJWT.String():
		var payload struct {
			Aud string `json:"aud"`
			Sub string `json:"sub"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Aud != "" && payload.Sub != "" {
			return payload.Aud + "." + payload.Sub
		}
	case authenticator.TypePasskey.String():
		var payload struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.ID != "" {
			return payload.ID
		}
	}
	return string(body)
}
