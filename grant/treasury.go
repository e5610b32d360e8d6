package grant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	abstraxion "github.com/burnt-labs/abstraxion-core"
)

// treasuryGrantConfigSchema validates the policy objects a treasury
// contract (or its indexer mirror) returns before they are turned into
// signable messages. Failing loud here beats broadcasting a grant built
// from a half-decoded policy.
const treasuryGrantConfigSchema = `{
  "type": "object",
  "required": ["authorization"],
  "properties": {
    "description": {"type": "string"},
    "authorization": {
      "type": "object",
      "required": ["type_url", "value"],
      "properties": {
        "type_url": {"type": "string", "minLength": 1},
        "value": {"type": "string", "minLength": 1}
      }
    },
    "optional_fee_granter": {"type": "string"}
  }
}`

var grantConfigSchema = gojsonschema.NewStringLoader(treasuryGrantConfigSchema)

// treasuryGrantConfig is a single authz policy entry declared by a
// treasury contract. The authorization value is base64-encoded proto-JSON.
type treasuryGrantConfig struct {
	Description   string `json:"description"`
	Authorization struct {
		TypeURL string `json:"type_url"`
		Value   string `json:"value"`
	} `json:"authorization"`
	OptionalFeeGranter string `json:"optional_fee_granter,omitempty"`
}

// treasuryFeeConfig is the fee-grant policy a treasury declares.
type treasuryFeeConfig struct {
	Description string `json:"description"`
	Allowance   *struct {
		TypeURL string `json:"type_url"`
		Value   string `json:"value"`
	} `json:"allowance"`
}

// BuildTreasuryGrantMessages implements abstraxion.GrantClient: it reads
// the grant policy a treasury contract pre-declares and translates it into
// the same message shapes the manual builder emits. Any failure here is
// returned to the caller, who falls back to BuildGrantMessages.
func (c *Client) BuildTreasuryGrantMessages(ctx context.Context, treasury, granter, grantee string, expiration time.Time) ([]abstraxion.Msg, error) {
	if treasury == "" {
		return nil, fmt.Errorf("treasury address is required")
	}
	if granter == "" || grantee == "" {
		return nil, fmt.Errorf("granter and grantee addresses are required")
	}

	configs, err := c.fetchTreasuryGrantConfigs(ctx, treasury)
	if err != nil {
		return nil, err
	}

	var msgs []abstraxion.Msg
	for _, config := range configs {
		authorization, err := decodePackedAny(config.Authorization.TypeURL, config.Authorization.Value)
		if err != nil {
			return nil, fmt.Errorf("treasury grant config %q: %w", config.Authorization.TypeURL, err)
		}
		msg, err := newMsgGrant(granter, grantee, expiration, authorization)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	feeMsg, err := c.feeGrantMessage(ctx, treasury, granter, grantee, expiration)
	if err != nil {
		return nil, err
	}
	if feeMsg != nil {
		msgs = append(msgs, *feeMsg)
	}

	return msgs, nil
}

// fetchTreasuryGrantConfigs prefers the DAODAO indexer mirror when one is
// configured and silently falls back to on-chain smart queries.
func (c *Client) fetchTreasuryGrantConfigs(ctx context.Context, treasury string) ([]treasuryGrantConfig, error) {
	if c.daodaoURL != "" {
		configs, err := c.fetchGrantConfigsIndexer(ctx, treasury)
		if err == nil {
			return configs, nil
		}
		c.logger.Warn("daodao indexer lookup failed, querying chain",
			zap.String("treasury", treasury),
			zap.Error(err))
	}
	return c.fetchGrantConfigsChain(ctx, treasury)
}

func (c *Client) fetchGrantConfigsChain(ctx context.Context, treasury string) ([]treasuryGrantConfig, error) {
	var typeURLs []string
	if err := c.query.SmartQuery(ctx, treasury, map[string]any{"grant_config_type_urls": map[string]any{}}, &typeURLs); err != nil {
		return nil, fmt.Errorf("failed to list treasury grant configs: %w", err)
	}

	configs := make([]treasuryGrantConfig, 0, len(typeURLs))
	for _, typeURL := range typeURLs {
		var raw json.RawMessage
		err := c.query.SmartQuery(ctx, treasury, map[string]any{
			"grant_config_by_type_url": map[string]any{"msg_type_url": typeURL},
		}, &raw)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch treasury grant config %q: %w", typeURL, err)
		}
		config, err := decodeGrantConfig(raw)
		if err != nil {
			return nil, fmt.Errorf("treasury grant config %q: %w", typeURL, err)
		}
		configs = append(configs, *config)
	}
	return configs, nil
}

// fetchGrantConfigsIndexer reads the same policies through a DAODAO-style
// indexer formula endpoint.
func (c *Client) fetchGrantConfigsIndexer(ctx context.Context, treasury string) ([]treasuryGrantConfig, error) {
	endpoint := fmt.Sprintf("%s/contract/%s/xion/treasuryGrantConfigs", c.daodaoURL, url.PathEscape(treasury))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read indexer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}

	var rawConfigs []json.RawMessage
	if err := json.Unmarshal(body, &rawConfigs); err != nil {
		return nil, fmt.Errorf("malformed indexer response: %w", err)
	}

	configs := make([]treasuryGrantConfig, 0, len(rawConfigs))
	for _, raw := range rawConfigs {
		config, err := decodeGrantConfig(raw)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *config)
	}
	return configs, nil
}

// decodeGrantConfig schema-validates and decodes one policy object.
func decodeGrantConfig(raw json.RawMessage) (*treasuryGrantConfig, error) {
	result, err := gojsonschema.Validate(grantConfigSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("grant config does not match schema: %v", result.Errors())
	}

	var config treasuryGrantConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("failed to decode grant config: %w", err)
	}
	return &config, nil
}

// feeGrantMessage translates the treasury's fee config into a
// MsgGrantAllowance, or nil when the treasury declares none.
func (c *Client) feeGrantMessage(ctx context.Context, treasury, granter, grantee string, expiration time.Time) (*abstraxion.Msg, error) {
	var feeConfig treasuryFeeConfig
	if err := c.query.SmartQuery(ctx, treasury, map[string]any{"fee_config": map[string]any{}}, &feeConfig); err != nil {
		return nil, fmt.Errorf("failed to fetch treasury fee config: %w", err)
	}
	if feeConfig.Allowance == nil {
		return nil, nil
	}

	allowance, err := decodePackedAny(feeConfig.Allowance.TypeURL, feeConfig.Allowance.Value)
	if err != nil {
		return nil, fmt.Errorf("treasury fee config: %w", err)
	}

	// A basic allowance with no expiration of its own expires with the
	// grants it pays for.
	if feeConfig.Allowance.TypeURL == TypeBasicAllowance {
		if _, ok := allowance["expiration"]; !ok {
			allowance["expiration"] = expiration.UTC().Format(time.RFC3339)
		}
	}

	msg, err := abstraxion.NewMsg(TypeMsgGrantAllowance, map[string]any{
		"granter":   granter,
		"grantee":   grantee,
		"allowance": allowance,
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// decodePackedAny unpacks a {type_url, base64(value)} pair where value is
// the proto-JSON body of the packed message, yielding its inline Any form.
func decodePackedAny(typeURL, value string) (map[string]any, error) {
	if typeURL == "" {
		return nil, fmt.Errorf("authorization has no type_url")
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("authorization value is not base64: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("authorization value is not JSON: %w", err)
	}
	return anyJSON(typeURL, fields), nil
}
