package discovery

import (
	"context"

	"go.uber.org/zap"

	abstraxion "github.com/burnt-labs/abstraxion-core"
	"github.com/burnt-labs/abstraxion-core/authenticator"
)

// CompositeStrategy tries an ordered list of strategies sequentially. Order
// encodes priority: the first strategy to return a non-empty result wins and
// later strategies are never invoked, so slower backends are only consulted
// when faster ones come up empty.
type CompositeStrategy struct {
	strategies []abstraxion.DiscoveryStrategy
	logger     *zap.Logger
}

// CompositeOption configures a CompositeStrategy.
type CompositeOption func(*CompositeStrategy)

// WithCompositeLogger sets the logger used for per-strategy failures.
func WithCompositeLogger(logger *zap.Logger) CompositeOption {
	return func(c *CompositeStrategy) {
		c.logger = logger
	}
}

// NewCompositeStrategy creates a composite over the given strategies in
// priority order. The order is never changed and strategies never run
// concurrently.
func NewCompositeStrategy(strategies []abstraxion.DiscoveryStrategy, opts ...CompositeOption) *CompositeStrategy {
	c := &CompositeStrategy{
		strategies: strategies,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements abstraxion.DiscoveryStrategy.
func (c *CompositeStrategy) Name() string {
	return "composite"
}

// Fetch tries each strategy in order:
//
//   - the first non-empty result is returned as-is, owned by exactly one
//     strategy, never merged with later results;
//   - a strategy failure is logged and swallowed, and the chain continues;
//   - all strategies empty with no failure is a legitimate "no such account
//     yet" signal and returns an empty result;
//   - all strategies failing returns a DiscoveryAggregateError naming every
//     failing strategy, so callers never mistake broken discovery for a
//     missing account.
func (c *CompositeStrategy) Fetch(ctx context.Context, credential string, authType authenticator.Type) ([]abstraxion.SmartAccountWithCodeID, error) {
	var failures []abstraxion.StrategyFailure

	for _, strategy := range c.strategies {
		accounts, err := strategy.Fetch(ctx, credential, authType)
		if err != nil {
			c.logger.Warn("discovery strategy failed",
				zap.String("strategy", strategy.Name()),
				zap.Error(err))
			failures = append(failures, abstraxion.StrategyFailure{
				Strategy: strategy.Name(),
				Err:      err,
			})
			continue
		}
		if len(accounts) > 0 {
			return accounts, nil
		}
	}

	if len(c.strategies) > 0 && len(failures) == len(c.strategies) {
		return nil, &abstraxion.DiscoveryAggregateError{Failures: failures}
	}
	return nil, nil
}
