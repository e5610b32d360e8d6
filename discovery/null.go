package discovery

import (
	"context"

	abstraxion "github.com/burnt-labs/abstraxion-core"
	"github.com/burnt-labs/abstraxion-core/authenticator"
)

// NullStrategy always reports that no account exists. Putting it first in a
// composite forces the new-account creation path regardless of what the
// backends know.
type NullStrategy struct{}

// NewNullStrategy creates a NullStrategy.
func NewNullStrategy() *NullStrategy {
	return &NullStrategy{}
}

// Name implements abstraxion.DiscoveryStrategy.
func (*NullStrategy) Name() string {
	return "null"
}

// Fetch implements abstraxion.DiscoveryStrategy.
func (*NullStrategy) Fetch(context.Context, string, authenticator.Type) ([]abstraxion.SmartAccountWithCodeID, error) {
	return nil, nil
}
