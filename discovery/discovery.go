// Package discovery resolves credentials to existing smart accounts across
// several possibly-unavailable backends: indexers, the chain itself, and the
// account-abstraction REST API. Strategies are tried strictly in order; a
// backend failure never aborts the chain, it only moves resolution to the
// next strategy.
package discovery

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// BackendError is a typed failure of one discovery backend: either a
// transport error (StatusCode zero) or a non-2xx HTTP response.
type BackendError struct {
	Strategy   string
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s backend returned status %d", e.Strategy, e.StatusCode)
	}
	return fmt.Sprintf("%s backend failed: %v", e.Strategy, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// httpDefaults fills in the shared HTTP client and logger defaults used by
// every strategy config.
func httpDefaults(client *http.Client, timeout time.Duration, logger *zap.Logger) (*http.Client, *zap.Logger) {
	if client == nil {
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return client, logger
}
