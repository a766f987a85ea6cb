package rollout

import (
	"context"
	"fmt"
	"net/http"

	"github.com/svclane/rolloutd/internal/transport"
)

// ConfigFetcher downloads service-config documents for one managed service.
// The document is opaque to the proxy's control loop; it is handed to the
// request path as-is.
type ConfigFetcher struct {
	fetcher     transport.Fetcher
	baseURL     string
	serviceName string
}

// NewConfigFetcher builds a fetcher for the given service.
func NewConfigFetcher(f transport.Fetcher, baseURL, serviceName string) *ConfigFetcher {
	if baseURL == "" {
		baseURL = DefaultManagementBaseURL
	}
	return &ConfigFetcher{
		fetcher:     f,
		baseURL:     baseURL,
		serviceName: serviceName,
	}
}

// Fetch downloads one service-config document by id.
func (f *ConfigFetcher) Fetch(ctx context.Context, configID string) ([]byte, error) {
	url := ConfigURL(f.baseURL, f.serviceName, configID)
	status, body, err := f.fetcher.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service config %s: %w", configID, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("service config %s returned status %d", configID, status)
	}
	return body, nil
}
