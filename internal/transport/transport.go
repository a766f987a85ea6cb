package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/svclane/rolloutd/internal/utils"
)

// Fetcher issues an HTTP GET and delivers the response status and body.
// The rollout manager and the metadata detector depend on this interface
// only, so tests can substitute a recording implementation.
type Fetcher interface {
	Get(ctx context.Context, url string) (status int, body []byte, err error)
}

// TokenSource supplies a bearer token for outbound requests. Credential
// acquisition itself lives outside this package; the zero value (nil) sends
// unauthenticated requests.
type TokenSource func() (string, error)

// Client is the production Fetcher backed by net/http.
type Client struct {
	http  *http.Client
	token TokenSource
}

// NewClient builds a Client with the given per-request timeout. token may be
// nil.
func NewClient(timeout time.Duration, token TokenSource) *Client {
	return &Client{
		http:  &http.Client{Timeout: timeout},
		token: token,
	}
}

func (c *Client) Get(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	if c.token != nil {
		tok, err := c.token()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to acquire access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	return resp.StatusCode, body, nil
}
