package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/svclane/rolloutd/internal/utils"
)

// DefaultBaseURL is the GCE instance metadata server.
const DefaultBaseURL = "http://169.254.169.254"

// Attribute keys a managed Endpoints instance carries.
const (
	attrServiceName = "endpoints-service-name"
	attrConfigID    = "endpoints-service-config-id"
)

// Attributes is the subset of instance metadata the daemon consumes.
type Attributes struct {
	ProjectID   string
	ServiceName string
	ConfigID    string
}

// Client reads the instance metadata document. It keeps its own HTTP client
// because the metadata server requires the Metadata-Flavor header, which the
// plain fetch transport does not send.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient builds a metadata client. baseURL defaults to the GCE metadata
// server.
func NewClient(timeout time.Duration, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type metadataDoc struct {
	Project struct {
		ProjectID string `json:"projectId"`
	} `json:"project"`
	Instance struct {
		Attributes map[string]string `json:"attributes"`
	} `json:"instance"`
}

// Fetch reads the full metadata document and extracts the Endpoints
// attributes. Missing attributes are returned as empty strings; resolution
// precedence against the server config is the caller's business.
func (c *Client) Fetch(ctx context.Context) (*Attributes, error) {
	url := c.baseURL + "/computeMetadata/v1/?recursive=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata response: %w", err)
	}

	var doc metadataDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse metadata document: %w", err)
	}

	return &Attributes{
		ProjectID:   doc.Project.ProjectID,
		ServiceName: doc.Instance.Attributes[attrServiceName],
		ConfigID:    doc.Instance.Attributes[attrConfigID],
	}, nil
}
