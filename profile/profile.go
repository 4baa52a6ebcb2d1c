// Package profile enriches identities with directory attributes fetched from
// an external service. Enrichment is best effort: a lookup failure never
// fails the registration that triggered it.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Enricher resolves directory attributes for an identity.
type Enricher interface {
	// Lookup returns string attributes for the identity, e.g. name, email,
	// room number. A nil map with nil error means the directory has no
	// entry for the identity.
	Lookup(ctx context.Context, identityID string) (map[string]string, error)
}

const defaultTimeout = 10 * time.Second

// deviceIDHeader authenticates this service to the directory.
const deviceIDHeader = "X-DEVICE-ID"

// HTTPEnricherOptions configures an HTTPEnricher.
type HTTPEnricherOptions struct {
	// HTTPClient used for requests. Defaults to a client with Timeout.
	HTTPClient *http.Client

	// Timeout for the default HTTP client.
	Timeout time.Duration
}

// HTTPEnricher fetches attributes from a directory endpoint. The identity id
// is appended as a path segment: GET <endpoint>/<id> with the device id
// header set.
type HTTPEnricher struct {
	client   *http.Client
	endpoint string
	deviceID string
}

var _ Enricher = (*HTTPEnricher)(nil)

// NewHTTPEnricher creates an enricher for the directory endpoint.
func NewHTTPEnricher(endpoint, deviceID string, optFns ...func(o *HTTPEnricherOptions)) *HTTPEnricher {
	opts := HTTPEnricherOptions{
		Timeout: defaultTimeout,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTTPEnricher{
		client:   client,
		endpoint: endpoint,
		deviceID: deviceID,
	}
}

// Lookup implements Enricher.
func (e *HTTPEnricher) Lookup(ctx context.Context, identityID string) (map[string]string, error) {
	target, err := url.JoinPath(e.endpoint, identityID)
	if err != nil {
		return nil, fmt.Errorf("profile: build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("profile: create request: %w", err)
	}
	req.Header.Set(deviceIDHeader, e.deviceID)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile: lookup %s: %w", identityID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile: lookup %s: status %d", identityID, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("profile: read response: %w", err)
	}

	// The directory returns mixed-type JSON; keep only scalar values and
	// render them as strings.
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("profile: decode response: %w", err)
	}

	attrs := make(map[string]string, len(decoded))
	for key, value := range decoded {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case float64:
			attrs[key] = formatNumber(v)
		case bool:
			attrs[key] = fmt.Sprintf("%t", v)
		}
	}

	return attrs, nil
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
