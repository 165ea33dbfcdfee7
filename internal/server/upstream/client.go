// Package upstream implements the HTTP client for the entitlement service
// the broker queries at login time. The service exposes two interchangeable
// request shapes; which one a deployment speaks is fixed by configuration.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/avelkov/licbroker/internal/common"
)

// APIVariant selects the request shape understood by the deployment.
type APIVariant string

const (
	// VariantUser sends {userId, clientId, bundesland}.
	VariantUser APIVariant = "user"
	// VariantSchool sends {clientName, bundesland, schulkennung}.
	VariantSchool APIVariant = "school"
)

const (
	requestPath   = "/v1/licences/request"
	apiKeyHeader  = "X-API-Key"
	dialTimeout   = 3 * time.Second
	defaultExpiry = 5 * time.Second
)

// Query is the per-attempt request context. The field set the wire request
// uses depends on the variant.
type Query struct {
	UserID     string
	ClientID   string
	ClientName string
	SchoolID   string
	StateID    string
}

// Result is the decoded upstream answer.
type Result struct {
	// HasEntitlements mirrors the upstream boolean flag. False is a valid
	// answer, not an error.
	HasEntitlements bool
	// Payload is the entitlement data re-serialized as a compact JSON string.
	Payload string
}

type userRequest struct {
	UserID     string `json:"userId"`
	ClientID   string `json:"clientId"`
	Bundesland string `json:"bundesland"`
}

type schoolRequest struct {
	ClientName   string `json:"clientName"`
	Bundesland   string `json:"bundesland"`
	Schulkennung string `json:"schulkennung"`
}

type response struct {
	HasLicences bool            `json:"hasLicences"`
	Licences    json.RawMessage `json:"licences"`
}

// Fetcher is the seam the fetch-and-attach flow depends on.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) (*Result, error)
}

// Client calls the entitlement service. The instance owns its HTTP client;
// nothing here is process-global.
type Client struct {
	baseURL string
	apiKey  string
	variant APIVariant
	http    *http.Client
}

// NewClient constructs a client with explicit connect and overall request
// timeouts so a stalled upstream cannot hang a login indefinitely.
func NewClient(baseURL, apiKey string, variant APIVariant, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultExpiry
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		variant: variant,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
			},
		},
	}
}

func (c *Client) requestBody(q Query) (any, error) {
	switch c.variant {
	case VariantUser:
		return userRequest{UserID: q.UserID, ClientID: q.ClientID, Bundesland: q.StateID}, nil
	case VariantSchool:
		return schoolRequest{ClientName: q.ClientName, Bundesland: q.StateID, Schulkennung: q.SchoolID}, nil
	default:
		return nil, fmt.Errorf("%w: unknown upstream API variant %q", common.ErrConfiguration, c.variant)
	}
}

// Fetch issues one synchronous request. Network failure, timeout, and non-2xx
// statuses all map to ErrUpstreamUnavailable with the cause preserved.
func (c *Client) Fetch(ctx context.Context, q Query) (*Result, error) {
	body, err := c.requestBody(q)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+requestPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", common.ErrUpstreamUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", common.ErrUpstreamUnavailable, err)
	}

	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", common.ErrUpstreamUnavailable, err)
	}

	result := &Result{HasEntitlements: r.HasLicences}
	if len(r.Licences) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, r.Licences); err != nil {
			return nil, fmt.Errorf("%w: malformed licences payload: %v", common.ErrUpstreamUnavailable, err)
		}
		result.Payload = compact.String()
	}
	return result, nil
}
