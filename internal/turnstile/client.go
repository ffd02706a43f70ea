// Package turnstile verifies Cloudflare Turnstile challenge tokens and
// manages the site-key configurations the widget runs under.
package turnstile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Cloudflare siteverify endpoint base.
	DefaultBaseURL = "https://challenges.cloudflare.com"

	// defaultTimeout bounds the siteverify round trip.
	defaultTimeout = 5 * time.Second
)

// Client calls the Turnstile siteverify API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing with mock server).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a siteverify client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Verify posts a token to the siteverify endpoint and returns the raw
// outcome. A network or decode failure is an error; a rejected token is
// a successful call with Outcome.Success == false.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*Outcome, error) {
	form := url.Values{}
	form.Set("secret", req.Secret)
	form.Set("response", req.Token)
	if req.RemoteIP != "" {
		form.Set("remoteip", req.RemoteIP)
	}
	if req.IdempotencyKey != "" {
		form.Set("idempotency_key", req.IdempotencyKey)
	}

	endpoint := c.baseURL + "/turnstile/v0/siteverify"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("siteverify request failed: %w", err)
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("turnstile: siteverify returned status %d", resp.StatusCode)
	}

	var outcome Outcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &outcome, nil
}
