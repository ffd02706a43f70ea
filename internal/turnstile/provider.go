package turnstile

import "context"

// Provider answers verification requests. The live implementation talks
// to Cloudflare; the simulated one is for local development only and is
// never selected in production.
type Provider interface {
	Verify(ctx context.Context, req VerifyRequest) (*Outcome, error)
}

// LiveProvider verifies tokens against the real siteverify endpoint.
type LiveProvider struct {
	client *Client
}

// NewLiveProvider wraps a siteverify client as a Provider.
func NewLiveProvider(client *Client) *LiveProvider {
	return &LiveProvider{client: client}
}

// Verify delegates to the siteverify client.
func (p *LiveProvider) Verify(ctx context.Context, req VerifyRequest) (*Outcome, error) {
	return p.client.Verify(ctx, req)
}

// SimulatedProvider accepts every well-formed token without a network
// call. Intended for development environments without Turnstile
// credentials.
type SimulatedProvider struct {
	// Hostname is reported in outcomes, defaulting to "localhost".
	Hostname string
}

// Verify accepts the token unconditionally; shape checks happen in the
// gateway before any provider is consulted.
func (p *SimulatedProvider) Verify(_ context.Context, _ VerifyRequest) (*Outcome, error) {
	hostname := p.Hostname
	if hostname == "" {
		hostname = "localhost"
	}
	return &Outcome{Success: true, Hostname: hostname}, nil
}
