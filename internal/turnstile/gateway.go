package turnstile

import (
	"context"
	"log/slog"
	"time"

	"github.com/secfolio/portfolio-gate/internal/metrics"
	"github.com/secfolio/portfolio-gate/internal/storage"
)

// SecretSource yields the verification secret for a Check call. The
// gateway resolves it lazily so site-key rotation takes effect without
// a restart.
type SecretSource func(ctx context.Context) (string, error)

// StaticSecret is a SecretSource that always returns the given secret.
// Used when the secret comes from the environment instead of storage.
func StaticSecret(secret string) SecretSource {
	return func(context.Context) (string, error) {
		return secret, nil
	}
}

// Gateway fronts a Provider with token shape checks, per-day analytics
// recording and outcome metrics. Error codes from the provider are
// logged server-side and carried in the Result, never shown to end
// users by the HTTP layer.
type Gateway struct {
	provider Provider
	secret   SecretSource
	storage  storage.Storage
	logger   *slog.Logger
	now      func() time.Time
}

// NewGateway creates a verification gateway.
func NewGateway(provider Provider, secret SecretSource, st storage.Storage, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		provider: provider,
		secret:   secret,
		storage:  st,
		logger:   logger,
		now:      time.Now,
	}
}

// record updates the day bucket and the outcome counter. Analytics
// failures are logged, not surfaced; they must not block verification.
func (g *Gateway) record(ctx context.Context, success bool, outcome string) {
	date := g.now().UTC().Format("2006-01-02")
	if err := g.storage.RecordVerification(ctx, date, success); err != nil {
		g.logger.Error("failed to record verification analytics", "date", date, "error", err)
	}
	metrics.RecordVerification(outcome)
}

// Check verifies a client token. Empty or oversized tokens fail locally
// without a provider call. Provider errors map to a failed Result so
// callers always get a definite yes/no.
func (g *Gateway) Check(ctx context.Context, token, remoteIP string) *Result {
	if token == "" || len(token) > MaxTokenLength {
		g.record(ctx, false, metrics.OutcomeFailed)
		return &Result{OK: false, ErrorCodes: []string{ErrorCodeInvalidInput}}
	}

	secret, err := g.secret(ctx)
	if err != nil {
		g.logger.Error("failed to resolve verification secret", "error", err)
		g.record(ctx, false, metrics.OutcomeError)
		return &Result{OK: false}
	}

	outcome, err := g.provider.Verify(ctx, VerifyRequest{
		Secret:   secret,
		Token:    token,
		RemoteIP: remoteIP,
	})
	if err != nil {
		g.logger.Error("verification request failed", "error", err)
		g.record(ctx, false, metrics.OutcomeError)
		return &Result{OK: false}
	}

	if !outcome.Success {
		g.logger.Warn("verification rejected", "error_codes", outcome.ErrorCodes, "hostname", outcome.Hostname)
		g.record(ctx, false, metrics.OutcomeFailed)
		return &Result{OK: false, ErrorCodes: outcome.ErrorCodes}
	}

	g.record(ctx, true, metrics.OutcomeVerified)
	return &Result{OK: true}
}

// Analytics returns the per-day outcome buckets in the inclusive date
// range, oldest first. Dates are YYYY-MM-DD.
func (g *Gateway) Analytics(ctx context.Context, from, to string) ([]*storage.AnalyticsBucket, error) {
	return g.storage.ListAnalytics(ctx, from, to)
}
