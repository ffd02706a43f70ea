package turnstile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/secfolio/portfolio-gate/internal/secrets"
	"github.com/secfolio/portfolio-gate/internal/storage"
)

// ErrInvalidInput is returned when site-key fields fail validation.
var ErrInvalidInput = errors.New("invalid input")

// ErrNoSecret is returned when no verification secret can be resolved
// for an environment.
var ErrNoSecret = errors.New("no verification secret configured")

// Actor identifies who performed a site-key operation, for the audit trail.
type Actor struct {
	Name      string
	IPAddress string
	UserAgent string
}

// System is the actor recorded for machine-initiated operations such as
// secret resolution during verification.
var System = Actor{Name: "system"}

// SiteKeyChanges is a partial site-key update. Nil fields are untouched.
// SecretKey, when set, is the new plaintext secret and is encrypted
// before storage.
type SiteKeyChanges struct {
	Name        *string
	Environment *string
	SiteKey     *string
	SecretKey   *string
	Domain      *string
	IsActive    *bool
}

// SiteKeys manages Turnstile site-key configurations. Verification
// secrets are stored encrypted and only decrypted for siteverify calls
// or explicitly-audited administrative display.
type SiteKeys struct {
	storage storage.Storage
	codec   *secrets.Codec
	logger  *slog.Logger
	now     func() time.Time
}

// NewSiteKeys creates a site-key manager.
func NewSiteKeys(st storage.Storage, codec *secrets.Codec, logger *slog.Logger) *SiteKeys {
	if logger == nil {
		logger = slog.Default()
	}
	return &SiteKeys{
		storage: st,
		codec:   codec,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *SiteKeys) audit(ctx context.Context, action string, key *storage.SiteKey, actor Actor, details string) error {
	entry := &storage.AuditEntry{
		ID:          uuid.New().String(),
		Kind:        storage.AuditKindSiteKey,
		Action:      action,
		SubjectID:   key.ID,
		SubjectName: key.Name,
		Service:     key.Environment,
		PerformedBy: actor.Name,
		Timestamp:   s.now().UTC(),
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
		Details:     details,
	}
	if err := s.storage.AppendAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("audit write failed: %w", err)
	}
	return nil
}

// Create registers a site key for an environment. The secret is
// encrypted before it touches storage.
func (s *SiteKeys) Create(ctx context.Context, name, environment, siteKey, secretKey, domain string, actor Actor) (*storage.SiteKey, error) {
	name = strings.TrimSpace(name)
	siteKey = strings.TrimSpace(siteKey)
	secretKey = strings.TrimSpace(secretKey)
	if name == "" || siteKey == "" || secretKey == "" {
		return nil, fmt.Errorf("%w: name, site key and secret key are required", ErrInvalidInput)
	}
	if !ValidEnvironment(environment) {
		return nil, fmt.Errorf("%w: unknown environment %q", ErrInvalidInput, environment)
	}

	encrypted, err := s.codec.Encrypt(secretKey)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := &storage.SiteKey{
		ID:          uuid.New().String(),
		Name:        name,
		Environment: environment,
		SiteKey:     siteKey,
		SecretKey:   encrypted,
		Domain:      strings.TrimSpace(domain),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   actor.Name,
	}

	if err := s.storage.InsertSiteKey(ctx, key); err != nil {
		return nil, err
	}

	if err := s.audit(ctx, storage.ActionCreated, key, actor,
		fmt.Sprintf("Site key created for environment: %s", environment)); err != nil {
		return nil, err
	}

	s.logger.Info("site key created", "id", key.ID, "name", name, "environment", environment, "created_by", actor.Name)
	return key, nil
}

// Update applies a partial change. Returns nil when the ID is unknown.
func (s *SiteKeys) Update(ctx context.Context, id string, changes SiteKeyChanges, actor Actor) (*storage.SiteKey, error) {
	if changes.Name != nil && strings.TrimSpace(*changes.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	if changes.Environment != nil && !ValidEnvironment(*changes.Environment) {
		return nil, fmt.Errorf("%w: unknown environment %q", ErrInvalidInput, *changes.Environment)
	}

	stored := storage.SiteKeyChanges{
		Name:        changes.Name,
		Environment: changes.Environment,
		SiteKey:     changes.SiteKey,
		Domain:      changes.Domain,
		IsActive:    changes.IsActive,
	}
	if changes.SecretKey != nil {
		if strings.TrimSpace(*changes.SecretKey) == "" {
			return nil, fmt.Errorf("%w: secret key cannot be empty", ErrInvalidInput)
		}
		encrypted, err := s.codec.Encrypt(*changes.SecretKey)
		if err != nil {
			return nil, err
		}
		stored.SecretKey = &encrypted
	}

	key, err := s.storage.UpdateSiteKey(ctx, id, stored, s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.audit(ctx, storage.ActionUpdated, key, actor, "Site key updated"); err != nil {
		return nil, err
	}

	return key, nil
}

// Delete deactivates a site key, keeping the record for audit
// continuity. Deactivating twice succeeds; unknown IDs return false.
func (s *SiteKeys) Delete(ctx context.Context, id string, actor Actor) (bool, error) {
	key, err := s.storage.DeactivateSiteKey(ctx, id, s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := s.audit(ctx, storage.ActionDeleted, key, actor, "Site key deactivated"); err != nil {
		return false, err
	}

	return true, nil
}

// List returns all active site keys with one bulk `viewed` audit entry.
// SecretKey fields stay encrypted in the result.
func (s *SiteKeys) List(ctx context.Context, actor Actor) ([]*storage.SiteKey, error) {
	keys, err := s.storage.ListActiveSiteKeys(ctx)
	if err != nil {
		return nil, err
	}

	bulk := &storage.SiteKey{ID: "all", Name: "all", Environment: "all"}
	if err := s.audit(ctx, storage.ActionViewed, bulk, actor, "All site keys viewed"); err != nil {
		return nil, err
	}

	return keys, nil
}

// GetDecryptedSecret recovers the plaintext verification secret for
// administrative display. The audit entry is marked as sensitive.
func (s *SiteKeys) GetDecryptedSecret(ctx context.Context, id string, actor Actor) (string, error) {
	key, err := s.storage.GetSiteKey(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if !key.IsActive {
		return "", nil
	}

	if err := s.audit(ctx, storage.ActionViewed, key, actor,
		"Site key secret was decrypted and viewed - SENSITIVE OPERATION"); err != nil {
		return "", err
	}

	secret, err := s.codec.Decrypt(key.SecretKey)
	if err != nil {
		s.logger.Error("failed to decrypt site key secret", "id", id, "error", err)
		return "", err
	}

	return secret, nil
}

// ResolveSecret finds the active site key for an environment and
// returns its decrypted verification secret, updating last_used and
// writing a `used` audit entry. A key whose domain matches is preferred
// over one that only matches the environment. Returns ErrNoSecret when
// no key matches.
func (s *SiteKeys) ResolveSecret(ctx context.Context, environment, domain string) (string, error) {
	keys, err := s.storage.ListActiveSiteKeys(ctx)
	if err != nil {
		return "", err
	}

	var match *storage.SiteKey
	for _, key := range keys {
		if key.Environment != environment {
			continue
		}
		if domain != "" && key.Domain == domain {
			match = key
			break
		}
		if match == nil {
			match = key
		}
	}
	if match == nil {
		return "", fmt.Errorf("%w: environment %s", ErrNoSecret, environment)
	}

	secret, err := s.codec.Decrypt(match.SecretKey)
	if err != nil {
		s.logger.Error("failed to decrypt site key secret", "id", match.ID, "error", err)
		return "", err
	}
	if err := s.storage.TouchSiteKey(ctx, match.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to update site key last_used", "id", match.ID, "error", err)
	}
	if err := s.audit(ctx, storage.ActionUsed, match, System, "Site key secret used for verification"); err != nil {
		return "", err
	}

	return secret, nil
}
