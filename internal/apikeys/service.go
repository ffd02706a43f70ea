// Package apikeys implements the API-key lifecycle: create, update,
// rotate, deactivate, verify and administrative retrieval, with an audit
// entry written for every mutating or sensitive-read operation before the
// result is returned.
package apikeys

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

// rawKeyBytes is the entropy of a generated key; hex-encoded it yields a
// 64-character raw key.
const rawKeyBytes = 32

// ErrInvalidInput is returned when create/update fields fail validation.
var ErrInvalidInput = errors.New("invalid input")

// Actor identifies who performed an operation, for the audit trail.
type Actor struct {
	Name      string
	IPAddress string
	UserAgent string
}

// System is the actor recorded for machine-initiated operations such as
// key verification.
var System = Actor{Name: "system"}

// Changes is a partial metadata update. Nil fields are untouched.
// Key material cannot be changed here; use Rotate.
type Changes struct {
	Name      *string
	Service   *string
	IsActive  *bool
	ExpiresAt *time.Time
}

// Service manages API keys on top of the storage layer.
type Service struct {
	storage storage.Storage
	codec   *secrets.Codec
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates an API-key service.
func NewService(st storage.Storage, codec *secrets.Codec, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage: st,
		codec:   codec,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) audit(ctx context.Context, action string, key *storage.APIKey, actor Actor, details string) error {
	entry := &storage.AuditEntry{
		ID:          uuid.New().String(),
		Kind:        storage.AuditKindAPIKey,
		Action:      action,
		SubjectID:   key.ID,
		SubjectName: key.Name,
		Service:     key.Service,
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

// Create generates a fresh random key, stores its digest and encrypted
// form, and returns the record together with the raw key. The raw key is
// returned exactly this once; callers must never persist or re-display it.
func (s *Service) Create(ctx context.Context, name, service string, actor Actor, expiresAt *time.Time) (*storage.APIKey, string, error) {
	name = strings.TrimSpace(name)
	service = strings.TrimSpace(service)
	if name == "" || service == "" {
		return nil, "", fmt.Errorf("%w: name and service are required", ErrInvalidInput)
	}

	rawKey, err := secrets.GenerateKey(rawKeyBytes)
	if err != nil {
		return nil, "", err
	}

	encrypted, err := s.codec.Encrypt(rawKey)
	if err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	key := &storage.APIKey{
		ID:           uuid.New().String(),
		Name:         name,
		EncryptedKey: encrypted,
		KeyDigest:    secrets.Digest(rawKey),
		Service:      service,
		CreatedAt:    now,
		UpdatedAt:    now,
		CreatedBy:    actor.Name,
		ExpiresAt:    expiresAt,
		IsActive:     true,
	}

	if err := s.storage.InsertAPIKey(ctx, key); err != nil {
		return nil, "", err
	}

	if err := s.audit(ctx, storage.ActionCreated, key, actor,
		fmt.Sprintf("API key created for service: %s", service)); err != nil {
		return nil, "", err
	}

	s.logger.Info("api key created", "id", key.ID, "name", name, "service", service,
		"key", secrets.Obfuscate(rawKey), "created_by", actor.Name)
	return key, rawKey, nil
}

// Update applies a partial metadata change. Returns nil when the ID is
// unknown so callers can render a not-found message.
func (s *Service) Update(ctx context.Context, id string, changes Changes, actor Actor) (*storage.APIKey, error) {
	if changes.Name != nil && strings.TrimSpace(*changes.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	if changes.Service != nil && strings.TrimSpace(*changes.Service) == "" {
		return nil, fmt.Errorf("%w: service cannot be empty", ErrInvalidInput)
	}

	key, err := s.storage.UpdateAPIKeyMeta(ctx, id, storage.APIKeyChanges{
		Name:      changes.Name,
		Service:   changes.Service,
		IsActive:  changes.IsActive,
		ExpiresAt: changes.ExpiresAt,
	}, s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.audit(ctx, storage.ActionUpdated, key, actor, "API key metadata updated"); err != nil {
		return nil, err
	}

	return key, nil
}

// Rotate replaces the key material while preserving the ID and metadata.
// The new raw key is returned exactly once. The previous raw key stops
// verifying immediately.
func (s *Service) Rotate(ctx context.Context, id string, actor Actor) (*storage.APIKey, string, error) {
	rawKey, err := secrets.GenerateKey(rawKeyBytes)
	if err != nil {
		return nil, "", err
	}

	encrypted, err := s.codec.Encrypt(rawKey)
	if err != nil {
		return nil, "", err
	}

	key, err := s.storage.ReplaceAPIKeyMaterial(ctx, id, encrypted, secrets.Digest(rawKey), s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}

	if err := s.audit(ctx, storage.ActionUpdated, key, actor, "API key rotated (value changed)"); err != nil {
		return nil, "", err
	}

	s.logger.Info("api key rotated", "id", key.ID, "key", secrets.Obfuscate(rawKey), "performed_by", actor.Name)
	return key, rawKey, nil
}

// Delete deactivates a key. The record is kept for audit continuity.
// Deleting an already-inactive key succeeds; only an unknown ID returns
// false.
func (s *Service) Delete(ctx context.Context, id string, actor Actor) (bool, error) {
	key, err := s.storage.DeactivateAPIKey(ctx, id, s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := s.audit(ctx, storage.ActionDeleted, key, actor, "API key deactivated"); err != nil {
		return false, err
	}

	return true, nil
}

// Verify checks a raw key by digest against active keys, optionally
// constrained to a service. Expired keys fail verification. On match the
// key's lastUsed is updated and a `used` entry is written.
// The stored encrypted form is never decrypted on this path.
func (s *Service) Verify(ctx context.Context, rawKey, service string) (*storage.APIKey, error) {
	key, err := s.storage.GetActiveAPIKeyByDigest(ctx, secrets.Digest(rawKey), service)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := s.now().UTC()
	if key.ExpiresAt != nil && !key.ExpiresAt.After(now) {
		return nil, nil
	}

	if err := s.storage.TouchAPIKey(ctx, key.ID, now); err != nil {
		return nil, err
	}
	key.LastUsed = &now

	if err := s.audit(ctx, storage.ActionUsed, key, System, "API key verified successfully"); err != nil {
		return nil, err
	}

	return key, nil
}

// List returns all active keys and writes one bulk `viewed` entry, not
// one per record. No field of the result contains a raw key.
func (s *Service) List(ctx context.Context, actor Actor) ([]*storage.APIKey, error) {
	keys, err := s.storage.ListActiveAPIKeys(ctx)
	if err != nil {
		return nil, err
	}

	bulk := &storage.APIKey{ID: "all", Name: "all", Service: "all"}
	if err := s.audit(ctx, storage.ActionViewed, bulk, actor, "All API keys viewed"); err != nil {
		return nil, err
	}

	return keys, nil
}

// GetByID returns an active key's metadata, logging the view. Returns nil
// for unknown or inactive IDs.
func (s *Service) GetByID(ctx context.Context, id string, actor Actor) (*storage.APIKey, error) {
	key, err := s.storage.GetAPIKey(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !key.IsActive {
		return nil, nil
	}

	if err := s.audit(ctx, storage.ActionViewed, key, actor, "API key metadata viewed"); err != nil {
		return nil, err
	}

	return key, nil
}

// GetDecrypted recovers the raw key from its encrypted form for
// administrative display. This is the only path that exposes a stored raw
// key; the audit entry is marked accordingly.
func (s *Service) GetDecrypted(ctx context.Context, id string, actor Actor) (string, error) {
	key, err := s.storage.GetAPIKey(ctx, id)
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
		"API key value was decrypted and viewed - SENSITIVE OPERATION"); err != nil {
		return "", err
	}

	rawKey, err := s.codec.Decrypt(key.EncryptedKey)
	if err != nil {
		s.logger.Error("failed to decrypt api key", "id", id, "error", err)
		return "", err
	}

	return rawKey, nil
}
