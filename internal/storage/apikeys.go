package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const apiKeyColumns = "id, name, encrypted_key, key_digest, service, created_at, updated_at, created_by, last_used, expires_at, is_active"

func scanAPIKey(row interface{ Scan(...any) error }) (*APIKey, error) {
	var k APIKey
	var lastUsed, expiresAt sql.NullTime

	err := row.Scan(&k.ID, &k.Name, &k.EncryptedKey, &k.KeyDigest, &k.Service,
		&k.CreatedAt, &k.UpdatedAt, &k.CreatedBy, &lastUsed, &expiresAt, &k.IsActive)
	if err != nil {
		return nil, err
	}

	if lastUsed.Valid {
		k.LastUsed = &lastUsed.Time
	}
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Time
	}

	return &k, nil
}

// InsertAPIKey stores a new API key record.
// Returns ErrDuplicate if a key with this digest already exists.
func (s *SQLiteStorage) InsertAPIKey(ctx context.Context, key *APIKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, encrypted_key, key_digest, service, created_at, updated_at, created_by, expires_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Name, key.EncryptedKey, key.KeyDigest, key.Service,
		key.CreatedAt, key.UpdatedAt, key.CreatedBy, nullableTime(key.ExpiresAt), key.IsActive)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert api key: %w", err)
	}

	return nil
}

// GetAPIKey retrieves a key by ID regardless of active flag.
// Returns ErrNotFound if the ID doesn't exist.
func (s *SQLiteStorage) GetAPIKey(ctx context.Context, id string) (*APIKey, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE id = ?", id)

	key, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return key, nil
}

// GetActiveAPIKeyByDigest looks up an active key by its digest, optionally
// constrained to a service. Used on the verification path.
// Returns ErrNotFound when no active key matches.
func (s *SQLiteStorage) GetActiveAPIKeyByDigest(ctx context.Context, digest, service string) (*APIKey, error) {
	query := "SELECT " + apiKeyColumns + " FROM api_keys WHERE key_digest = ? AND is_active = TRUE"
	args := []any{digest}
	if service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}

	row := s.db.QueryRowContext(ctx, query, args...)

	key, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api key by digest: %w", err)
	}

	return key, nil
}

// ListActiveAPIKeys returns all active keys, newest first.
// Returns empty slice if no keys exist.
func (s *SQLiteStorage) ListActiveAPIKeys(ctx context.Context) ([]*APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE is_active = TRUE ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var keys []*APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key row: %w", err)
		}
		keys = append(keys, key)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api keys: %w", err)
	}

	// Return empty slice instead of nil
	if keys == nil {
		keys = make([]*APIKey, 0)
	}

	return keys, nil
}

// UpdateAPIKeyMeta applies a partial metadata update and returns the
// updated record. Key material is never touched here.
// Returns ErrNotFound if the ID doesn't exist.
func (s *SQLiteStorage) UpdateAPIKeyMeta(ctx context.Context, id string, changes APIKeyChanges, at time.Time) (*APIKey, error) {
	sets := []string{"updated_at = ?"}
	args := []any{at}

	if changes.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *changes.Name)
	}
	if changes.Service != nil {
		sets = append(sets, "service = ?")
		args = append(args, *changes.Service)
	}
	if changes.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *changes.IsActive)
	}
	if changes.ExpiresAt != nil {
		sets = append(sets, "expires_at = ?")
		args = append(args, *changes.ExpiresAt)
	}

	args = append(args, id)
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update api key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetAPIKey(ctx, id)
}

// ReplaceAPIKeyMaterial swaps the encrypted form and digest during
// rotation, preserving the ID and metadata.
// Returns ErrNotFound if the ID doesn't exist.
func (s *SQLiteStorage) ReplaceAPIKeyMaterial(ctx context.Context, id, encryptedKey, keyDigest string, at time.Time) (*APIKey, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET encrypted_key = ?, key_digest = ?, updated_at = ? WHERE id = ?",
		encryptedKey, keyDigest, at, id)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate api key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetAPIKey(ctx, id)
}

// DeactivateAPIKey performs a logical delete. Deactivating an already
// inactive key succeeds; only an unknown ID is ErrNotFound.
func (s *SQLiteStorage) DeactivateAPIKey(ctx context.Context, id string, at time.Time) (*APIKey, error) {
	key, err := s.GetAPIKey(ctx, id)
	if err != nil {
		return nil, err
	}

	if key.IsActive {
		_, err = s.db.ExecContext(ctx,
			"UPDATE api_keys SET is_active = FALSE, updated_at = ? WHERE id = ?", at, id)
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate api key: %w", err)
		}
		key.IsActive = false
		key.UpdatedAt = at
	}

	return key, nil
}

// TouchAPIKey records a successful verification against the key.
func (s *SQLiteStorage) TouchAPIKey(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used = ? WHERE id = ?", at, id)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
