package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const siteKeyColumns = "id, name, environment, site_key, secret_key, domain, is_active, created_at, updated_at, created_by, last_used"

func scanSiteKey(row interface{ Scan(...any) error }) (*SiteKey, error) {
	var k SiteKey
	var lastUsed sql.NullTime

	err := row.Scan(&k.ID, &k.Name, &k.Environment, &k.SiteKey, &k.SecretKey, &k.Domain,
		&k.IsActive, &k.CreatedAt, &k.UpdatedAt, &k.CreatedBy, &lastUsed)
	if err != nil {
		return nil, err
	}

	if lastUsed.Valid {
		k.LastUsed = &lastUsed.Time
	}

	return &k, nil
}

// InsertSiteKey stores a new Turnstile site-key configuration.
func (s *SQLiteStorage) InsertSiteKey(ctx context.Context, key *SiteKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO site_keys (id, name, environment, site_key, secret_key, domain, is_active, created_at, updated_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Name, key.Environment, key.SiteKey, key.SecretKey, key.Domain,
		key.IsActive, key.CreatedAt, key.UpdatedAt, key.CreatedBy)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert site key: %w", err)
	}

	return nil
}

// GetSiteKey retrieves a site key by ID regardless of active flag.
// Returns ErrNotFound if the ID doesn't exist.
func (s *SQLiteStorage) GetSiteKey(ctx context.Context, id string) (*SiteKey, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+siteKeyColumns+" FROM site_keys WHERE id = ?", id)

	key, err := scanSiteKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get site key: %w", err)
	}

	return key, nil
}

// ListActiveSiteKeys returns all active site keys, newest first.
// Returns empty slice if no keys exist.
func (s *SQLiteStorage) ListActiveSiteKeys(ctx context.Context) ([]*SiteKey, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+siteKeyColumns+" FROM site_keys WHERE is_active = TRUE ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query site keys: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var keys []*SiteKey
	for rows.Next() {
		key, err := scanSiteKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site key row: %w", err)
		}
		keys = append(keys, key)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating site keys: %w", err)
	}

	if keys == nil {
		keys = make([]*SiteKey, 0)
	}

	return keys, nil
}

// UpdateSiteKey applies a partial update and returns the updated record.
// Returns ErrNotFound if the ID doesn't exist.
func (s *SQLiteStorage) UpdateSiteKey(ctx context.Context, id string, changes SiteKeyChanges, at time.Time) (*SiteKey, error) {
	sets := []string{"updated_at = ?"}
	args := []any{at}

	if changes.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *changes.Name)
	}
	if changes.Environment != nil {
		sets = append(sets, "environment = ?")
		args = append(args, *changes.Environment)
	}
	if changes.SiteKey != nil {
		sets = append(sets, "site_key = ?")
		args = append(args, *changes.SiteKey)
	}
	if changes.SecretKey != nil {
		sets = append(sets, "secret_key = ?")
		args = append(args, *changes.SecretKey)
	}
	if changes.Domain != nil {
		sets = append(sets, "domain = ?")
		args = append(args, *changes.Domain)
	}
	if changes.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *changes.IsActive)
	}

	args = append(args, id)
	result, err := s.db.ExecContext(ctx,
		"UPDATE site_keys SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update site key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetSiteKey(ctx, id)
}

// DeactivateSiteKey performs a logical delete with the same idempotency
// policy as DeactivateAPIKey.
func (s *SQLiteStorage) DeactivateSiteKey(ctx context.Context, id string, at time.Time) (*SiteKey, error) {
	key, err := s.GetSiteKey(ctx, id)
	if err != nil {
		return nil, err
	}

	if key.IsActive {
		_, err = s.db.ExecContext(ctx,
			"UPDATE site_keys SET is_active = FALSE, updated_at = ? WHERE id = ?", at, id)
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate site key: %w", err)
		}
		key.IsActive = false
		key.UpdatedAt = at
	}

	return key, nil
}

// TouchSiteKey records that the key's secret was used for a verification.
func (s *SQLiteStorage) TouchSiteKey(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE site_keys SET last_used = ? WHERE id = ?", at, id)
	if err != nil {
		return fmt.Errorf("failed to touch site key: %w", err)
	}
	return nil
}
