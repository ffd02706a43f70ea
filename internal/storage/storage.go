// Package storage provides types and interfaces for SQLite persistence operations.
package storage

import (
	"context"
	"time"
)

// Storage defines the interface for SQLite persistence operations.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error

	// API key operations
	InsertAPIKey(ctx context.Context, key *APIKey) error
	GetAPIKey(ctx context.Context, id string) (*APIKey, error)
	GetActiveAPIKeyByDigest(ctx context.Context, digest, service string) (*APIKey, error)
	ListActiveAPIKeys(ctx context.Context) ([]*APIKey, error)
	UpdateAPIKeyMeta(ctx context.Context, id string, changes APIKeyChanges, at time.Time) (*APIKey, error)
	ReplaceAPIKeyMaterial(ctx context.Context, id, encryptedKey, keyDigest string, at time.Time) (*APIKey, error)
	DeactivateAPIKey(ctx context.Context, id string, at time.Time) (*APIKey, error)
	TouchAPIKey(ctx context.Context, id string, at time.Time) error

	// Site key operations
	InsertSiteKey(ctx context.Context, key *SiteKey) error
	GetSiteKey(ctx context.Context, id string) (*SiteKey, error)
	ListActiveSiteKeys(ctx context.Context) ([]*SiteKey, error)
	UpdateSiteKey(ctx context.Context, id string, changes SiteKeyChanges, at time.Time) (*SiteKey, error)
	DeactivateSiteKey(ctx context.Context, id string, at time.Time) (*SiteKey, error)
	TouchSiteKey(ctx context.Context, id string, at time.Time) error

	// Audit log (append-only)
	AppendAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)

	// Verification analytics
	RecordVerification(ctx context.Context, date string, success bool) error
	ListAnalytics(ctx context.Context, from, to string) ([]*AnalyticsBucket, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// APIKeyChanges describes a partial metadata update. Nil fields are left
// untouched. Key material is never updated through this path.
type APIKeyChanges struct {
	Name      *string
	Service   *string
	IsActive  *bool
	ExpiresAt *time.Time
}

// SiteKeyChanges describes a partial site-key update. SecretKey, when set,
// must already be encrypted by the caller.
type SiteKeyChanges struct {
	Name        *string
	Environment *string
	SiteKey     *string
	SecretKey   *string
	Domain      *string
	IsActive    *bool
}
