// Package storage handles all database operations for portfolio-gate.
package storage

import (
	"database/sql"
	"fmt"
)

// InitSchema creates all required tables and indexes.
// This is idempotent - safe to call multiple times.
func InitSchema(db *sql.DB) error {
	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	ddlStatements := []string{
		// users table: admin back-office accounts
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// api_keys table: managed service credentials, logically deleted
		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			encrypted_key TEXT NOT NULL,
			key_digest TEXT NOT NULL,
			service TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			created_by TEXT NOT NULL,
			last_used TIMESTAMP,
			expires_at TIMESTAMP,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		// Index on key_digest for O(1) verification lookups
		`CREATE INDEX IF NOT EXISTS idx_api_keys_digest ON api_keys(key_digest)`,

		// site_keys table: Turnstile site-key configurations
		`CREATE TABLE IF NOT EXISTS site_keys (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			environment TEXT NOT NULL,
			site_key TEXT NOT NULL,
			secret_key TEXT NOT NULL,
			domain TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			created_by TEXT NOT NULL,
			last_used TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_site_keys_env ON site_keys(environment, domain)`,

		// audit_log table: append-only record of key operations
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			action TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			subject_name TEXT NOT NULL,
			service TEXT NOT NULL,
			performed_by TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			details TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX IF NOT EXISTS idx_audit_log_kind ON audit_log(kind, timestamp)`,

		// verification_analytics table: one row per calendar day
		`CREATE TABLE IF NOT EXISTS verification_analytics (
			date TEXT PRIMARY KEY,
			total INTEGER NOT NULL DEFAULT 0,
			successful INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range ddlStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}

// MigrateSchema checks current schema version and applies migrations.
// Only v1 exists today; future versions add incremental migrations here.
func MigrateSchema(db *sql.DB) error {
	return InitSchema(db)
}
