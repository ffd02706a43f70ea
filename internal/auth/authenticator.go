// Package auth provides credential authentication, encrypted session
// cookies and the role-based access gate for the admin back office.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/secfolio/portfolio-gate/internal/storage"
)

// bcrypt cost 12, matching key hashing elsewhere in the service.
const hashCost = 12

// dummyHash is a bcrypt hash of a random value nobody knows. When a login
// names an unknown or inactive user we still compare against it, so the
// unknown-username and wrong-password paths cost the same and return the
// same shape.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// HashPassword returns the bcrypt hash of a password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticator validates admin credentials against the user store.
type Authenticator struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(st storage.Storage, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{storage: st, logger: logger}
}

// Authenticate looks up an active user and compares the supplied password
// against the stored bcrypt digest. Returns (nil, nil) on unknown
// username, inactive user or digest mismatch - callers cannot tell which.
// On success the user's lastLogin is updated before returning.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*storage.User, error) {
	user, err := a.storage.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Burn a comparison so this path matches the latency of a
			// real digest mismatch.
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password)) //nolint:errcheck
			return nil, nil
		}
		return nil, err
	}

	hash := user.PasswordHash
	if !user.IsActive {
		hash = dummyHash
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, nil
	}
	if !user.IsActive {
		return nil, nil
	}

	now := time.Now().UTC()
	if err := a.storage.UpdateUserLastLogin(ctx, user.ID, now); err != nil {
		// Login still succeeds; the timestamp is best effort.
		a.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}
	user.LastLogin = &now

	return user, nil
}
