package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/secfolio/portfolio-gate/internal/secrets"
	"github.com/secfolio/portfolio-gate/internal/storage"
)

// SessionTTL is how long a minted session stays valid.
const SessionTTL = 24 * time.Hour

// SessionCookieName is the cookie carrying the encrypted session payload.
const SessionCookieName = "session"

// SessionUser is the public identity carried inside a session. Password
// material never enters the payload.
type SessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Session is the decrypted session payload. There is no server-side
// session store; the cookie is the session. A session is valid iff it
// decrypts under the current key and ExpiresAt is in the future.
type Session struct {
	User      SessionUser `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Sessions mints and reads encrypted session cookie values.
type Sessions struct {
	codec  *secrets.Codec
	ttl    time.Duration
	secure bool // set Secure on cookies (production)
	now    func() time.Time
}

// NewSessions creates a session manager. secure controls the cookie's
// Secure flag and should be true in production deployments.
func NewSessions(codec *secrets.Codec, secure bool) *Sessions {
	return &Sessions{
		codec:  codec,
		ttl:    SessionTTL,
		secure: secure,
		now:    time.Now,
	}
}

// Create serializes and encrypts a session for the user.
func (s *Sessions) Create(user *storage.User) (string, error) {
	session := Session{
		User: SessionUser{
			ID:       user.ID,
			Username: user.Username,
			Role:     Role(user.Role),
		},
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return "", err
	}

	return s.codec.Encrypt(string(payload))
}

// Read decrypts and validates a cookie value. Returns nil on decryption
// failure, malformed JSON or an expired session; callers must clear the
// cookie on any nil result.
func (s *Sessions) Read(cookieValue string) *Session {
	plaintext, err := s.codec.Decrypt(cookieValue)
	if err != nil {
		return nil
	}

	var session Session
	if err := json.Unmarshal([]byte(plaintext), &session); err != nil {
		return nil
	}

	if !session.ExpiresAt.After(s.now()) {
		return nil
	}

	return &session
}

// SetCookie attaches the session cookie to the response.
func (s *Sessions) SetCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie deletes the session cookie. Must be called whenever Read
// returns nil for a presented cookie, so stale values stop arriving.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// FromRequest reads the session from a request's cookie. Returns nil when
// the cookie is absent or invalid.
func (s *Sessions) FromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}
	return s.Read(cookie.Value)
}
