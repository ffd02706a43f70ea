// Package admin provides the back-office HTTP API: login, API-key and
// site-key management, audit log and analytics queries.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/secfolio/portfolio-gate/internal/apikeys"
	"github.com/secfolio/portfolio-gate/internal/auth"
	"github.com/secfolio/portfolio-gate/internal/storage"
	"github.com/secfolio/portfolio-gate/internal/turnstile"
)

// Handler provides admin endpoints.
type Handler struct {
	storage  storage.Storage
	authn    *auth.Authenticator
	sessions *auth.Sessions
	keys     *apikeys.Service
	siteKeys *turnstile.SiteKeys
	logger   *slog.Logger
	logLevel *slog.LevelVar
}

// NewHandler creates an admin handler.
func NewHandler(st storage.Storage, authn *auth.Authenticator, sessions *auth.Sessions,
	keys *apikeys.Service, siteKeys *turnstile.SiteKeys, logLevel *slog.LevelVar, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if logLevel == nil {
		logLevel = new(slog.LevelVar)
	}

	return &Handler{
		storage:  st,
		authn:    authn,
		sessions: sessions,
		keys:     keys,
		siteKeys: siteKeys,
		logger:   logger,
		logLevel: logLevel,
	}
}

// actorForUser builds the audit actor for a request's session user.
func actorForUser(r *http.Request, user *auth.SessionUser) apikeys.Actor {
	return apikeys.Actor{
		Name:      user.Username,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func siteKeyActor(r *http.Request, user *auth.SessionUser) turnstile.Actor {
	return turnstile.Actor{
		Name:      user.Username,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// clientIP prefers the first X-Forwarded-For hop set by the reverse
// proxy, falling back to the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	return r.RemoteAddr
}
