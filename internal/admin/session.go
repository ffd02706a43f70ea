package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/secfolio/portfolio-gate/internal/auth"
	"github.com/secfolio/portfolio-gate/internal/metrics"
)

type contextKey string

const sessionUserKey contextKey = "session-user"

// WithSessionUser stores the authenticated user in the context.
func WithSessionUser(ctx context.Context, user *auth.SessionUser) context.Context {
	return context.WithValue(ctx, sessionUserKey, user)
}

// SessionUser retrieves the authenticated user placed by RequireRole.
func SessionUser(ctx context.Context) (*auth.SessionUser, bool) {
	user, ok := ctx.Value(sessionUserKey).(*auth.SessionUser)
	return user, ok
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// HandleLogin processes admin login.
// POST /admin/login
//
// Bad credentials get one generic answer regardless of cause: no cookie,
// no hint whether the username exists.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Username and password are required")
		return
	}

	user, err := h.authn.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Error("login failed", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	if user == nil {
		h.logger.Warn("failed login attempt", "username", req.Username, "remote_addr", clientIP(r))
		metrics.RecordAuthFailure("invalid_credentials")
		WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid username or password")
		return
	}

	cookieValue, err := h.sessions.Create(user)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	h.sessions.SetCookie(w, cookieValue)

	h.logger.Info("admin login successful", "username", user.Username, "role", user.Role)
	WriteJSON(w, http.StatusOK, loginResponse{Success: true, Username: user.Username, Role: user.Role})
}

// HandleLogout clears the session cookie. The cookie is the session, so
// clearing it is the whole logout.
// POST /admin/logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// RequireRole gates a subtree behind a minimum role. A missing or
// expired session is 401 with the stale cookie cleared; a live session
// below the required role is 403.
func (h *Handler) RequireRole(required auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := h.sessions.FromRequest(r)
			user, err := auth.Authorize(session, required)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					metrics.RecordAuthFailure("insufficient_role")
					WriteError(w, http.StatusForbidden, ErrCodeForbidden, "Insufficient role")
					return
				}
				// Not authenticated: drop whatever cookie was presented so
				// stale values stop arriving.
				if _, cookieErr := r.Cookie(auth.SessionCookieName); cookieErr == nil {
					h.sessions.ClearCookie(w)
				}
				metrics.RecordAuthFailure("expired_session")
				WriteError(w, http.StatusUnauthorized, ErrCodeNotAuthenticated, "Authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSessionUser(r.Context(), user)))
		})
	}
}
