package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/secfolio/portfolio-gate/internal/apikeys"
	"github.com/secfolio/portfolio-gate/internal/auth"
	"github.com/secfolio/portfolio-gate/internal/storage"
	"github.com/secfolio/portfolio-gate/internal/turnstile"
)

// keyView is the API representation of an API key. Encrypted material
// and digests never leave the service boundary.
type keyView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Service   string     `json:"service"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	CreatedBy string     `json:"createdBy"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsActive  bool       `json:"isActive"`
}

func toKeyView(k *storage.APIKey) keyView {
	return keyView{
		ID:        k.ID,
		Name:      k.Name,
		Service:   k.Service,
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
		CreatedBy: k.CreatedBy,
		LastUsed:  k.LastUsed,
		ExpiresAt: k.ExpiresAt,
		IsActive:  k.IsActive,
	}
}

// siteKeyView is the API representation of a site key. The encrypted
// secret stays server-side; /secret is the only way to see it.
type siteKeyView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Environment string     `json:"environment"`
	SiteKey     string     `json:"siteKey"`
	Domain      string     `json:"domain,omitempty"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CreatedBy   string     `json:"createdBy"`
	LastUsed    *time.Time `json:"lastUsed,omitempty"`
}

func toSiteKeyView(k *storage.SiteKey) siteKeyView {
	return siteKeyView{
		ID:          k.ID,
		Name:        k.Name,
		Environment: k.Environment,
		SiteKey:     k.SiteKey,
		Domain:      k.Domain,
		IsActive:    k.IsActive,
		CreatedAt:   k.CreatedAt,
		UpdatedAt:   k.UpdatedAt,
		CreatedBy:   k.CreatedBy,
		LastUsed:    k.LastUsed,
	}
}

// mustSessionUser is used inside RequireRole-gated routes where the
// middleware guarantees a user.
func (h *Handler) mustSessionUser(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, bool) {
	user, ok := SessionUser(r.Context())
	if !ok {
		h.logger.Error("session user missing from gated route", "path", r.URL.Path)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return nil, false
	}
	return user, true
}

// HandleListKeys returns all active API keys.
// GET /admin/api/keys
func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	keys, err := h.keys.List(r.Context(), actorForUser(r, user))
	if err != nil {
		h.logger.Error("failed to list api keys", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}

	views := make([]keyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, toKeyView(k))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "keys": views})
}

type createKeyRequest struct {
	Name      string     `json:"name"`
	Service   string     `json:"service"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// HandleCreateKey generates a new API key. The raw key appears in this
// response and nowhere else.
// POST /admin/api/keys
func (h *Handler) HandleCreateKey(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	key, rawKey, err := h.keys.Create(r.Context(), req.Name, req.Service, actorForUser(r, user), req.ExpiresAt)
	if err != nil {
		if errors.Is(err, apikeys.ErrInvalidInput) {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
		h.logger.Error("failed to create api key", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"key":     toKeyView(key),
		"rawKey":  rawKey,
	})
}

type updateKeyRequest struct {
	Name      *string    `json:"name,omitempty"`
	Service   *string    `json:"service,omitempty"`
	IsActive  *bool      `json:"isActive,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// HandleUpdateKey applies a partial metadata change.
// PATCH /admin/api/keys/{id}
func (h *Handler) HandleUpdateKey(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	var req updateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	key, err := h.keys.Update(r.Context(), chi.URLParam(r, "id"), apikeys.Changes{
		Name:      req.Name,
		Service:   req.Service,
		IsActive:  req.IsActive,
		ExpiresAt: req.ExpiresAt,
	}, actorForUser(r, user))
	if err != nil {
		if errors.Is(err, apikeys.ErrInvalidInput) {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
		h.logger.Error("failed to update api key", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	if key == nil {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "API key not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "key": toKeyView(key)})
}

// HandleRotateKey replaces the key material, returning the new raw key
// exactly once.
// POST /admin/api/keys/{id}/rotate
func (h *Handler) HandleRotateKey(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	key, rawKey, err := h.keys.Rotate(r.Context(), chi.URLParam(r, "id"), actorForUser(r, user))
	if err != nil {
		h.logger.Error("failed to rotate api key", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	if key == nil {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "API key not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"key":     toKeyView(key),
		"rawKey":  rawKey,
	})
}

// HandleDeleteKey deactivates a key.
// DELETE /admin/api/keys/{id}
func (h *Handler) HandleDeleteKey(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	removed, err := h.keys.Delete(r.Context(), chi.URLParam(r, "id"), actorForUser(r, user))
	if err != nil {
		h.logger.Error("failed to delete api key", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	if !removed {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "API key not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleRevealKey returns the decrypted raw key for administrative
// display. Every call is audited as a sensitive operation.
// GET /admin/api/keys/{id}/reveal
func (h *Handler) HandleRevealKey(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	rawKey, err := h.keys.GetDecrypted(r.Context(), chi.URLParam(r, "id"), actorForUser(r, user))
	if err != nil {
		h.logger.Error("failed to reveal api key", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	if rawKey == "" {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "API key not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "key": rawKey})
}

// HandleListSiteKeys returns all active site keys.
// GET /admin/api/sitekeys
func (h *Handler) HandleListSiteKeys(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	keys, err := h.siteKeys.List(r.Context(), siteKeyActor(r, user))
	if err != nil {
		h.logger.Error("failed to list site keys", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}

	views := make([]siteKeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, toSiteKeyView(k))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "siteKeys": views})
}

type createSiteKeyRequest struct {
	Name        string `json:"name"`
	Environment string `json:"environment"`
	SiteKey     string `json:"siteKey"`
	SecretKey   string `json:"secretKey"`
	Domain      string `json:"domain"`
}

// HandleCreateSiteKey registers a site key; the secret is encrypted at
// rest and omitted from the response.
// POST /admin/api/sitekeys
func (h *Handler) HandleCreateSiteKey(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	var req createSiteKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	key, err := h.siteKeys.Create(r.Context(), req.Name, req.Environment, req.SiteKey, req.SecretKey, req.Domain, siteKeyActor(r, user))
	if err != nil {
		if errors.Is(err, turnstile.ErrInvalidInput) {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
		h.logger.Error("failed to create site key", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "siteKey": toSiteKeyView(key)})
}

type updateSiteKeyRequest struct {
	Name        *string `json:"name,omitempty"`
	Environment *string `json:"environment,omitempty"`
	SiteKey     *string `json:"siteKey,omitempty"`
	SecretKey   *string `json:"secretKey,omitempty"`
	Domain      *string `json:"domain,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// HandleUpdateSiteKey applies a partial change; a new secret is
// re-encrypted before storage.
// PATCH /admin/api/sitekeys/{id}
func (h *Handler) HandleUpdateSiteKey(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	var req updateSiteKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	key, err := h.siteKeys.Update(r.Context(), chi.URLParam(r, "id"), turnstile.SiteKeyChanges{
		Name:        req.Name,
		Environment: req.Environment,
		SiteKey:     req.SiteKey,
		SecretKey:   req.SecretKey,
		Domain:      req.Domain,
		IsActive:    req.IsActive,
	}, siteKeyActor(r, user))
	if err != nil {
		if errors.Is(err, turnstile.ErrInvalidInput) {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
		h.logger.Error("failed to update site key", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	if key == nil {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Site key not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "siteKey": toSiteKeyView(key)})
}

// HandleDeleteSiteKey deactivates a site key.
// DELETE /admin/api/sitekeys/{id}
func (h *Handler) HandleDeleteSiteKey(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	removed, err := h.siteKeys.Delete(r.Context(), chi.URLParam(r, "id"), siteKeyActor(r, user))
	if err != nil {
		h.logger.Error("failed to delete site key", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	if !removed {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Site key not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleRevealSiteKeySecret returns the decrypted verification secret.
// GET /admin/api/sitekeys/{id}/secret
func (h *Handler) HandleRevealSiteKeySecret(w http.ResponseWriter, r *http.Request) {
	user, ok := h.mustSessionUser(w, r)
	if !ok {
		return
	}

	secret, err := h.siteKeys.GetDecryptedSecret(r.Context(), chi.URLParam(r, "id"), siteKeyActor(r, user))
	if err != nil {
		h.logger.Error("failed to reveal site key secret", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	if secret == "" {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Site key not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "secretKey": secret})
}

// auditEntryView is the API representation of an audit entry.
type auditEntryView struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Action      string    `json:"action"`
	SubjectID   string    `json:"subjectId"`
	SubjectName string    `json:"subjectName"`
	Service     string    `json:"service,omitempty"`
	PerformedBy string    `json:"performedBy"`
	Timestamp   time.Time `json:"timestamp"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
	Details     string    `json:"details,omitempty"`
}

// HandleListLogs returns audit entries, newest first.
// GET /admin/api/logs?kind=&action=&from=&to=
func (h *Handler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	filter := storage.AuditFilter{
		Kind:   r.URL.Query().Get("kind"),
		Action: r.URL.Query().Get("action"),
	}

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "from must be RFC 3339")
			return
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "to must be RFC 3339")
			return
		}
		filter.To = t
	}

	entries, err := h.storage.ListAuditEntries(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list audit entries", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}

	views := make([]auditEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, auditEntryView{
			ID:          e.ID,
			Kind:        e.Kind,
			Action:      e.Action,
			SubjectID:   e.SubjectID,
			SubjectName: e.SubjectName,
			Service:     e.Service,
			PerformedBy: e.PerformedBy,
			Timestamp:   e.Timestamp,
			IPAddress:   e.IPAddress,
			UserAgent:   e.UserAgent,
			Details:     e.Details,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "logs": views})
}

// HandleAnalytics returns per-day verification buckets. Defaults to the
// trailing 30 days.
// GET /admin/api/analytics?from=&to=
func (h *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" {
		from = now.AddDate(0, 0, -30).Format("2006-01-02")
	}
	if to == "" {
		to = now.Format("2006-01-02")
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "dates must be YYYY-MM-DD")
			return
		}
	}

	buckets, err := h.storage.ListAnalytics(r.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to list analytics", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "analytics": buckets})
}

type logLevelRequest struct {
	Level string `json:"level"`
}

// HandleSetLogLevel adjusts the runtime log level.
// POST /admin/api/loglevel
func (h *Handler) HandleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req logLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	var level slog.Level
	switch req.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "level must be one of debug, info, warn, error")
		return
	}

	h.logLevel.Set(level)
	h.logger.Info("log level changed", "level", req.Level)
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "level": req.Level})
}
