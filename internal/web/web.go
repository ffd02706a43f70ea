// Package web serves the public API: the contact form, the bot-gated
// download flow and API-key verification for service consumers.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/secfolio/portfolio-gate/internal/apikeys"
	"github.com/secfolio/portfolio-gate/internal/download"
	"github.com/secfolio/portfolio-gate/internal/turnstile"
)

// Field length bounds for the contact form.
const (
	nameMinLen    = 2
	nameMaxLen    = 100
	messageMinLen = 10
	messageMaxLen = 1000
)

// Handler serves the public endpoints.
type Handler struct {
	gateway *turnstile.Gateway
	issuer  *download.Issuer
	keys    *apikeys.Service
	logger  *slog.Logger

	// fileURL is the protected resource the download flow gates.
	fileURL string
}

// NewHandler creates a public handler.
func NewHandler(gateway *turnstile.Gateway, issuer *download.Issuer, keys *apikeys.Service, fileURL string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		gateway: gateway,
		issuer:  issuer,
		keys:    keys,
		logger:  logger,
		fileURL: fileURL,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Response already started, nothing we can do
	json.NewEncoder(w).Encode(payload)
}

// clientIP prefers the first X-Forwarded-For hop set by the reverse
// proxy, falling back to the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}

type contactRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Message        string `json:"message"`
	TurnstileToken string `json:"turnstileToken"`
}

// validate returns per-field messages; an empty map means the
// submission is well-formed.
func (c *contactRequest) validate() map[string]string {
	errs := make(map[string]string)

	name := strings.TrimSpace(c.Name)
	if n := utf8.RuneCountInString(name); n < nameMinLen || n > nameMaxLen {
		errs["name"] = "Name must be between 2 and 100 characters"
	}

	if _, err := mail.ParseAddress(strings.TrimSpace(c.Email)); err != nil {
		errs["email"] = "A valid email address is required"
	}

	message := strings.TrimSpace(c.Message)
	if n := utf8.RuneCountInString(message); n < messageMinLen || n > messageMaxLen {
		errs["message"] = "Message must be between 10 and 1000 characters"
	}

	if c.TurnstileToken == "" {
		errs["turnstileToken"] = "Verification token is required"
	}

	return errs
}

// HandleContact accepts a contact-form submission after field
// validation and bot verification.
// POST /api/contact
func (h *Handler) HandleContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Invalid request body",
		})
		return
	}

	if errs := req.validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"errors":  errs,
		})
		return
	}

	if result := h.gateway.Check(r.Context(), req.TurnstileToken, clientIP(r)); !result.OK {
		h.logger.Warn("contact submission failed verification", "remote_addr", clientIP(r), "error_codes", result.ErrorCodes)
		writeJSON(w, http.StatusForbidden, map[string]any{
			"success":         false,
			"turnstileFailed": true,
			"message":         "Verification failed. Please try again.",
		})
		return
	}

	// The message itself stays out of the logs.
	h.logger.Info("contact submission accepted",
		"name", strings.TrimSpace(req.Name),
		"remote_addr", clientIP(r),
		"message_len", utf8.RuneCountInString(req.Message),
	)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type downloadRequest struct {
	TurnstileToken string `json:"turnstileToken"`
}

// HandleSecureDownload verifies the caller and issues a short-lived
// download URL.
// POST /api/secure-download
func (h *Handler) HandleSecureDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Invalid request body",
		})
		return
	}

	if result := h.gateway.Check(r.Context(), req.TurnstileToken, clientIP(r)); !result.OK {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"success":         false,
			"turnstileFailed": true,
			"message":         "Verification failed. Please try again.",
		})
		return
	}

	token, err := h.issuer.Issue(h.fileURL)
	if err != nil {
		h.logger.Error("failed to issue download token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Internal error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"url":     "/api/secure-download/file?token=" + url.QueryEscape(token),
	})
}

// HandleDownloadFile redeems a download token and redirects to the
// protected resource as an attachment.
// GET /api/secure-download/file?token=
func (h *Handler) HandleDownloadFile(w http.ResponseWriter, r *http.Request) {
	target, err := h.issuer.Redeem(r.URL.Query().Get("token"))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"message": "Invalid or expired download link",
		})
		return
	}

	w.Header().Set("Content-Disposition", "attachment")
	http.Redirect(w, r, target, http.StatusFound)
}

type verifyKeyRequest struct {
	Service string `json:"service"`
}

// HandleVerifyKey verifies an X-API-Key header for service consumers.
// POST /api/keys/verify
func (h *Handler) HandleVerifyKey(w http.ResponseWriter, r *http.Request) {
	rawKey := r.Header.Get("X-API-Key")
	if rawKey == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"message": "X-API-Key header is required",
		})
		return
	}

	var req verifyKeyRequest
	if r.Body != nil {
		// Body is optional; a missing or empty one means any service.
		_ = json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
	}

	key, err := h.keys.Verify(r.Context(), rawKey, req.Service)
	if err != nil {
		h.logger.Error("api key verification failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Internal error",
		})
		return
	}
	if key == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"message": "Invalid API key",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"keyId":   key.ID,
		"name":    key.Name,
		"service": key.Service,
	})
}
