package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secfolio/portfolio-gate/internal/apikeys"
	"github.com/secfolio/portfolio-gate/internal/auth"
	"github.com/secfolio/portfolio-gate/internal/secrets"
	"github.com/secfolio/portfolio-gate/internal/storage"
	"github.com/secfolio/portfolio-gate/internal/turnstile"
)

type testEnv struct {
	router   chi.Router
	sessions *auth.Sessions
	store    *storage.SQLiteStorage
	logLevel *slog.LevelVar
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := storage.Open(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close() //nolint:errcheck
	})

	codec, err := secrets.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	sessions := auth.NewSessions(codec, false)
	logLevel := new(slog.LevelVar)

	handler := NewHandler(
		st,
		auth.NewAuthenticator(st, nil),
		sessions,
		apikeys.NewService(st, codec, nil),
		turnstile.NewSiteKeys(st, codec, nil),
		logLevel,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	for _, u := range []struct {
		username, password, role string
	}{
		{username: "root", password: "root-pass", role: "admin"},
		{username: "ops", password: "ops-pass", role: "manager"},
	} {
		hash, err := auth.HashPassword(u.password)
		require.NoError(t, err)
		require.NoError(t, st.CreateUser(context.Background(), &storage.User{
			ID:           uuid.New().String(),
			Username:     u.username,
			PasswordHash: hash,
			Role:         u.role,
			IsActive:     true,
			CreatedAt:    time.Now().UTC(),
		}))
	}

	return &testEnv{router: handler.NewRouter(), sessions: sessions, store: st, logLevel: logLevel}
}

func (e *testEnv) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"username": username, "password": password}) //nolint:errcheck
	req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "login failed: %s", rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie in login response")
	return nil
}

func (e *testEnv) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body) //nolint:errcheck
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(map[string]string{"username": "root", "password": "wrong"}) //nolint:errcheck
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "failed login must not set a cookie")

	var resp APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeInvalidCredentials, resp.Error)

	// Unknown username gets the identical answer
	body, _ = json.Marshal(map[string]string{"username": "ghost", "password": "wrong"}) //nolint:errcheck
	rec2 := httptest.NewRecorder()
	env.router.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body)))
	assert.Equal(t, rec.Code, rec2.Code)

	var resp2 APIError
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp2))
	assert.Equal(t, resp.Message, resp2.Message)
}

func TestGatedRouteWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/admin/api/keys", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGatedRouteClearsBadCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/admin/api/keys", nil, &http.Cookie{
		Name:  auth.SessionCookieName,
		Value: "garbage-not-a-session",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "invalid cookie must be cleared")
}

func TestRoleSeparation(t *testing.T) {
	env := newTestEnv(t)
	adminCookie := env.login(t, "root", "root-pass")
	managerCookie := env.login(t, "ops", "ops-pass")

	// Manager can read logs and analytics
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/admin/api/logs", nil, managerCookie).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/admin/api/analytics", nil, managerCookie).Code)

	// But not manage keys: live session, insufficient role is 403, not 401
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/admin/api/keys", nil, managerCookie).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/admin/api/loglevel",
		map[string]string{"level": "debug"}, managerCookie).Code)

	// Admin can do both
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/admin/api/keys", nil, adminCookie).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/admin/api/logs", nil, adminCookie).Code)
}

func TestKeyLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "root", "root-pass")

	// Create
	rec := env.do(http.MethodPost, "/admin/api/keys",
		map[string]string{"name": "Prod", "service": "Payments"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Success bool    `json:"success"`
		Key     keyView `json:"key"`
		RawKey  string  `json:"rawKey"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.Len(t, created.RawKey, 64)
	id := created.Key.ID

	// List does not leak the raw key
	rec = env.do(http.MethodGet, "/admin/api/keys", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), created.RawKey)

	// Reveal returns it, audited
	rec = env.do(http.MethodGet, "/admin/api/keys/"+id+"/reveal", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.RawKey)

	// Rotate yields fresh material
	rec = env.do(http.MethodPost, "/admin/api/keys/"+id+"/rotate", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated struct {
		RawKey string `json:"rawKey"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, created.RawKey, rotated.RawKey)

	// Update metadata
	rec = env.do(http.MethodPatch, "/admin/api/keys/"+id,
		map[string]string{"name": "Renamed"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Renamed")

	// Delete, then the key is gone from admin reads
	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/admin/api/keys/"+id, nil, cookie).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/admin/api/keys/"+id+"/reveal", nil, cookie).Code)

	// Unknown IDs are not found
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/admin/api/keys/no-such/rotate", nil, cookie).Code)
}

func TestSiteKeyLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "root", "root-pass")

	rec := env.do(http.MethodPost, "/admin/api/sitekeys", map[string]string{
		"name":        "Prod widget",
		"environment": "production",
		"siteKey":     "0x4AAA-site",
		"secretKey":   "0x4AAA-secret",
		"domain":      "example.com",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "0x4AAA-secret", "secret must not appear in create response")

	var created struct {
		SiteKey siteKeyView `json:"siteKey"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.SiteKey.ID

	// List omits secrets too
	rec = env.do(http.MethodGet, "/admin/api/sitekeys", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "0x4AAA-secret")

	// The dedicated endpoint reveals it
	rec = env.do(http.MethodGet, "/admin/api/sitekeys/"+id+"/secret", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0x4AAA-secret")

	// Bad environment is rejected
	rec = env.do(http.MethodPost, "/admin/api/sitekeys", map[string]string{
		"name": "x", "environment": "qa", "siteKey": "s", "secretKey": "k",
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/admin/api/sitekeys/"+id, nil, cookie).Code)
}

func TestAuditLogFilters(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "root", "root-pass")

	rec := env.do(http.MethodPost, "/admin/api/keys",
		map[string]string{"name": "Prod", "service": "Payments"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodGet, "/admin/api/logs?kind=apikey&action=created", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Logs []auditEntryView `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Logs, 1)
	assert.Equal(t, "root", resp.Logs[0].PerformedBy)

	// Bad timestamps are rejected
	assert.Equal(t, http.StatusBadRequest,
		env.do(http.MethodGet, "/admin/api/logs?from=yesterday", nil, cookie).Code)
}

func TestSetLogLevel(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "root", "root-pass")

	rec := env.do(http.MethodPost, "/admin/api/loglevel", map[string]string{"level": "debug"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, slog.LevelDebug, env.logLevel.Level())

	rec = env.do(http.MethodPost, "/admin/api/loglevel", map[string]string{"level": "loud"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, slog.LevelDebug, env.logLevel.Level(), "invalid level must not change anything")
}

func TestAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "ops", "ops-pass")

	today := time.Now().UTC().Format("2006-01-02")
	require.NoError(t, env.store.RecordVerification(context.Background(), today, true))
	require.NoError(t, env.store.RecordVerification(context.Background(), today, false))

	rec := env.do(http.MethodGet, "/admin/api/analytics", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Analytics []*storage.AnalyticsBucket `json:"analytics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Analytics, 1)
	assert.Equal(t, int64(2), resp.Analytics[0].Total)
	assert.Equal(t, int64(1), resp.Analytics[0].Successful)

	assert.Equal(t, http.StatusBadRequest,
		env.do(http.MethodGet, "/admin/api/analytics?from=last-week", nil, cookie).Code)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", nil, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/ready", nil, nil).Code)
}
