package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDGenerated(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if captured == "" {
		t.Fatal("no request ID in context")
	}
	if _, err := uuid.Parse(captured); err != nil {
		t.Errorf("generated ID is not a UUID: %q", captured)
	}
	if got := rec.Header().Get("X-Request-ID"); got != captured {
		t.Errorf("response header %q does not match context ID %q", got, captured)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reused   bool
	}{
		{name: "valid id reused", incoming: "client-id-42", reused: true},
		{name: "dots and underscores ok", incoming: "trace_1.segment-2", reused: true},
		{name: "too long replaced", incoming: strings.Repeat("a", 129), reused: false},
		{name: "unsafe chars replaced", incoming: "bad id\n", reused: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", tt.incoming)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if tt.reused && captured != tt.incoming {
				t.Errorf("expected incoming ID %q to be reused, got %q", tt.incoming, captured)
			}
			if !tt.reused && captured == tt.incoming {
				t.Error("unsafe incoming ID was reused")
			}
		})
	}
}

func TestHTTPLoggingMasksCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := HTTPLogging(logger, []string{"success"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"key":"raw-api-key-value"}`)) //nolint:errcheck
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/login",
		strings.NewReader(`{"username":"admin","password":"hunter2"}`))
	req.Header.Set("Cookie", "session=supersecretcookie")
	req.Header.Set("X-API-Key", "deadbeefcafe")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	logged := buf.String()
	for _, leak := range []string{"hunter2", "supersecretcookie", "raw-api-key-value", "deadbeefcafe"} {
		if strings.Contains(logged, leak) {
			t.Errorf("log output leaks %q", leak)
		}
	}
	if !strings.Contains(logged, "****cafe") {
		t.Error("api key suffix missing from log output")
	}
	if !strings.Contains(logged, `\"success\":true`) && !strings.Contains(logged, `"success":true`) {
		t.Error("allowlisted response field missing from log output")
	}
}

func TestHTTPLoggingDisabledAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := HTTPLogging(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output at info level, got %s", buf.String())
	}
}

func TestHTTPLoggingPreservesBody(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var seen map[string]any
	handler := HTTPLogging(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Errorf("handler could not read body after logging: %v", err)
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada"}`))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen["name"] != "Ada" {
		t.Errorf("body not preserved for handler: %v", seen)
	}
}
