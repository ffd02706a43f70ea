package config

import (
	"strings"
	"testing"
)

const validKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.MetricsListenAddr != "localhost:9090" {
		t.Errorf("MetricsListenAddr = %q", cfg.MetricsListenAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Environment != EnvProduction {
		t.Errorf("Environment = %q, want production default", cfg.Environment)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure must default to true")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORTFOLIO_GATE_LISTEN_ADDR", ":9999")
	t.Setenv("PORTFOLIO_GATE_ENCRYPTION_KEY", validKey)
	t.Setenv("PORTFOLIO_GATE_ENVIRONMENT", "development")
	t.Setenv("PORTFOLIO_GATE_RESUME_FILE_URL", "https://cdn.example.com/resume.pdf")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.EncryptionKey != validKey {
		t.Errorf("EncryptionKey not read from environment")
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.ResumeFileURL != "https://cdn.example.com/resume.pdf" {
		t.Errorf("ResumeFileURL = %q", cfg.ResumeFileURL)
	}
}

func TestValidateEncryptionKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "valid", key: validKey},
		{name: "missing", key: "", wantErr: "required"},
		{name: "not hex", key: strings.Repeat("zz", 32), wantErr: "hex-encoded"},
		{name: "too short", key: "0123456789abcdef", wantErr: "32 bytes"},
		{name: "too long", key: validKey + "00", wantErr: "32 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				EncryptionKey: tt.key,
				Environment:   EnvProduction,
				LogLevel:      "info",
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				key, err := cfg.EncryptionKeyBytes()
				if err != nil || len(key) != 32 {
					t.Fatalf("EncryptionKeyBytes: %v (len %d)", err, len(key))
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEnvironmentAndLogLevel(t *testing.T) {
	cfg := &Config{EncryptionKey: validKey, Environment: "qa", LogLevel: "info"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown environment must fail validation")
	}

	cfg = &Config{EncryptionKey: validKey, Environment: EnvStaging, LogLevel: "verbose"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log level must fail validation")
	}
}
