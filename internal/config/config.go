// Package config provides configuration loading and validation. Values
// come from an optional config file and PORTFOLIO_GATE_* environment
// variables, with environment variables taking precedence.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Known deployment environments. The simulated verification provider is
// only ever selected outside production.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// encryptionKeyBytes is the AES-256 key size; the configured value is
// its hex encoding, 64 characters.
const encryptionKeyBytes = 32

// Config holds all application configuration.
type Config struct {
	LogLevel          string // debug, info, warn, error
	ListenAddr        string // Public/admin server listen address
	MetricsListenAddr string // Metrics listener address, kept off the public port
	DatabasePath      string // SQLite database path
	Environment       string // development, staging or production

	// EncryptionKey is the hex-encoded 32-byte AES key protecting stored
	// secrets, session cookies and download tokens.
	EncryptionKey string

	// TurnstileSecret and TurnstileSiteKey are fallbacks used when no
	// site key is configured in storage for the current environment.
	TurnstileSecret string
	TurnstileSiteKey string

	// ResumeFileURL is the protected file the download-token flow gates.
	ResumeFileURL string

	// CookieSecure marks session cookies Secure; disable only for local
	// plain-HTTP development.
	CookieSecure bool
}

// Load reads configuration from the given file (optional, "" skips it)
// and the environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("metrics_listen_addr", "localhost:9090")
	v.SetDefault("database_path", "/data/gate.db")
	v.SetDefault("environment", EnvProduction)
	v.SetDefault("cookie_secure", true)

	v.SetEnvPrefix("PORTFOLIO_GATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		LogLevel:          v.GetString("log_level"),
		ListenAddr:        v.GetString("listen_addr"),
		MetricsListenAddr: v.GetString("metrics_listen_addr"),
		DatabasePath:      v.GetString("database_path"),
		Environment:       v.GetString("environment"),
		EncryptionKey:     v.GetString("encryption_key"),
		TurnstileSecret:   v.GetString("turnstile_secret"),
		TurnstileSiteKey:  v.GetString("turnstile_site_key"),
		ResumeFileURL:     v.GetString("resume_file_url"),
		CookieSecure:      v.GetBool("cookie_secure"),
	}

	return cfg, nil
}

// Validate checks all configuration constraints. A missing or malformed
// encryption key fails here so the process refuses to start rather than
// minting undecryptable data.
func (c *Config) Validate() error {
	if _, err := c.EncryptionKeyBytes(); err != nil {
		return err
	}

	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("PORTFOLIO_GATE_ENVIRONMENT must be one of development, staging, production (got %q)", c.Environment)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("PORTFOLIO_GATE_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}

	return nil
}

// EncryptionKeyBytes decodes the configured key. The key must be the
// hex encoding of exactly 32 bytes.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, fmt.Errorf("PORTFOLIO_GATE_ENCRYPTION_KEY environment variable is required")
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("PORTFOLIO_GATE_ENCRYPTION_KEY must be hex-encoded: %w", err)
	}
	if len(key) != encryptionKeyBytes {
		return nil, fmt.Errorf("PORTFOLIO_GATE_ENCRYPTION_KEY must encode %d bytes, got %d", encryptionKeyBytes, len(key))
	}
	return key, nil
}
