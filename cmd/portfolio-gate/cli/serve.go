package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/secfolio/portfolio-gate/internal/admin"
	"github.com/secfolio/portfolio-gate/internal/apikeys"
	"github.com/secfolio/portfolio-gate/internal/auth"
	"github.com/secfolio/portfolio-gate/internal/config"
	"github.com/secfolio/portfolio-gate/internal/download"
	"github.com/secfolio/portfolio-gate/internal/metrics"
	"github.com/secfolio/portfolio-gate/internal/middleware"
	"github.com/secfolio/portfolio-gate/internal/secrets"
	"github.com/secfolio/portfolio-gate/internal/storage"
	"github.com/secfolio/portfolio-gate/internal/turnstile"
	"github.com/secfolio/portfolio-gate/internal/web"
)

const shutdownTimeout = 30 * time.Second

// bodyLogAllowlist names the JSON fields debug request logging may show
// verbatim; everything else is redacted.
var bodyLogAllowlist = []string{"success", "status", "error", "message", "level", "name", "service", "environment", "isActive"}

func newServeCmd() *cobra.Command {
	var corsOrigins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the portfolio-gate server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(corsOrigins)
		},
	}

	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", []string{"https://*"}, "allowed CORS origins for the public API")

	return cmd
}

func runServe(corsOrigins []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return err
	}
	codec, err := secrets.NewCodec(key)
	if err != nil {
		return err
	}

	st, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		_ = st.Close() //nolint:errcheck
	}()
	logger.Info("storage initialized", "path", cfg.DatabasePath)

	if err := metrics.Init(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	keySvc := apikeys.NewService(st, codec, logger)
	siteKeys := turnstile.NewSiteKeys(st, codec, logger)
	provider, secretSource := buildVerification(cfg, siteKeys, logger)
	gateway := turnstile.NewGateway(provider, secretSource, st, logger)

	adminHandler := admin.NewHandler(
		st,
		auth.NewAuthenticator(st, logger),
		auth.NewSessions(codec, cfg.CookieSecure),
		keySvc, siteKeys, logLevel, logger,
	)
	webHandler := web.NewHandler(gateway, download.NewIssuer(codec), keySvc, cfg.ResumeFileURL, logger)

	root := chi.NewRouter()
	root.Use(middleware.RequestID)
	root.Use(metrics.Middleware)
	root.Use(middleware.HTTPLogging(logger, bodyLogAllowlist))
	root.Mount("/api", webHandler.NewRouter(corsOrigins))
	root.Mount("/", adminHandler.NewRouter())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              cfg.MetricsListenAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("metrics server starting", "addr", cfg.MetricsListenAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	return nil
}

// buildVerification selects the verification provider and its secret
// source. An environment-supplied secret wins; otherwise the secret is
// resolved from the stored site key on every check, so rotation needs
// no restart. The simulated provider is only ever used in development,
// and only when no real secret is configured anywhere.
func buildVerification(cfg *config.Config, siteKeys *turnstile.SiteKeys, logger *slog.Logger) (turnstile.Provider, turnstile.SecretSource) {
	if cfg.TurnstileSecret != "" {
		return turnstile.NewLiveProvider(turnstile.NewClient()), turnstile.StaticSecret(cfg.TurnstileSecret)
	}
	if cfg.Environment == config.EnvDevelopment {
		logger.Warn("no verification secret configured - using simulated provider (development only)")
		return &turnstile.SimulatedProvider{}, turnstile.StaticSecret("")
	}
	return turnstile.NewLiveProvider(turnstile.NewClient()), func(ctx context.Context) (string, error) {
		return siteKeys.ResolveSecret(ctx, cfg.Environment, "")
	}
}
