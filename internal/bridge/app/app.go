// Package app wires the bridge's components together and runs the HTTP
// server with graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	bridgehttp "github.com/relaygate/authbridge/internal/bridge/http"
	"github.com/relaygate/authbridge/internal/bridge/service"
	"github.com/relaygate/authbridge/internal/bridge/store/drivers/sqlite"
	"github.com/relaygate/authbridge/internal/bridge/upstream"
	"github.com/relaygate/authbridge/pkg/cryptox"
	"github.com/relaygate/authbridge/pkg/httpx"
	"github.com/relaygate/authbridge/pkg/redirectx"
	"github.com/relaygate/authbridge/pkg/slogx"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Application owns the bridge's long-lived components.
type Application struct {
	cfg    *Config
	logger *slog.Logger

	store        *sqlite.Store
	housekeeping *service.HousekeepingService
	rateLimiter  *httpx.RateLimiter
	server       *http.Server
}

// New builds the full application from config. A missing or unreadable
// sealbox key outside dev mode is a startup failure.
func New(cfg *Config) (*Application, error) {
	env := "prod"
	if cfg.DevMode {
		env = "dev"
	}
	logger := slogx.New(slogx.Config{
		Service: "authbridge",
		Version: Version,
		Env:     env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	box, err := cryptox.LoadSealbox(cfg.SealboxKeyFile, sealboxKeyEnv, cfg.DevMode)
	if err != nil {
		return nil, fmt.Errorf("load sealbox key: %w", err)
	}

	st, err := sqlite.Open(cfg.DatabasePath, box)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider := upstream.New(upstream.Config{
		ClientID:     cfg.UpstreamClientID,
		ClientSecret: cfg.UpstreamClientSecret,
		AuthorizeURL: cfg.UpstreamAuthorizeURL,
		TokenURL:     cfg.UpstreamTokenURL,
		RedirectURI:  cfg.CallbackURL(),
		Scopes:       cfg.UpstreamScopes,
		Timeout:      cfg.UpstreamTimeout,
	})

	var verifierOpts []upstream.VerifierOption
	if cfg.UpstreamIssuer != "" {
		verifierOpts = append(verifierOpts, upstream.WithIssuer(cfg.UpstreamIssuer))
	}
	if cfg.UpstreamAudience != "" {
		verifierOpts = append(verifierOpts, upstream.WithAudience(cfg.UpstreamAudience))
	}
	verifier := upstream.NewVerifier(cfg.UpstreamJWKSURL, verifierOpts...)

	policyOpts := []redirectx.Option{}
	if cfg.AllowLoopbackRedirects {
		policyOpts = append(policyOpts, redirectx.WithLoopback())
	}
	if cfg.RedirectWildcardPrefix != "" {
		policyOpts = append(policyOpts, redirectx.WithWildcardPrefix(cfg.RedirectWildcardPrefix))
	}
	policy := redirectx.NewPolicy(policyOpts...)

	audit := service.SlogAuditSink{Logger: logger}
	var metrics service.MetricsSink = service.NopMetricsSink{}
	if cfg.DevMode {
		metrics = service.SlogMetricsSink{Logger: logger}
	}

	clients := service.NewRegistrationService(st, logger, audit)
	authorize := service.NewAuthorizeService(st, provider, policy, clients, logger, audit, metrics)
	callback := service.NewCallbackService(st, provider, verifier, nil, logger, audit, metrics)
	tokens := service.NewTokenService(st, provider, verifier, clients, logger, audit, metrics)
	housekeeping := service.NewHousekeepingService(st, logger, cfg.HousekeepingInterval)

	rateLimiter := httpx.NewRateLimiter(httpx.RateLimitConfig{
		StrictRPS:   cfg.RateLimitStrictRPS,
		ModerateRPS: cfg.RateLimitModerateRPS,
		LenientRPS:  cfg.RateLimitLenientRPS,
	})

	router := bridgehttp.NewRouter(bridgehttp.RouterConfig{
		Logger:    logger,
		RateLimit: rateLimiter,
		Register:  bridgehttp.NewRegisterHandler(clients),
		Authorize: bridgehttp.NewAuthorizeHandler(authorize),
		Callback:  bridgehttp.NewCallbackHandler(callback),
		Token:     bridgehttp.NewTokenHandler(tokens),
		Clients:   bridgehttp.NewClientsHandler(clients),
		Metadata:  bridgehttp.NewMetadataHandler(cfg.ExternalURL),
		Health:    bridgehttp.NewHealthHandler(st, verifier, Version),

		AdminToken: cfg.AdminToken,
		EnableDocs: cfg.EnableDocs,
	})

	return &Application{
		cfg:          cfg,
		logger:       logger,
		store:        st,
		housekeeping: housekeeping,
		rateLimiter:  rateLimiter,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}, nil
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	a.housekeeping.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("bridge listening",
			slog.String("addr", a.cfg.ListenAddr),
			slog.String("external_url", a.cfg.ExternalURL),
			slog.String("version", Version),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("server shutdown", slog.String("error", err.Error()))
	}

	a.housekeeping.Stop()
	a.rateLimiter.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close", slog.String("error", err.Error()))
	}
	return nil
}
