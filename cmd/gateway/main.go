// cmd/gateway/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/uniswap-edge/internal/adapters/backend"
	"github.com/ammerola/uniswap-edge/internal/core/services"
	"github.com/ammerola/uniswap-edge/internal/handlers"
	"github.com/ammerola/uniswap-edge/internal/handlers/middleware"
	"github.com/ammerola/uniswap-edge/internal/pkg/config"
	"github.com/ammerola/uniswap-edge/internal/pkg/logger"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	bootLogger := logger.SetupLogger(&logger.LogConfig{Level: "debug", Format: "json", Output: "stdout"})

	bootLogger.Info("starting uniswap edge gateway",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(bootLogger.Logger)
	if err != nil {
		bootLogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger := logger.SetupLogger(&logger.LogConfig{
		Level:          cfg.App.LogLevel,
		Format:         cfg.App.LogFormat,
		Output:         "stdout",
		Environment:    cfg.App.Environment,
		ServiceName:    "gateway",
		ServiceVersion: Version,
	}).Logger
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("cache_backend", cfg.Gateway.CacheBackend),
		slog.String("gateway_version", cfg.Gateway.Version),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	// An install failure is not fatal: requests pass through until an
	// update succeeds.
	if _, err := deps.registry.Register(ctx, cfg.Gateway.Version); err != nil {
		slogger.Error("initial worker install failed, passing requests through",
			slog.String("version", cfg.Gateway.Version),
			slog.String("error", err.Error()))
	}

	server := setupHTTPServer(ctx, cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("upstream", cfg.Gateway.UpstreamURL),
		)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds everything the HTTP server needs
type dependencies struct {
	cache          *backend.Cache
	asynqInspector *asynq.Inspector
	registry       *services.Registry
	origin         *url.URL
	upstream       *http.Transport
}

func (d *dependencies) cleanup() {
	if d.cache != nil {
		d.cache.Close()
	}
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.upstream != nil {
		d.upstream.CloseIdleConnections()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	origin, err := url.Parse(cfg.Gateway.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	deps.origin = origin

	cache, err := backend.OpenCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.cache = cache

	deps.asynqInspector = asynq.NewInspector(backend.AsynqRedisOpt(cfg.Asynq))

	deps.upstream = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Server.HandlerTimeout,
	}

	gatewayCfg := services.GatewayConfig{
		Version:       cfg.Gateway.Version,
		StaticPrefix:  cfg.Gateway.StaticPrefix,
		DynamicPrefix: cfg.Gateway.DynamicPrefix,
		Origin:        origin,
		Precache:      cfg.Gateway.Precache,
		APIMarker:     cfg.Gateway.APIMarker,
	}

	hooks := services.RegistryHooks{
		OnRegistered: func(version string) {
			logger.Info("gateway worker registered", slog.String("version", version))
		},
		OnRegisterError: func(version string, err error) {
			logger.Error("gateway worker registration failed",
				slog.String("version", version),
				slog.String("error", err.Error()))
		},
		OnNeedRefresh: func(version string) {
			logger.Info("new gateway version waiting; send SKIP_WAITING to activate",
				slog.String("version", version))
		},
		OnOfflineReady: func(version string) {
			logger.Info("gateway ready to work offline", slog.String("version", version))
		},
	}

	deps.registry = services.NewRegistry(gatewayCfg, cache.Storage, deps.upstream, hooks,
		cfg.Gateway.SkipWaitingOnInstall, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func setupHTTPServer(ctx context.Context, cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	healthDeps := handlers.HealthDeps{
		Cache:    deps.cache.Storage,
		Redis:    deps.cache.Redis,
		Asynq:    deps.asynqInspector,
		Registry: deps.registry,
	}
	if deps.cache.Database != nil {
		healthDeps.Database = deps.cache.Database
	}
	handlers.NewHealthHandler(healthDeps, Version, cfg.App.Environment, logger).RegisterRoutes(mux)
	handlers.NewGatewayHandler(deps.registry, deps.origin, deps.upstream, nil, logger).RegisterRoutes(mux)

	mws := []middleware.Middleware{
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.Logger(logger),
	}
	if cfg.Security.RateLimitRequests > 0 {
		mws = append(mws, middleware.RateLimit(ctx, cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration))
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		mws = append(mws, middleware.CORS(cfg.Security.AllowedOrigins))
	}
	if cfg.Security.SecureHeaders {
		mws = append(mws, middleware.SecureHeaders)
	}
	if cfg.Server.HandlerTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.Server.HandlerTimeout))
	}

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        middleware.Chain(mux, mws...),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}
