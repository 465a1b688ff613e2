// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/uniswap-edge/internal/adapters/backend"
	"github.com/ammerola/uniswap-edge/internal/core/services"
	"github.com/ammerola/uniswap-edge/internal/pkg/config"
	"github.com/ammerola/uniswap-edge/internal/pkg/logger"
	"github.com/ammerola/uniswap-edge/internal/workers"
)

func main() {
	bootLogger := logger.SetupLogger(&logger.LogConfig{Level: "info", Format: "json", Output: "stdout"})

	cfg, err := config.Load(bootLogger.Logger)
	if err != nil {
		bootLogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger := logger.SetupLogger(&logger.LogConfig{
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		Output:      "stdout",
		Environment: cfg.App.Environment,
		ServiceName: "worker",
	}).Logger
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr),
		slog.String("cache_backend", cfg.Gateway.CacheBackend))

	ctx := context.Background()
	cache, err := backend.OpenCache(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to open cache backend", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cache.Close()

	origin, err := url.Parse(cfg.Gateway.UpstreamURL)
	if err != nil {
		slogger.Error("invalid upstream url", slog.String("error", err.Error()))
		os.Exit(1)
	}

	redisOpt := backend.AsynqRedisOpt(cfg.Asynq)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ErrorHandler:    asynq.ErrorHandlerFunc(handleError),
		RetryDelayFunc:  exponentialBackoff,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
		HealthCheckFunc: healthCheck,
		Logger:          newAsynqLogger(slogger),
	})

	base := services.GatewayConfig{
		Version:       cfg.Gateway.Version,
		StaticPrefix:  cfg.Gateway.StaticPrefix,
		DynamicPrefix: cfg.Gateway.DynamicPrefix,
		Origin:        origin,
		Precache:      cfg.Gateway.Precache,
		APIMarker:     cfg.Gateway.APIMarker,
	}
	network := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	defer network.CloseIdleConnections()

	mux := asynq.NewServeMux()
	workers.NewGatewayProcessor(base, cache.Storage, network, slogger).Register(mux)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: newAsynqLogger(slogger),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				slogger.Error("scheduled enqueue failed", slog.String("error", err.Error()))
			}
		},
	})
	if cfg.Gateway.SweepInterval != "" {
		id, err := workers.RegisterSchedules(scheduler, cfg.Gateway.SweepInterval)
		if err != nil {
			slogger.Error("failed to register schedules", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slogger.Info("sweep scheduled",
			slog.String("entry_id", id),
			slog.String("spec", cfg.Gateway.SweepInterval))
	}

	// Warm the configured version so a gateway restart installs from a hot cache.
	if err := enqueuePrecache(redisOpt, cfg.Gateway.Version); err != nil {
		slogger.Warn("failed to enqueue precache", slog.String("error", err.Error()))
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(mux); err != nil {
			slogger.Error("failed to run worker server", slog.String("error", err.Error()))
			shutdown <- syscall.SIGTERM
		}
	}()
	go func() {
		if err := scheduler.Run(); err != nil {
			slogger.Error("failed to run scheduler", slog.String("error", err.Error()))
			shutdown <- syscall.SIGTERM
		}
	}()

	slogger.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues))

	sig := <-shutdown
	slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

	scheduler.Shutdown()
	srv.Shutdown()
	slogger.Info("worker shutdown complete")
}

func enqueuePrecache(redisOpt asynq.RedisClientOpt, version string) error {
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	task, err := workers.NewPrecacheTask(version, nil)
	if err != nil {
		return err
	}
	_, err = client.Enqueue(task, asynq.TaskID("precache:"+version), asynq.Retention(time.Hour))
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue %s: %w", workers.TypeGatewayPrecache, err)
	}
	return nil
}

func handleError(ctx context.Context, task *asynq.Task, err error) {
	slog.ErrorContext(ctx, "task processing failed",
		slog.String("type", task.Type()),
		slog.String("payload", string(task.Payload())),
		slog.String("error", err.Error()))
}

func exponentialBackoff(n int, e error, t *asynq.Task) time.Duration {
	baseDelay := time.Second
	maxDelay := 10 * time.Minute
	delay := baseDelay * time.Duration(1<<uint(n))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func healthCheck(err error) {
	if err != nil {
		slog.Error("worker health check failed", slog.String("error", err.Error()))
	}
}

// asynqLogger adapts slog for Asynq
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{
		logger: logger.With(slog.String("component", "asynq")),
	}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
