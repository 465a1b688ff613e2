// internal/workers/gateway_tasks.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/uniswap-edge/internal/core/ports"
	"github.com/ammerola/uniswap-edge/internal/core/services"
)

const (
	TypeGatewayPrecache = "gateway:precache"
	TypeGatewaySweep    = "gateway:sweep"
)

// PrecachePayload warms the static bucket of one gateway version
type PrecachePayload struct {
	Version string   `json:"version"`
	Paths   []string `json:"paths,omitempty"`
}

// SweepPayload lists the buckets that survive a sweep
type SweepPayload struct {
	Keep []string `json:"keep,omitempty"`
}

// NewPrecacheTask builds a gateway:precache task. Empty paths use the configured precache list.
func NewPrecacheTask(version string, paths []string) (*asynq.Task, error) {
	if version == "" {
		return nil, errors.New("precache task needs a version")
	}
	payload, err := json.Marshal(PrecachePayload{Version: version, Paths: paths})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal precache payload: %w", err)
	}
	return asynq.NewTask(TypeGatewayPrecache, payload, asynq.MaxRetry(5), asynq.Timeout(5*time.Minute)), nil
}

// NewSweepTask builds a gateway:sweep task. An empty keep list means every
// live version's buckets plus the configured version's.
func NewSweepTask(keep ...string) (*asynq.Task, error) {
	payload, err := json.Marshal(SweepPayload{Keep: keep})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sweep payload: %w", err)
	}
	return asynq.NewTask(TypeGatewaySweep, payload, asynq.MaxRetry(3)), nil
}

// GatewayProcessor runs gateway cache maintenance against the shared cache storage
type GatewayProcessor struct {
	base    services.GatewayConfig
	caches  ports.CacheStorage
	network http.RoundTripper
	logger  *slog.Logger
}

// NewGatewayProcessor creates a processor. base carries the current version.
func NewGatewayProcessor(base services.GatewayConfig, caches ports.CacheStorage, network http.RoundTripper, logger *slog.Logger) *GatewayProcessor {
	return &GatewayProcessor{
		base:    base,
		caches:  caches,
		network: network,
		logger:  logger.With(slog.String("processor", "gateway")),
	}
}

// Register mounts the processor's handlers on mux
func (p *GatewayProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeGatewayPrecache, p.Precache)
	mux.HandleFunc(TypeGatewaySweep, p.Sweep)
}

// Precache installs a version's static bucket ahead of a gateway update
func (p *GatewayProcessor) Precache(ctx context.Context, t *asynq.Task) error {
	var payload PrecachePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Version == "" {
		return fmt.Errorf("precache payload without version: %w", asynq.SkipRetry)
	}

	cfg := p.base.WithVersion(payload.Version)
	if len(payload.Paths) > 0 {
		cfg.Precache = payload.Paths
	}

	start := time.Now()
	p.logger.InfoContext(ctx, "precaching version",
		slog.String("version", cfg.Version),
		slog.Int("paths", len(cfg.Precache)))

	if err := services.NewGateway(cfg, p.caches, p.network, p.logger).Install(ctx); err != nil {
		return fmt.Errorf("precache %s: %w", cfg.Version, err)
	}

	p.logger.InfoContext(ctx, "version precached",
		slog.String("version", cfg.Version),
		slog.String("bucket", cfg.StaticBucket()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Sweep deletes every bucket not in the keep list. The live-version record is never swept.
func (p *GatewayProcessor) Sweep(ctx context.Context, t *asynq.Task) error {
	var payload SweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	keep := append(payload.Keep, p.base.LiveBucket())
	if len(payload.Keep) == 0 {
		live, err := services.LiveBuckets(ctx, p.caches, p.base)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		keep = live
	}

	deleted, err := services.PruneBuckets(ctx, p.caches, p.logger, keep...)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	p.logger.InfoContext(ctx, "cache sweep complete",
		slog.Any("keep", keep),
		slog.Int("deleted", len(deleted)))
	return nil
}

// RegisterSchedules puts the periodic sweep on scheduler. spec is a cron
// expression or "@every <duration>".
func RegisterSchedules(scheduler *asynq.Scheduler, spec string) (string, error) {
	task, err := NewSweepTask()
	if err != nil {
		return "", err
	}
	id, err := scheduler.Register(spec, task, asynq.Unique(time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to schedule %s: %w", TypeGatewaySweep, err)
	}
	return id, nil
}
