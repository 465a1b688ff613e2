// internal/handlers/health.go
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/uniswap-edge/internal/core/ports"
	"github.com/ammerola/uniswap-edge/internal/core/services"
)

// HealthDeps are the dependencies the health endpoints report on. Only Cache
// is required.
type HealthDeps struct {
	Cache    ports.HealthChecker
	Database ports.Database
	Redis    *redis.Client
	Asynq    *asynq.Inspector
	Registry *services.Registry
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	deps        HealthDeps
	version     string
	environment string
	logger      *slog.Logger
	startTime   time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(deps HealthDeps, version, environment string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		deps:        deps,
		version:     version,
		environment: environment,
		logger:      logger.With(slog.String("handler", "health")),
		startTime:   time.Now(),
	}
}

// RegisterRoutes mounts /health and /ready
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Readiness)
}

// HealthStatus represents the health status of the gateway
type HealthStatus struct {
	Status      string                   `json:"status"`
	Version     string                   `json:"version"`
	Environment string                   `json:"environment"`
	Uptime      string                   `json:"uptime"`
	Timestamp   time.Time                `json:"timestamp"`
	Services    map[string]ServiceInfo   `json:"services"`
	Gateway     *services.RegistryStatus `json:"gateway,omitempty"`
	System      SystemInfo               `json:"system"`
}

// ServiceInfo represents the status of a service dependency
type ServiceInfo struct {
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	ResponseTime string         `json:"response_time,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// SystemInfo represents system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	NumGC         uint32 `json:"num_gc"`
}

// Health handles the /health endpoint
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := HealthStatus{
		Status:      "healthy",
		Version:     h.version,
		Environment: h.environment,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now(),
		Services:    make(map[string]ServiceInfo),
		System:      systemInfo(),
	}

	health.Services["cache"] = h.checkCache(ctx)
	if h.deps.Database != nil {
		health.Services["database"] = h.checkDatabase(ctx)
	}
	if h.deps.Redis != nil {
		health.Services["redis"] = h.checkRedis(ctx)
	}
	if h.deps.Asynq != nil {
		health.Services["asynq"] = h.checkAsynq(ctx)
	}
	for _, svc := range health.Services {
		if svc.Status != "healthy" {
			health.Status = "degraded"
		}
	}

	if h.deps.Registry != nil {
		status := h.deps.Registry.Status()
		health.Gateway = &status
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	h.respond(ctx, w, statusCode, health)
}

// Readiness is ready once the cache backend answers and a worker is active
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ready := true
	details := make(map[string]string)

	if err := h.deps.Cache.Ping(ctx); err != nil {
		ready = false
		details["cache"] = "not ready"
	} else {
		details["cache"] = "ready"
	}

	if h.deps.Registry != nil {
		if _, err := h.deps.Registry.Active(); err != nil {
			ready = false
			details["gateway"] = "no active worker"
		} else {
			details["gateway"] = "ready"
		}
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	h.respond(ctx, w, statusCode, map[string]any{
		"ready":   ready,
		"details": details,
	})
}

func (h *HealthHandler) respond(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode health response",
			slog.String("error", err.Error()))
	}
}

func (h *HealthHandler) checkCache(ctx context.Context) ServiceInfo {
	start := time.Now()
	if err := h.deps.Cache.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "cache health check failed",
			slog.String("error", err.Error()))
		return ServiceInfo{Status: "unhealthy", Message: err.Error()}
	}

	info := ServiceInfo{Status: "healthy", ResponseTime: time.Since(start).String()}
	if keys, ok := h.deps.Cache.(interface {
		Keys(context.Context) ([]string, error)
	}); ok {
		if buckets, err := keys.Keys(ctx); err == nil {
			sort.Strings(buckets)
			info.Details = map[string]any{"buckets": buckets}
		}
	}
	return info
}

func (h *HealthHandler) checkDatabase(ctx context.Context) ServiceInfo {
	start := time.Now()
	if err := h.deps.Database.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "database health check failed",
			slog.String("error", err.Error()))
		return ServiceInfo{Status: "unhealthy", Message: err.Error()}
	}

	return ServiceInfo{
		Status:       "healthy",
		ResponseTime: time.Since(start).String(),
		Details:      h.deps.Database.Health(ctx),
	}
}

func (h *HealthHandler) checkRedis(ctx context.Context) ServiceInfo {
	start := time.Now()
	pong, err := h.deps.Redis.Ping(ctx).Result()
	if err != nil {
		h.logger.ErrorContext(ctx, "redis health check failed",
			slog.String("error", err.Error()))
		return ServiceInfo{Status: "unhealthy", Message: err.Error()}
	}

	stats := h.deps.Redis.PoolStats()
	return ServiceInfo{
		Status:       "healthy",
		ResponseTime: time.Since(start).String(),
		Details: map[string]any{
			"ping":        pong,
			"total_conns": stats.TotalConns,
			"idle_conns":  stats.IdleConns,
			"stale_conns": stats.StaleConns,
		},
	}
}

func (h *HealthHandler) checkAsynq(ctx context.Context) ServiceInfo {
	start := time.Now()
	queues, err := h.deps.Asynq.Queues()
	if err != nil {
		h.logger.ErrorContext(ctx, "asynq health check failed",
			slog.String("error", err.Error()))
		return ServiceInfo{Status: "unhealthy", Message: err.Error()}
	}

	queueStats := make(map[string]any, len(queues))
	for _, queue := range queues {
		qInfo, err := h.deps.Asynq.GetQueueInfo(queue)
		if err != nil {
			continue
		}
		queueStats[queue] = map[string]int{
			"size":      qInfo.Size,
			"active":    qInfo.Active,
			"pending":   qInfo.Pending,
			"scheduled": qInfo.Scheduled,
			"retry":     qInfo.Retry,
			"archived":  qInfo.Archived,
		}
	}

	return ServiceInfo{
		Status:       "healthy",
		ResponseTime: time.Since(start).String(),
		Details:      map[string]any{"queues": queueStats},
	}
}

func systemInfo() SystemInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		MemoryAllocMB: memStats.Alloc / 1024 / 1024,
		NumGC:         memStats.NumGC,
	}
}
