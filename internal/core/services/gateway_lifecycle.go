// internal/core/services/gateway_lifecycle.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

var (
	ErrNoWaitingWorker = errors.New("no waiting worker")
	ErrUnknownMessage  = errors.New("unknown message type")
	ErrUnknownClient   = errors.New("unknown client")
	ErrNoActiveWorker  = errors.New("no active worker")
)

// MessageSkipWaiting asks a waiting worker to activate immediately
const MessageSkipWaiting = "SKIP_WAITING"

// Message is a structured message posted from a page to the gateway
type Message struct {
	Type string `json:"type"`
}

// WorkerState is a gateway generation's position in its lifecycle
type WorkerState int

const (
	StateInstalling WorkerState = iota
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s WorkerState) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name
func (s WorkerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Worker is one installed gateway generation
type Worker struct {
	ID          string
	Version     string
	State       WorkerState
	InstalledAt time.Time
	ActivatedAt time.Time

	gateway *Gateway
}

// WorkerInfo is a read-only view of a worker
type WorkerInfo struct {
	ID          string      `json:"id"`
	Version     string      `json:"version"`
	State       WorkerState `json:"state"`
	InstalledAt time.Time   `json:"installed_at,omitempty"`
	ActivatedAt time.Time   `json:"activated_at,omitempty"`
}

func (w *Worker) info() *WorkerInfo {
	if w == nil {
		return nil
	}
	return &WorkerInfo{
		ID:          w.ID,
		Version:     w.Version,
		State:       w.State,
		InstalledAt: w.InstalledAt,
		ActivatedAt: w.ActivatedAt,
	}
}

// RegistryStatus is the registry state reported to pages
type RegistryStatus struct {
	Active  *WorkerInfo `json:"active"`
	Waiting *WorkerInfo `json:"waiting"`
	Clients int         `json:"clients"`
}

// RegistryHooks are the page-facing registration callbacks. Any may be nil.
type RegistryHooks struct {
	OnRegistered    func(version string)
	OnRegisterError func(version string, err error)
	OnNeedRefresh   func(version string)
	OnOfflineReady  func(version string)
}

// Registry drives gateway generations through
// installing -> installed (waiting) -> activating -> activated.
type Registry struct {
	base        GatewayConfig
	caches      ports.CacheStorage
	network     http.RoundTripper
	hooks       RegistryHooks
	skipWaiting bool
	baseLogger  *slog.Logger
	logger      *slog.Logger

	// transition serializes lifecycle changes; mu guards the fields below
	transition sync.Mutex
	mu         sync.RWMutex
	active     *Worker
	waiting    *Worker
	clients    map[string]time.Time
}

// NewRegistry creates an empty registry. base supplies everything except the version.
func NewRegistry(
	base GatewayConfig,
	caches ports.CacheStorage,
	network http.RoundTripper,
	hooks RegistryHooks,
	skipWaiting bool,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		base:        base,
		caches:      caches,
		network:     network,
		hooks:       hooks,
		skipWaiting: skipWaiting,
		baseLogger:  logger,
		logger:      logger.With(slog.String("component", "gateway_registry")),
		clients:     make(map[string]time.Time),
	}
}

// Register installs version as a new worker. Registering the version that is
// already active or waiting is a no-op.
func (r *Registry) Register(ctx context.Context, version string) (*WorkerInfo, error) {
	r.transition.Lock()
	defer r.transition.Unlock()

	r.mu.RLock()
	for _, w := range []*Worker{r.active, r.waiting} {
		if w != nil && w.Version == version {
			r.mu.RUnlock()
			r.logger.DebugContext(ctx, "version already registered",
				slog.String("version", version),
				slog.String("state", w.State.String()))
			return w.info(), nil
		}
	}
	r.mu.RUnlock()

	worker := &Worker{
		ID:      uuid.NewString(),
		Version: version,
		State:   StateInstalling,
		gateway: NewGateway(r.base.WithVersion(version), r.caches, r.network, r.baseLogger),
	}

	log := r.logger.With(
		slog.String("worker_id", worker.ID),
		slog.String("version", version))
	log.InfoContext(ctx, "installing worker")

	// Claim the version before its buckets exist so a concurrent sweep keeps them
	r.publish(ctx, version)

	if err := worker.gateway.Install(ctx); err != nil {
		worker.State = StateRedundant
		r.publish(ctx)
		log.ErrorContext(ctx, "worker install failed", slog.String("error", err.Error()))
		if r.hooks.OnRegisterError != nil {
			r.hooks.OnRegisterError(version, err)
		}
		return worker.info(), fmt.Errorf("register %s: %w", version, err)
	}

	r.mu.Lock()
	worker.State = StateInstalled
	worker.InstalledAt = time.Now()
	if r.waiting != nil {
		r.waiting.State = StateRedundant
	}
	r.waiting = worker
	hasActive := r.active != nil
	r.mu.Unlock()

	if r.hooks.OnRegistered != nil {
		r.hooks.OnRegistered(version)
	}

	switch {
	case !hasActive:
		r.activate(ctx)
		if r.hooks.OnOfflineReady != nil {
			r.hooks.OnOfflineReady(version)
		}
	case r.skipWaiting:
		r.activate(ctx)
	default:
		r.publish(ctx)
		log.InfoContext(ctx, "worker waiting for activation")
		if r.hooks.OnNeedRefresh != nil {
			r.hooks.OnNeedRefresh(version)
		}
	}

	return worker.info(), nil
}

// PostMessage delivers a page message to the registry
func (r *Registry) PostMessage(ctx context.Context, msg Message) error {
	switch msg.Type {
	case MessageSkipWaiting:
		return r.SkipWaiting(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

// SkipWaiting activates the waiting worker without waiting for clients to leave
func (r *Registry) SkipWaiting(ctx context.Context) error {
	r.transition.Lock()
	defer r.transition.Unlock()

	r.mu.RLock()
	waiting := r.waiting
	r.mu.RUnlock()
	if waiting == nil {
		return ErrNoWaitingWorker
	}

	r.activate(ctx)
	return nil
}

// Attach registers a controlled client and returns its id
func (r *Registry) Attach() string {
	id := uuid.NewString()

	r.mu.Lock()
	r.clients[id] = time.Now()
	r.mu.Unlock()

	return id
}

// Detach removes a client. When the last client leaves, a waiting worker activates.
func (r *Registry) Detach(ctx context.Context, id string) error {
	r.transition.Lock()
	defer r.transition.Unlock()

	r.mu.Lock()
	if _, ok := r.clients[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	delete(r.clients, id)
	remaining := len(r.clients)
	hasWaiting := r.waiting != nil
	r.mu.Unlock()

	if remaining == 0 && hasWaiting {
		r.logger.InfoContext(ctx, "last client detached, activating waiting worker")
		r.activate(ctx)
	}
	return nil
}

// activate promotes the waiting worker. Callers hold r.transition.
func (r *Registry) activate(ctx context.Context) {
	r.mu.Lock()
	worker := r.waiting
	if worker == nil {
		r.mu.Unlock()
		return
	}
	worker.State = StateActivating
	r.mu.Unlock()

	log := r.logger.With(
		slog.String("worker_id", worker.ID),
		slog.String("version", worker.Version))

	deleted, err := worker.gateway.Activate(ctx)
	if err != nil {
		log.WarnContext(ctx, "stale bucket cleanup incomplete", slog.String("error", err.Error()))
	}

	r.mu.Lock()
	if r.active != nil {
		r.active.State = StateRedundant
	}
	worker.State = StateActivated
	worker.ActivatedAt = time.Now()
	r.active = worker
	r.waiting = nil
	r.mu.Unlock()

	r.publish(ctx)
	log.InfoContext(ctx, "worker activated", slog.Int("deleted_buckets", len(deleted)))
}

// publish records the active and waiting versions, plus extra, as live
func (r *Registry) publish(ctx context.Context, extra ...string) {
	r.mu.RLock()
	versions := make([]string, 0, 2+len(extra))
	for _, w := range []*Worker{r.active, r.waiting} {
		if w != nil {
			versions = append(versions, w.Version)
		}
	}
	r.mu.RUnlock()
	versions = append(versions, extra...)

	if err := PublishLiveVersions(ctx, r.caches, r.base, versions); err != nil {
		r.logger.WarnContext(ctx, "failed to publish live versions", slog.String("error", err.Error()))
	}
}

// Respond routes req through the active worker. handled is false when there is
// no active worker or the request is not intercepted.
func (r *Registry) Respond(ctx context.Context, req *http.Request) (*http.Response, bool) {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()

	if active == nil {
		return nil, false
	}
	return active.gateway.Respond(ctx, req)
}

// Active returns the gateway currently serving requests
func (r *Registry) Active() (*Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == nil {
		return nil, ErrNoActiveWorker
	}
	return r.active.gateway, nil
}

// Status snapshots the registry
func (r *Registry) Status() RegistryStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RegistryStatus{
		Active:  r.active.info(),
		Waiting: r.waiting.info(),
		Clients: len(r.clients),
	}
}
