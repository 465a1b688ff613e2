// internal/core/services/gateway.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

// ErrInstallFailed is returned when any precache fetch fails
var ErrInstallFailed = errors.New("precache failed")

// Route is the caching strategy chosen for an intercepted request
type Route int

const (
	RoutePassthrough Route = iota
	RouteAPI
	RouteStatic
	RouteNavigation
	RouteDefault
)

func (r Route) String() string {
	switch r {
	case RoutePassthrough:
		return "passthrough"
	case RouteAPI:
		return "api"
	case RouteStatic:
		return "static"
	case RouteNavigation:
		return "navigation"
	default:
		return "default"
	}
}

// GatewayConfig describes one generation of the cache gateway
type GatewayConfig struct {
	Version       string
	StaticPrefix  string
	DynamicPrefix string
	Origin        *url.URL
	Precache      []string
	APIMarker     string
}

// StaticBucket is the precache bucket name for this version
func (c GatewayConfig) StaticBucket() string {
	return c.StaticPrefix + "-" + c.Version
}

// DynamicBucket is the runtime response bucket name for this version
func (c GatewayConfig) DynamicBucket() string {
	return c.DynamicPrefix + "-" + c.Version
}

// Buckets returns both bucket names in use by this version
func (c GatewayConfig) Buckets() []string {
	return []string{c.StaticBucket(), c.DynamicBucket()}
}

// LiveBucket holds the record of which versions are installing, waiting or active
func (c GatewayConfig) LiveBucket() string {
	return c.StaticPrefix + "@live"
}

// WithVersion returns a copy of the config for another generation
func (c GatewayConfig) WithVersion(version string) GatewayConfig {
	c.Version = version
	c.Precache = append([]string(nil), c.Precache...)
	return c
}

// Gateway intercepts GET requests and answers them network-first or
// cache-first depending on what is being fetched.
type Gateway struct {
	cfg     GatewayConfig
	caches  ports.CacheStorage
	network http.RoundTripper
	now     func() time.Time
	logger  *slog.Logger
}

// NewGateway creates a gateway generation. network performs the real fetch;
// a returned error means the network is unreachable.
func NewGateway(cfg GatewayConfig, caches ports.CacheStorage, network http.RoundTripper, logger *slog.Logger) *Gateway {
	if cfg.APIMarker == "" {
		cfg.APIMarker = "/api/"
	}
	return &Gateway{
		cfg:     cfg,
		caches:  caches,
		network: network,
		now:     time.Now,
		logger: logger.With(
			slog.String("component", "gateway"),
			slog.String("version", cfg.Version)),
	}
}

// Config returns the generation's configuration
func (g *Gateway) Config() GatewayConfig {
	return g.cfg
}

// Install fetches every precache path and stores them in the static bucket.
// Nothing is stored unless every fetch succeeded.
func (g *Gateway) Install(ctx context.Context) error {
	g.logger.InfoContext(ctx, "precaching static assets",
		slog.Int("count", len(g.cfg.Precache)))

	entries := make([]*domain.CachedResponse, 0, len(g.cfg.Precache))
	for _, path := range g.cfg.Precache {
		target := g.resolve(path)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("%w: build request for %s: %w", ErrInstallFailed, target, err)
		}

		resp, err := g.network.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("%w: fetch %s: %w", ErrInstallFailed, target, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return fmt.Errorf("%w: %s returned %d", ErrInstallFailed, target, resp.StatusCode)
		}

		entry, err := domain.NewCachedResponse(target, resp, g.now())
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrInstallFailed, target, err)
		}
		entries = append(entries, entry)
	}

	if err := g.caches.PutAll(ctx, g.cfg.StaticBucket(), entries); err != nil {
		return fmt.Errorf("%w: store precache: %w", ErrInstallFailed, err)
	}

	g.logger.InfoContext(ctx, "precache complete",
		slog.String("bucket", g.cfg.StaticBucket()))
	return nil
}

// Activate deletes every bucket that does not belong to this generation.
// The live-version record survives.
func (g *Gateway) Activate(ctx context.Context) ([]string, error) {
	return PruneBuckets(ctx, g.caches, g.logger, append(g.cfg.Buckets(), g.cfg.LiveBucket())...)
}

// PruneBuckets deletes all buckets except keep and returns what was deleted
func PruneBuckets(ctx context.Context, caches ports.CacheStorage, logger *slog.Logger, keep ...string) ([]string, error) {
	names, err := caches.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	var deleted []string
	for _, name := range names {
		if _, ok := keepSet[name]; ok {
			continue
		}
		logger.InfoContext(ctx, "deleting old cache", slog.String("bucket", name))
		if _, err := caches.Delete(ctx, name); err != nil {
			return deleted, fmt.Errorf("delete bucket %s: %w", name, err)
		}
		deleted = append(deleted, name)
	}

	return deleted, nil
}

// Classify picks the strategy for req. Only GET over http(s) is intercepted.
func (g *Gateway) Classify(req *http.Request) Route {
	if req.Method != http.MethodGet {
		return RoutePassthrough
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return RoutePassthrough
	}

	if strings.Contains(req.URL.Path, g.cfg.APIMarker) {
		return RouteAPI
	}

	switch strings.ToLower(req.Header.Get("Sec-Fetch-Dest")) {
	case "image", "style", "script", "font":
		return RouteStatic
	}

	if IsNavigation(req) {
		return RouteNavigation
	}
	return RouteDefault
}

// IsNavigation reports whether req is a full-page load
func IsNavigation(req *http.Request) bool {
	return strings.EqualFold(req.Header.Get("Sec-Fetch-Mode"), "navigate")
}

// Respond answers req from cache and/or network. handled is false when the
// request must pass through untouched. A handled request always gets a response.
func (g *Gateway) Respond(ctx context.Context, req *http.Request) (resp *http.Response, handled bool) {
	route := g.Classify(req)
	switch route {
	case RoutePassthrough:
		return nil, false
	case RouteStatic:
		return g.cacheFirst(ctx, req), true
	default:
		return g.networkFirst(ctx, req), true
	}
}

func (g *Gateway) networkFirst(ctx context.Context, req *http.Request) *http.Response {
	key := req.URL.String()

	resp, err := g.network.RoundTrip(req)
	if err == nil {
		if isOK(resp) {
			g.store(ctx, g.cfg.DynamicBucket(), key, resp)
		}
		return resp
	}

	g.logger.DebugContext(ctx, "network failed, trying cache",
		slog.String("url", key),
		slog.String("error", err.Error()))

	if cached := g.match(ctx, key); cached != nil {
		return hit(cached, req)
	}

	if IsNavigation(req) {
		if shell := g.match(ctx, g.rootURL()); shell != nil {
			return hit(shell, req)
		}
	}

	return OfflineResponse(req)
}

func (g *Gateway) cacheFirst(ctx context.Context, req *http.Request) *http.Response {
	key := req.URL.String()

	if cached := g.match(ctx, key); cached != nil {
		return hit(cached, req)
	}

	resp, err := g.network.RoundTrip(req)
	if err != nil {
		g.logger.DebugContext(ctx, "network request failed",
			slog.String("url", key),
			slog.String("error", err.Error()))
		return OfflineResponse(req)
	}

	if isOK(resp) {
		g.store(ctx, g.cfg.StaticBucket(), key, resp)
	}
	return resp
}

// store buffers resp and writes it to bucket. Store failures are logged; the
// live response is still returned.
func (g *Gateway) store(ctx context.Context, bucket, key string, resp *http.Response) {
	entry, err := domain.NewCachedResponse(key, resp, g.now())
	if err != nil {
		g.logger.WarnContext(ctx, "failed to buffer response",
			slog.String("url", key),
			slog.String("error", err.Error()))
		return
	}

	if err := g.caches.Put(ctx, bucket, key, entry); err != nil {
		g.logger.WarnContext(ctx, "failed to cache response",
			slog.String("bucket", bucket),
			slog.String("url", key),
			slog.String("error", err.Error()))
	}
}

// match searches this generation's buckets
func (g *Gateway) match(ctx context.Context, key string) *domain.CachedResponse {
	for _, bucket := range g.cfg.Buckets() {
		entry, err := g.caches.Match(ctx, bucket, key)
		if err == nil {
			return entry
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			g.logger.WarnContext(ctx, "cache lookup failed",
				slog.String("bucket", bucket),
				slog.String("url", key),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// resolve maps an app path onto the upstream the same way proxied requests are
// rewritten, so precached entries share keys with live traffic.
func (g *Gateway) resolve(path string) string {
	target := *g.cfg.Origin
	ref, err := url.Parse(path)
	if err != nil {
		target.Path = UpstreamPath(target.Path, path)
		target.RawPath = ""
		return target.String()
	}
	target.Path = UpstreamPath(target.Path, ref.Path)
	target.RawPath = ""
	target.RawQuery = ref.RawQuery
	target.Fragment = ""
	return target.String()
}

// UpstreamPath joins the origin's base path and a request path with exactly one slash
func UpstreamPath(base, path string) string {
	switch {
	case base == "":
		return path
	case strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/"):
		return base + path[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(path, "/"):
		return base + "/" + path
	}
	return base + path
}

func (g *Gateway) rootURL() string {
	return g.resolve("/")
}

// OfflineResponse is the synthetic reply when neither network nor cache can answer
func OfflineResponse(req *http.Request) *http.Response {
	entry := &domain.CachedResponse{
		StatusCode: http.StatusServiceUnavailable,
		Header: http.Header{
			"Content-Type":      []string{"text/plain; charset=utf-8"},
			"X-Gateway-Offline": []string{"1"},
		},
		Body: []byte("Offline"),
	}
	return entry.Response(req)
}

func hit(entry *domain.CachedResponse, req *http.Request) *http.Response {
	resp := entry.Response(req)
	resp.Header.Set("X-Gateway-Cache", "hit")
	return resp
}

func isOK(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
