// internal/workers/gateway_tasks_test.go
package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/uniswap-edge/internal/adapters/storage"
	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/services"
	"github.com/ammerola/uniswap-edge/internal/workers"
	"github.com/ammerola/uniswap-edge/test/helpers"
	"github.com/ammerola/uniswap-edge/test/mocks"
)

const origin = "http://upstream.test"

func baseConfig(t *testing.T) services.GatewayConfig {
	t.Helper()
	u, err := url.Parse(origin)
	require.NoError(t, err)
	return services.GatewayConfig{
		Version:       "v1",
		StaticPrefix:  "uniswap-static",
		DynamicPrefix: "uniswap-cache",
		Origin:        u,
		Precache:      []string{"/", "/index.html"},
		APIMarker:     "/api/",
	}
}

func TestNewPrecacheTask(t *testing.T) {
	task, err := workers.NewPrecacheTask("v2", []string{"/"})
	require.NoError(t, err)
	assert.Equal(t, workers.TypeGatewayPrecache, task.Type())

	var payload workers.PrecachePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "v2", payload.Version)
	assert.Equal(t, []string{"/"}, payload.Paths)

	_, err = workers.NewPrecacheTask("", nil)
	assert.Error(t, err)
}

func TestGatewayProcessor_Precache(t *testing.T) {
	tests := []struct {
		name          string
		payload       []byte
		offline       bool
		expectedError bool
		skipRetry     bool
		expectBucket  string
	}{
		{
			name:         "precaches_configured_paths",
			payload:      []byte(`{"version":"v2"}`),
			expectBucket: "uniswap-static-v2",
		},
		{
			name:         "precaches_explicit_paths",
			payload:      []byte(`{"version":"v3","paths":["/index.html"]}`),
			expectBucket: "uniswap-static-v3",
		},
		{
			name:          "network_down_is_retried",
			payload:       []byte(`{"version":"v2"}`),
			offline:       true,
			expectedError: true,
		},
		{
			name:          "malformed_payload_is_not_retried",
			payload:       []byte(`{"version":`),
			expectedError: true,
			skipRetry:     true,
		},
		{
			name:          "missing_version_is_not_retried",
			payload:       []byte(`{}`),
			expectedError: true,
			skipRetry:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caches := storage.NewMemoryCacheStorage()
			network := helpers.NewFakeNetwork().HandleAll(origin, "/", "/index.html")
			network.SetOffline(tt.offline)
			p := workers.NewGatewayProcessor(baseConfig(t), caches, network, helpers.TestLogger())

			err := p.Precache(context.Background(), asynq.NewTask(workers.TypeGatewayPrecache, tt.payload))

			if tt.expectedError {
				require.Error(t, err)
				assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
				keys, _ := caches.Keys(context.Background())
				assert.Empty(t, keys)
				return
			}

			require.NoError(t, err)
			entry, err := caches.Match(context.Background(), tt.expectBucket, origin+"/index.html")
			require.NoError(t, err)
			assert.Equal(t, "body of /index.html", string(entry.Body))
		})
	}
}

func TestGatewayProcessor_Sweep(t *testing.T) {
	ctx := context.Background()
	seed := func() *storage.MemoryCacheStorage {
		caches := storage.NewMemoryCacheStorage()
		for _, b := range []string{"uniswap-static-v0", "uniswap-cache-v0", "uniswap-static-v1", "uniswap-cache-v1", "uniswap-static-v2"} {
			require.NoError(t, caches.Put(ctx, b, origin+"/", &domain.CachedResponse{StatusCode: 200}))
		}
		return caches
	}

	tests := []struct {
		name     string
		payload  []byte
		expected []string
	}{
		{
			name:     "defaults_to_current_version",
			payload:  nil,
			expected: []string{"uniswap-cache-v1", "uniswap-static-v1"},
		},
		{
			name:     "explicit_keep_list",
			payload:  []byte(`{"keep":["uniswap-static-v2"]}`),
			expected: []string{"uniswap-static-v2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caches := seed()
			p := workers.NewGatewayProcessor(baseConfig(t), caches, helpers.NewFakeNetwork(), helpers.TestLogger())

			require.NoError(t, p.Sweep(ctx, asynq.NewTask(workers.TypeGatewaySweep, tt.payload)))

			keys, err := caches.Keys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, keys)
		})
	}
}

func TestGatewayProcessor_SweepStorageError(t *testing.T) {
	ctrl := gomock.NewController(t)
	caches := mocks.NewMockCacheStorage(ctrl)
	caches.EXPECT().Match(gomock.Any(), "uniswap-static@live", "versions").Return(nil, domain.ErrCacheMiss)
	caches.EXPECT().Keys(gomock.Any()).Return([]string{"uniswap-static-v0"}, nil)
	caches.EXPECT().Delete(gomock.Any(), "uniswap-static-v0").Return(false, errors.New("READONLY"))

	p := workers.NewGatewayProcessor(baseConfig(t), caches, helpers.NewFakeNetwork(), helpers.TestLogger())
	task, err := workers.NewSweepTask()
	require.NoError(t, err)

	err = p.Sweep(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
}

func TestGatewayProcessor_SweepKeepsLiveVersions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		skipWaiting bool
		attach      bool
		expectKept  []string
		expectGone  []string
		activeAfter string
	}{
		{
			name:        "version_activated_at_runtime",
			skipWaiting: true,
			expectKept:  []string{"uniswap-static-v2"},
			expectGone:  []string{"uniswap-static-v1"},
			activeAfter: "v2",
		},
		{
			name:        "waiting_version",
			attach:      true,
			expectKept:  []string{"uniswap-static-v1", "uniswap-static-v2"},
			activeAfter: "v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caches := storage.NewMemoryCacheStorage()
			network := helpers.NewFakeNetwork().HandleAll(origin, "/", "/index.html")

			base := baseConfig(t)
			reg := services.NewRegistry(base.WithVersion(""), caches, network, services.RegistryHooks{}, tt.skipWaiting, helpers.TestLogger())
			_, err := reg.Register(ctx, "v1")
			require.NoError(t, err)
			if tt.attach {
				reg.Attach()
			}
			_, err = reg.Register(ctx, "v2")
			require.NoError(t, err)

			// A stale generation nobody serves any more
			require.NoError(t, caches.Put(ctx, "uniswap-static-v0", origin+"/", &domain.CachedResponse{StatusCode: 200}))

			p := workers.NewGatewayProcessor(base, caches, network, helpers.TestLogger())
			task, err := workers.NewSweepTask()
			require.NoError(t, err)
			require.NoError(t, p.Sweep(ctx, task))

			keys, err := caches.Keys(ctx)
			require.NoError(t, err)
			assert.NotContains(t, keys, "uniswap-static-v0")
			assert.Contains(t, keys, "uniswap-static@live")
			for _, b := range tt.expectKept {
				assert.Contains(t, keys, b)
			}
			for _, b := range tt.expectGone {
				assert.NotContains(t, keys, b)
			}

			// The active generation still serves its shell offline
			network.SetOffline(true)
			req := httptest.NewRequest(http.MethodGet, origin+"/commodity/7", nil)
			req.Header.Set("Sec-Fetch-Mode", "navigate")
			resp, handled := reg.Respond(ctx, req)
			require.True(t, handled)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "hit", resp.Header.Get("X-Gateway-Cache"))
			assert.Equal(t, tt.activeAfter, reg.Status().Active.Version)
		})
	}
}

func TestGatewayProcessor_SweepExplicitKeepSparesLiveRecord(t *testing.T) {
	ctx := context.Background()
	caches := storage.NewMemoryCacheStorage()
	base := baseConfig(t)
	require.NoError(t, services.PublishLiveVersions(ctx, caches, base, []string{"v1"}))
	require.NoError(t, caches.Put(ctx, "uniswap-static-v1", origin+"/", &domain.CachedResponse{StatusCode: 200}))

	p := workers.NewGatewayProcessor(base, caches, helpers.NewFakeNetwork(), helpers.TestLogger())
	task, err := workers.NewSweepTask("uniswap-static-v9")
	require.NoError(t, err)
	require.NoError(t, p.Sweep(ctx, task))

	keys, err := caches.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"uniswap-static@live"}, keys)
}
