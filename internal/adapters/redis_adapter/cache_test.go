package redis_a_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/uniswap-edge/internal/adapters/redis_adapter"
	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/test/helpers"
)

func cached(url, body string) *domain.CachedResponse {
	return &domain.CachedResponse{
		URL:        url,
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte(body),
		StoredAt:   time.Unix(1700000000, 0).UTC(),
	}
}

func TestCacheStorage_PutAndMatch(t *testing.T) {
	ctx := context.Background()
	r := helpers.SetupTestRedis(t)
	store := redis_a.NewCacheStorage(r.Client, helpers.TestLogger())

	tests := []struct {
		name   string
		bucket string
		url    string
		body   string
	}{
		{name: "stores_root_document", bucket: "uniswap-static-v1", url: "http://upstream.test/", body: "<html>root</html>"},
		{name: "stores_api_response", bucket: "uniswap-cache-v1", url: "http://upstream.test/api/post/page?current=1", body: `{"records":[]}`},
		{name: "overwrites_same_url", bucket: "uniswap-cache-v1", url: "http://upstream.test/api/post/page?current=1", body: `{"records":[1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, tt.bucket, tt.url, cached(tt.url, tt.body)))

			got, err := store.Match(ctx, tt.bucket, tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(got.Body))
			assert.Equal(t, "text/html", got.Header.Get("Content-Type"))
			assert.Equal(t, http.StatusOK, got.StatusCode)
		})
	}

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"uniswap-cache-v1", "uniswap-static-v1"}, keys)
}

func TestCacheStorage_Miss(t *testing.T) {
	ctx := context.Background()
	r := helpers.SetupTestRedis(t)
	store := redis_a.NewCacheStorage(r.Client, helpers.TestLogger())

	_, err := store.Match(ctx, "uniswap-static-v1", "http://upstream.test/nope")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestCacheStorage_PutUsesGivenURL(t *testing.T) {
	ctx := context.Background()
	r := helpers.SetupTestRedis(t)
	store := redis_a.NewCacheStorage(r.Client, helpers.TestLogger())

	require.NoError(t, store.Put(ctx, "b", "http://upstream.test/a", cached("http://elsewhere/", "x")))

	got, err := store.Match(ctx, "b", "http://upstream.test/a")
	require.NoError(t, err)
	assert.Equal(t, "http://upstream.test/a", got.URL)
}

func TestCacheStorage_PutAllAndDelete(t *testing.T) {
	ctx := context.Background()
	r := helpers.SetupTestRedis(t)
	store := redis_a.NewCacheStorage(r.Client, helpers.TestLogger())

	entries := []*domain.CachedResponse{
		cached("http://upstream.test/", "root"),
		cached("http://upstream.test/index.html", "index"),
		cached("http://upstream.test/manifest.json", "{}"),
	}
	require.NoError(t, store.PutAll(ctx, "uniswap-static-v1", entries))
	require.NoError(t, store.PutAll(ctx, "uniswap-static-v2", entries[:1]))
	require.NoError(t, store.PutAll(ctx, "empty", nil))

	for _, e := range entries {
		_, err := store.Match(ctx, "uniswap-static-v1", e.URL)
		assert.NoError(t, err, e.URL)
	}

	existed, err := store.Delete(ctx, "uniswap-static-v1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "uniswap-static-v1")
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = store.Match(ctx, "uniswap-static-v1", "http://upstream.test/")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"uniswap-static-v2"}, keys)

	assert.True(t, r.Server.Exists(redis_a.BuildKey(redis_a.PrefixGateway, "bucket", "uniswap-static-v2")))
	assert.False(t, r.Server.Exists(redis_a.BuildKey(redis_a.PrefixGateway, "bucket", "uniswap-static-v1")))
}

func TestCacheStorage_Ping(t *testing.T) {
	ctx := context.Background()
	r := helpers.SetupTestRedis(t)
	store := redis_a.NewCacheStorage(r.Client, helpers.TestLogger())

	require.NoError(t, store.Ping(ctx))

	r.Server.Close()
	assert.Error(t, store.Ping(ctx))
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	r := helpers.SetupTestRedis(t)
	ls := redis_a.NewLocalStorage(r.Client, "device-1", 0, helpers.TestLogger())

	got, err := ls.GetItem(ctx, "cart")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, ls.SetItem(ctx, "cart", []byte(`[{"commodityId":1}]`)))
	got, err = ls.GetItem(ctx, "cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"commodityId":1}]`, string(got))

	// Namespaces do not see each other
	other := redis_a.NewLocalStorage(r.Client, "device-2", 0, helpers.TestLogger())
	got, err = other.GetItem(ctx, "cart")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, ls.RemoveItem(ctx, "cart"))
	got, err = ls.GetItem(ctx, "cart")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalStorage_Quota(t *testing.T) {
	ctx := context.Background()
	r := helpers.SetupTestRedis(t)
	ls := redis_a.NewLocalStorage(r.Client, "device-1", 64, helpers.TestLogger())

	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
	}{
		{name: "fits", key: "token", value: strings.Repeat("t", 20)},
		{name: "second_key_fits", key: "cart", value: strings.Repeat("c", 30)},
		{name: "growing_past_quota", key: "cart", value: strings.Repeat("c", 40), wantErr: true},
		{name: "replacing_within_quota", key: "cart", value: strings.Repeat("c", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ls.SetItem(ctx, tt.key, []byte(tt.value))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
				return
			}
			require.NoError(t, err)
		})
	}

	got, err := ls.GetItem(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("c", 10), string(got))
}
