// internal/adapters/redis/cache.go
package redis_a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

// CacheKeyPrefix defines prefixes for different key families
type CacheKeyPrefix string

const (
	PrefixGateway CacheKeyPrefix = "gw"
	PrefixLocal   CacheKeyPrefix = "ls"
)

// CacheStorage keeps gateway buckets in Redis: one hash per bucket keyed by
// URL, plus a set of bucket names.
type CacheStorage struct {
	client *redis.Client
	prefix CacheKeyPrefix
	logger *slog.Logger
}

// Statically assert that *CacheStorage implements the CacheStorage interface.
var _ ports.CacheStorage = (*CacheStorage)(nil)

// NewCacheStorage creates a Redis-backed bucket store
func NewCacheStorage(client *redis.Client, logger *slog.Logger) *CacheStorage {
	return &CacheStorage{
		client: client,
		prefix: PrefixGateway,
		logger: logger.With(slog.String("component", "redis_cache_storage")),
	}
}

func (c *CacheStorage) namesKey() string {
	return BuildKey(c.prefix, "buckets")
}

func (c *CacheStorage) bucketKey(bucket string) string {
	return BuildKey(c.prefix, "bucket", bucket)
}

// Keys lists every bucket name in sorted order
func (c *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	names, err := c.client.SMembers(ctx, c.namesKey()).Result()
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to list buckets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("redis smembers error: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete drops a bucket and its entries
func (c *CacheStorage) Delete(ctx context.Context, bucket string) (bool, error) {
	var removed *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.bucketKey(bucket))
		removed = pipe.SRem(ctx, c.namesKey(), bucket)
		return nil
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to delete bucket",
			slog.String("bucket", bucket),
			slog.String("error", err.Error()))
		return false, fmt.Errorf("redis delete bucket error: %w", err)
	}

	existed := removed.Val() > 0
	c.logger.DebugContext(ctx, "bucket deleted",
		slog.String("bucket", bucket),
		slog.Bool("existed", existed))
	return existed, nil
}

// Put stores one response, overwriting any previous entry for url
func (c *CacheStorage) Put(ctx context.Context, bucket, url string, resp *domain.CachedResponse) error {
	return c.PutAll(ctx, bucket, []*domain.CachedResponse{withURL(resp, url)})
}

// PutAll writes every entry in one MULTI/EXEC transaction
func (c *CacheStorage) PutAll(ctx context.Context, bucket string, entries []*domain.CachedResponse) error {
	if len(entries) == 0 {
		return nil
	}

	fields := make(map[string]any, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		fields[e.URL] = data
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.bucketKey(bucket), fields)
		pipe.SAdd(ctx, c.namesKey(), bucket)
		return nil
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to store responses",
			slog.String("bucket", bucket),
			slog.Int("count", len(entries)),
			slog.String("error", err.Error()))
		return fmt.Errorf("redis hset error: %w", err)
	}

	c.logger.DebugContext(ctx, "responses stored",
		slog.String("bucket", bucket),
		slog.Int("count", len(entries)))
	return nil
}

// Match retrieves the stored response for url
func (c *CacheStorage) Match(ctx context.Context, bucket, url string) (*domain.CachedResponse, error) {
	data, err := c.client.HGet(ctx, c.bucketKey(bucket), url).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.logger.DebugContext(ctx, "cache miss",
				slog.String("bucket", bucket),
				slog.String("url", url))
			return nil, domain.ErrCacheMiss
		}
		c.logger.ErrorContext(ctx, "failed to match",
			slog.String("bucket", bucket),
			slog.String("url", url),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("redis hget error: %w", err)
	}

	var resp domain.CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	return &resp, nil
}

// Ping checks if Redis is accessible
func (c *CacheStorage) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.ErrorContext(ctx, "redis ping failed", slog.String("error", err.Error()))
		return fmt.Errorf("redis ping error: %w", err)
	}
	return nil
}

func withURL(resp *domain.CachedResponse, url string) *domain.CachedResponse {
	if resp.URL == url {
		return resp
	}
	cp := *resp
	cp.URL = url
	return &cp
}

// BuildKey creates a key with prefix
func BuildKey(prefix CacheKeyPrefix, parts ...string) string {
	key := string(prefix)
	for _, part := range parts {
		key += ":" + part
	}
	return key
}
