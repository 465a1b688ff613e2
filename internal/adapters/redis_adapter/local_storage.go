// internal/adapters/redis/local_storage.go
package redis_a

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

// maxQuotaRetries bounds optimistic-lock retries when writers race
const maxQuotaRetries = 5

// LocalStorage keeps one client's persisted state in a Redis hash, so a
// storefront session can move between machines.
type LocalStorage struct {
	client *redis.Client
	key    string
	quota  int64
	logger *slog.Logger
}

var _ ports.LocalStorage = (*LocalStorage)(nil)

// NewLocalStorage creates a store for namespace; quota <= 0 disables the limit
func NewLocalStorage(client *redis.Client, namespace string, quota int64, logger *slog.Logger) *LocalStorage {
	return &LocalStorage{
		client: client,
		key:    BuildKey(PrefixLocal, namespace),
		quota:  quota,
		logger: logger.With(slog.String("component", "redis_local_storage"), slog.String("namespace", namespace)),
	}
}

func (s *LocalStorage) GetItem(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.HGet(ctx, s.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget error: %w", err)
	}
	return data, nil
}

// SetItem writes value under WATCH so the quota check and the write are atomic
func (s *LocalStorage) SetItem(ctx context.Context, key string, value []byte) error {
	if s.quota <= 0 {
		if err := s.client.HSet(ctx, s.key, key, value).Err(); err != nil {
			return fmt.Errorf("redis hset error: %w", err)
		}
		return nil
	}

	txf := func(tx *redis.Tx) error {
		all, err := tx.HGetAll(ctx, s.key).Result()
		if err != nil {
			return err
		}

		used := int64(len(key) + len(value))
		for k, v := range all {
			if k != key {
				used += int64(len(k) + len(v))
			}
		}
		if used > s.quota {
			return fmt.Errorf("%s needs %d of %d bytes: %w", key, used, s.quota, domain.ErrQuotaExceeded)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, key, value)
			return nil
		})
		return err
	}

	for i := 0; i < maxQuotaRetries; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.DebugContext(ctx, "concurrent write, retrying", slog.String("key", key), slog.Int("attempt", i+1))
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrQuotaExceeded) {
			return fmt.Errorf("redis set item error: %w", err)
		}
		return err
	}
	return fmt.Errorf("redis set item %s: too many concurrent writers", key)
}

func (s *LocalStorage) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.key, key).Err(); err != nil {
		return fmt.Errorf("redis hdel error: %w", err)
	}
	return nil
}
