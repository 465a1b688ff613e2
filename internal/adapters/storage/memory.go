// internal/adapters/storage/memory.go
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

// MemoryCacheStorage keeps cache buckets in process memory
type MemoryCacheStorage struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*domain.CachedResponse
}

var _ ports.CacheStorage = (*MemoryCacheStorage)(nil)

func NewMemoryCacheStorage() *MemoryCacheStorage {
	return &MemoryCacheStorage{
		buckets: make(map[string]map[string]*domain.CachedResponse),
	}
}

func (m *MemoryCacheStorage) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryCacheStorage) Delete(ctx context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.buckets[bucket]
	delete(m.buckets, bucket)
	return ok, nil
}

func (m *MemoryCacheStorage) Put(ctx context.Context, bucket, url string, resp *domain.CachedResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bucket(bucket)[url] = cloneResponse(resp)
	return nil
}

func (m *MemoryCacheStorage) PutAll(ctx context.Context, bucket string, entries []*domain.CachedResponse) error {
	for _, e := range entries {
		if e.URL == "" {
			return fmt.Errorf("entry without url")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(bucket)
	for _, e := range entries {
		b[e.URL] = cloneResponse(e)
	}
	return nil
}

func (m *MemoryCacheStorage) Match(ctx context.Context, bucket, url string) (*domain.CachedResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.buckets[bucket][url]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return cloneResponse(entry), nil
}

func (m *MemoryCacheStorage) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryCacheStorage) bucket(name string) map[string]*domain.CachedResponse {
	b, ok := m.buckets[name]
	if !ok {
		b = make(map[string]*domain.CachedResponse)
		m.buckets[name] = b
	}
	return b
}

func cloneResponse(r *domain.CachedResponse) *domain.CachedResponse {
	c := *r
	c.Header = r.Header.Clone()
	c.Body = append([]byte(nil), r.Body...)
	return &c
}

// MemoryLocalStorage is a LocalStorage with an optional byte quota
type MemoryLocalStorage struct {
	mu    sync.Mutex
	quota int64
	items map[string][]byte
}

var _ ports.LocalStorage = (*MemoryLocalStorage)(nil)

// NewMemoryLocalStorage creates a store; quota <= 0 disables the limit
func NewMemoryLocalStorage(quota int64) *MemoryLocalStorage {
	return &MemoryLocalStorage{
		quota: quota,
		items: make(map[string][]byte),
	}
}

func (m *MemoryLocalStorage) GetItem(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryLocalStorage) SetItem(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		used := int64(len(key) + len(value))
		for k, v := range m.items {
			if k != key {
				used += int64(len(k) + len(v))
			}
		}
		if used > m.quota {
			return fmt.Errorf("set %s: %w", key, domain.ErrQuotaExceeded)
		}
	}

	m.items[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryLocalStorage) RemoveItem(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}
