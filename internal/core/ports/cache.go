// internal/core/ports/cache.go
package ports

import (
	"context"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
)

// CacheStorage is the set of named cache buckets the gateway owns. Each
// bucket maps a full request URL to a stored response.
type CacheStorage interface {
	// Keys lists the names of every existing bucket
	Keys(ctx context.Context) ([]string, error)

	// Delete drops a whole bucket, reporting whether it existed
	Delete(ctx context.Context, bucket string) (bool, error)

	// Put stores resp under url in bucket, creating the bucket if needed
	Put(ctx context.Context, bucket, url string, resp *domain.CachedResponse) error

	// PutAll stores every entry or none of them
	PutAll(ctx context.Context, bucket string, entries []*domain.CachedResponse) error

	// Match returns the entry for url in bucket or domain.ErrCacheMiss
	Match(ctx context.Context, bucket, url string) (*domain.CachedResponse, error)

	Ping(ctx context.Context) error
}
