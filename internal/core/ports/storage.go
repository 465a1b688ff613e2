// internal/core/ports/storage.go
package ports

import "context"

// LocalStorage persists small pieces of client state under string keys.
// Values are always read and written whole.
type LocalStorage interface {
	// GetItem returns nil, nil when the key is absent
	GetItem(ctx context.Context, key string) ([]byte, error)

	// SetItem replaces the value; returns domain.ErrQuotaExceeded when it does not fit
	SetItem(ctx context.Context, key string, value []byte) error

	RemoveItem(ctx context.Context, key string) error
}
