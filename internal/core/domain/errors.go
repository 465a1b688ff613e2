// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss is returned when a cache bucket holds no entry for a key
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnauthorized is returned for 401 responses; the session is already logged out
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNetwork marks transport failures (no response at all)
	ErrNetwork = errors.New("network error")

	// ErrQuotaExceeded is returned when persisted client state outgrows its storage quota
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrLineNotFound is returned when a cart line id is unknown
	ErrLineNotFound = errors.New("cart line not found")

	// ErrInvalidQuantity is returned when a quantity argument is below one
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	ErrProductNotFound = errors.New("product not found")
)

// APIError is an application-level failure reported by the backend, either
// through the {errorCode, errorMsg} envelope or a non-2xx status.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// Is makes errors.Is(err, ErrUnauthorized) hold for 401 responses
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == 401
}

// Temporary reports whether retrying the same request may succeed
func (e *APIError) Temporary() bool {
	return e.Status >= 500
}

// NetworkError wraps a transport failure
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNetwork) hold for every NetworkError
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}
