// internal/core/ports/database.go
package ports

import "context"

// HealthChecker is anything the health endpoint can probe
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Database is the slice of the Postgres pool the handlers see
type Database interface {
	HealthChecker
	Health(ctx context.Context) map[string]interface{}
	Close()
}
