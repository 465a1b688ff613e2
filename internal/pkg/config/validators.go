// internal/pkg/config/validators.go
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ProductionValidator performs strict validation for production environments
type ProductionValidator struct{}

// Validate performs production-specific validation
func (v *ProductionValidator) Validate(cfg *Config) error {
	if !cfg.Security.SecureHeaders {
		return fmt.Errorf("%w: secure headers must be enabled in production", ErrInvalidConfig)
	}

	if len(cfg.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("%w: allowed origins", ErrMissingRequiredConfig)
	}
	for _, origin := range cfg.Security.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("%w: wildcard origin (*) not allowed in production", ErrInvalidConfig)
		}
	}

	if !isHTTPS(cfg.API.BaseURL) {
		return fmt.Errorf("%w: API base URL must use https in production", ErrInvalidConfig)
	}

	switch cfg.Gateway.CacheBackend {
	case "memory":
		return fmt.Errorf("%w: memory cache backend is not shared between replicas", ErrInvalidConfig)
	case "postgres":
		if cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("%w: database SSL must be enabled in production", ErrInvalidConfig)
		}
		if isPlaceholder(cfg.Database.Password) {
			return fmt.Errorf("%w: database password", ErrMissingRequiredConfig)
		}
	case "s3":
		if cfg.AWS.S3Endpoint != "" && !isHTTPS(cfg.AWS.S3Endpoint) {
			return fmt.Errorf("%w: S3 endpoint must use https in production", ErrInvalidConfig)
		}
	}

	return nil
}

func isHTTPS(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "https"
}

func isPlaceholder(s string) bool {
	return s == "" || s == "uniswap_dev" || strings.HasPrefix(s, "MISSING_")
}
