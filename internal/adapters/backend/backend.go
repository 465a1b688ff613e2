// internal/adapters/backend/backend.go
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/uniswap-edge/internal/adapters/db"
	redis_a "github.com/ammerola/uniswap-edge/internal/adapters/redis_adapter"
	"github.com/ammerola/uniswap-edge/internal/adapters/storage"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
	"github.com/ammerola/uniswap-edge/internal/pkg/config"
)

// Cache is an opened gateway cache backend. Redis and Database are set only
// for the backends that own them, so health checks can report on them.
type Cache struct {
	Storage  ports.CacheStorage
	Redis    *redis.Client
	Database *db.Database
	Name     string
}

// Close releases whatever connections the backend holds
func (c *Cache) Close() {
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.Database != nil {
		c.Database.Close()
	}
}

// NewRedisClient builds a go-redis client from config
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

// AsynqRedisOpt is the connection asynq clients, servers and inspectors share
func AsynqRedisOpt(cfg config.AsynqConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// OpenCache connects the backend named by GATEWAY_CACHE_BACKEND
func OpenCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Cache, error) {
	name := cfg.Gateway.CacheBackend
	logger.Info("opening gateway cache backend", slog.String("backend", name))

	switch name {
	case "redis":
		client := NewRedisClient(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return &Cache{Storage: redis_a.NewCacheStorage(client, logger), Redis: client, Name: name}, nil

	case "postgres":
		database, err := db.NewDatabase(ctx, databaseConfig(cfg.Database), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.RunMigrations(ctx, database, logger); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return &Cache{Storage: db.NewCacheStorage(database.SQL(), logger), Database: database, Name: name}, nil

	case "s3":
		s3cfg := &storage.S3Config{
			Region:          cfg.AWS.Region,
			Bucket:          cfg.AWS.S3Bucket,
			Prefix:          cfg.AWS.S3Prefix,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.S3Endpoint,
			UsePathStyle:    cfg.AWS.UsePathStyle,
		}
		client, err := storage.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return &Cache{Storage: storage.NewS3CacheStorage(client, s3cfg, logger), Name: name}, nil

	case "memory":
		return &Cache{Storage: storage.NewMemoryCacheStorage(), Name: name}, nil

	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", config.ErrInvalidConfig, name)
	}
}

// OpenLocalStorage opens the client-side key/value store named by CART_STORAGE.
// The returned func releases it.
func OpenLocalStorage(ctx context.Context, cfg *config.Config, namespace string, logger *slog.Logger) (ports.LocalStorage, func(), error) {
	noop := func() {}

	switch cfg.Cart.Storage {
	case "file":
		fs, err := storage.NewFileLocalStorage(cfg.Cart.FilePath, cfg.Cart.QuotaBytes, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open file storage: %w", err)
		}
		return fs, noop, nil

	case "redis":
		client := NewRedisClient(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return redis_a.NewLocalStorage(client, namespace, cfg.Cart.QuotaBytes, logger), func() { client.Close() }, nil

	case "memory":
		return storage.NewMemoryLocalStorage(cfg.Cart.QuotaBytes), noop, nil

	default:
		return nil, noop, fmt.Errorf("%w: unknown cart storage %q", config.ErrInvalidConfig, cfg.Cart.Storage)
	}
}

func databaseConfig(c config.DatabaseConfig) *db.Config {
	return &db.Config{
		Host:               c.Host,
		Port:               c.Port,
		User:               c.User,
		Password:           c.Password,
		Database:           c.Name,
		SSLMode:            c.SSLMode,
		MaxConnections:     c.MaxConnections,
		MinConnections:     c.MinConnections,
		MaxConnLifetime:    c.MaxConnLifetime,
		MaxConnIdleTime:    c.MaxConnIdleTime,
		HealthCheckPeriod:  c.HealthCheckPeriod,
		ConnectTimeout:     c.ConnectTimeout,
		EnableQueryLogging: c.EnableQueryLogging,
	}
}
