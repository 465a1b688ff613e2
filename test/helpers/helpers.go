// test/helpers/helpers.go
package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/uniswap-edge/internal/adapters/db"
	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/pkg/config"
)

// TestDB represents a test database instance
type TestDB struct {
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// SetupTestDB creates a PostgreSQL container for integration tests
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_edge",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "test_edge",
		SSLMode:            "disable",
		MaxConnections:     5,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		EnableQueryLogging: testing.Verbose(),
	}

	var database *db.Database
	err = pool.Retry(func() error {
		ctx := context.Background()
		var err error
		database, err = db.NewDatabase(ctx, dbConfig, TestLogger())
		if err != nil {
			return err
		}
		return database.Ping(ctx)
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")

	err = db.RunMigrations(context.Background(), database, TestLogger())
	require.NoError(t, err, "Could not run migrations")

	t.Cleanup(database.Close)

	return &TestDB{
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// SetupTestRedis creates a mock Redis instance for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// SetupMockDB creates a mock database for unit testing
func SetupMockDB(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock DB")

	t.Cleanup(func() {
		db.Close()
	})

	return mock, db
}

// LoadTestConfig returns a test configuration
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "test-edge",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			SecureHeaders:     false,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			PoolSize: 10,
		},
		Gateway: config.GatewayConfig{
			Version:       "v1",
			StaticPrefix:  "uniswap-static",
			DynamicPrefix: "uniswap-cache",
			UpstreamURL:   "http://upstream.test",
			Precache:      []string{"/", "/index.html", "/manifest.json", "/favicon.svg", "/logo-icon.svg"},
			APIMarker:     "/api/",
			CacheBackend:  "memory",
			SweepInterval: "@every 1h",
		},
		Cart: config.CartConfig{
			Mode:       "server",
			Storage:    "memory",
			StorageKey: "cart",
			QuotaBytes: 5 << 20,
		},
		ListCache: config.ListCacheConfig{
			DedupInterval:         2 * time.Second,
			RetryCount:            3,
			RetryInterval:         10 * time.Millisecond,
			RevalidateOnReconnect: true,
		},
		API: config.APIConfig{
			BaseURL: "http://api.test/uniswap",
			Timeout: 5 * time.Second,
		},
	}
}

// CreateTestCommodity creates a listed commodity
func CreateTestCommodity(overrides ...func(*domain.Commodity)) *domain.Commodity {
	c := &domain.Commodity{
		ID:                 42,
		CommodityName:      "Used calculus textbook",
		CommodityAvatar:    "https://cdn.test/42.png",
		Price:              decimal.RequireFromString("10.00"),
		CommodityInventory: 5,
		Degree:             "9成新",
		IsListed:           1,
	}
	for _, override := range overrides {
		override(c)
	}
	return c
}

// CreateTestProductRef returns a product reference with the given price
func CreateTestProductRef(id domain.ProductID, price string) domain.ProductRef {
	return domain.ProductRef{
		ProductID: id,
		Name:      fmt.Sprintf("Product %d", id),
		UnitPrice: decimal.RequireFromString(price),
	}
}

// CreateTestServerCart builds a server cart whose totals match its lines
func CreateTestServerCart(lines ...domain.CartLine) *domain.ServerCart {
	snap := domain.ComputeSnapshot(lines)
	return &domain.ServerCart{
		Lines:          lines,
		TotalQuantity:  snap.TotalQuantity,
		TotalAmount:    snap.TotalAmount,
		DiscountAmount: decimal.Zero,
		FinalAmount:    snap.TotalAmount,
	}
}

// CreateTestCartLine returns a selected server line
func CreateTestCartLine(id string, product domain.ProductID, price string, quantity int) domain.CartLine {
	return domain.CartLine{
		LineID:     domain.LineID(id),
		ProductID:  product,
		Name:       fmt.Sprintf("Product %d", product),
		UnitPrice:  decimal.RequireFromString(price),
		AddedPrice: decimal.RequireFromString(price),
		Quantity:   quantity,
		Selected:   true,
		Status:     domain.LineStatusListed,
	}
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}
