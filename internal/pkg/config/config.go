// internal/pkg/config/config.go
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingRequiredConfig = errors.New("missing required configuration")
	ErrInvalidConfig         = errors.New("invalid configuration")
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Security  SecurityConfig
	Redis     RedisConfig
	Asynq     AsynqConfig
	Database  DatabaseConfig
	AWS       AWSConfig
	Gateway   GatewayConfig
	Cart      CartConfig
	ListCache ListCacheConfig
	API       APIConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	Debug       bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	HandlerTimeout  time.Duration
	MaxHeaderBytes  int
	GracefulTimeout time.Duration
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

// Addr is host:port
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Concurrency     int
	Queues          map[string]int // queue name -> priority
	StrictPriority  bool
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds Postgres settings for the postgres cache backend
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxConnections     int32
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	EnableQueryLogging bool
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Prefix        string
	S3Endpoint      string // For MinIO in development
	UsePathStyle    bool
	SecretName      string // Secrets Manager secret holding passwords and tokens
}

// GatewayConfig configures the offline cache gateway
type GatewayConfig struct {
	Version              string
	StaticPrefix         string
	DynamicPrefix        string
	UpstreamURL          string
	Precache             []string
	APIMarker            string
	CacheBackend         string // redis, postgres, s3, memory
	SweepInterval        string
	SkipWaitingOnInstall bool
}

// CartConfig configures the client cart store
type CartConfig struct {
	Mode       string // server, local
	Storage    string // file, redis, memory
	StorageKey string
	QuotaBytes int64
	FilePath   string
}

// ListCacheConfig tunes the stale-while-revalidate list cache
type ListCacheConfig struct {
	DedupInterval         time.Duration
	RetryCount            int
	RetryInterval         time.Duration
	RevalidateOnReconnect bool
}

// APIConfig points the client at the storefront backend
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
	Token   string
}

// Load reads configuration from the environment, with .env support in development
func Load(logger *slog.Logger) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	env := v.GetString("APP_ENV")
	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Warn("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	cfg := fromViper(v)

	if cfg.AWS.SecretName != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sm, err := NewAWSSecretsManager(ctx, cfg.AWS.Region, cfg.AWS.SecretName, logger)
		if err != nil {
			return nil, err
		}
		if err := ApplySecrets(ctx, cfg, sm); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "uniswap-edge")
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("SERVER_HANDLER_TIMEOUT", 45*time.Second)
	v.SetDefault("SERVER_MAX_HEADER_BYTES", 1<<20)
	v.SetDefault("SERVER_GRACEFUL_TIMEOUT", 30*time.Second)

	v.SetDefault("RATE_LIMIT_REQUESTS", 300)
	v.SetDefault("RATE_LIMIT_DURATION", time.Minute)
	v.SetDefault("ALLOWED_ORIGINS", "*")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)

	v.SetDefault("ASYNQ_REDIS_DB", 1)
	v.SetDefault("ASYNQ_CONCURRENCY", 4)
	v.SetDefault("ASYNQ_QUEUES", "critical:6,default:3,low:1")
	v.SetDefault("ASYNQ_SHUTDOWN_TIMEOUT", 30*time.Second)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "uniswap")
	v.SetDefault("DB_PASSWORD", "uniswap_dev")
	v.SetDefault("DB_NAME", "uniswap_edge")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_CONNECTIONS", 10)
	v.SetDefault("DB_MIN_CONNECTIONS", 2)
	v.SetDefault("DB_CONNECTION_LIFETIME", time.Hour)
	v.SetDefault("DB_IDLE_TIME", 30*time.Minute)
	v.SetDefault("DB_HEALTH_CHECK_PERIOD", time.Minute)
	v.SetDefault("DB_CONNECT_TIMEOUT", 10*time.Second)

	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_S3_BUCKET", "uniswap-edge-cache")
	v.SetDefault("AWS_S3_PREFIX", "gateway")

	v.SetDefault("GATEWAY_VERSION", "v1")
	v.SetDefault("GATEWAY_STATIC_PREFIX", "uniswap-static")
	v.SetDefault("GATEWAY_DYNAMIC_PREFIX", "uniswap-cache")
	v.SetDefault("GATEWAY_UPSTREAM_URL", "http://localhost:5173")
	v.SetDefault("GATEWAY_PRECACHE", "/,/index.html,/manifest.json,/favicon.svg,/logo-icon.svg")
	v.SetDefault("GATEWAY_API_MARKER", "/api/")
	v.SetDefault("GATEWAY_CACHE_BACKEND", "redis")
	v.SetDefault("GATEWAY_SWEEP_INTERVAL", "@every 1h")
	v.SetDefault("GATEWAY_SKIP_WAITING_ON_INSTALL", false)

	v.SetDefault("CART_MODE", "server")
	v.SetDefault("CART_STORAGE", "file")
	v.SetDefault("CART_STORAGE_KEY", "cart")
	v.SetDefault("CART_STORAGE_QUOTA_BYTES", 5<<20)
	v.SetDefault("CART_FILE_PATH", ".uniswap")

	v.SetDefault("LIST_DEDUP_INTERVAL", 2*time.Second)
	v.SetDefault("LIST_RETRY_COUNT", 3)
	v.SetDefault("LIST_RETRY_INTERVAL", 3*time.Second)
	v.SetDefault("LIST_REVALIDATE_ON_RECONNECT", true)

	v.SetDefault("API_BASE_URL", "http://localhost:8109/uniswap")
	v.SetDefault("API_TIMEOUT", 30*time.Second)
}

func fromViper(v *viper.Viper) *Config {
	env := v.GetString("APP_ENV")
	redis := RedisConfig{
		Host:         v.GetString("REDIS_HOST"),
		Port:         v.GetString("REDIS_PORT"),
		Password:     v.GetString("REDIS_PASSWORD"),
		DB:           v.GetInt("REDIS_DB"),
		MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
		DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
		ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
		WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
		MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
	}

	return &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: env,
			Version:     v.GetString("APP_VERSION"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			LogFormat:   v.GetString("LOG_FORMAT"),
			Debug:       boolOr(v, "APP_DEBUG", env == "development"),
		},
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetString("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			HandlerTimeout:  v.GetDuration("SERVER_HANDLER_TIMEOUT"),
			MaxHeaderBytes:  v.GetInt("SERVER_MAX_HEADER_BYTES"),
			GracefulTimeout: v.GetDuration("SERVER_GRACEFUL_TIMEOUT"),
		},
		Security: SecurityConfig{
			RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
			RateLimitDuration: v.GetDuration("RATE_LIMIT_DURATION"),
			AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
			SecureHeaders:     boolOr(v, "SECURE_HEADERS", env == "production"),
		},
		Redis: redis,
		Asynq: AsynqConfig{
			RedisAddr:       redis.Addr(),
			RedisPassword:   redis.Password,
			RedisDB:         v.GetInt("ASYNQ_REDIS_DB"),
			Concurrency:     v.GetInt("ASYNQ_CONCURRENCY"),
			Queues:          parseQueues(v.GetString("ASYNQ_QUEUES")),
			StrictPriority:  v.GetBool("ASYNQ_STRICT_PRIORITY"),
			ShutdownTimeout: v.GetDuration("ASYNQ_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("DB_HOST"),
			Port:               v.GetString("DB_PORT"),
			User:               v.GetString("DB_USER"),
			Password:           v.GetString("DB_PASSWORD"),
			Name:               v.GetString("DB_NAME"),
			SSLMode:            v.GetString("DB_SSL_MODE"),
			MaxConnections:     v.GetInt32("DB_MAX_CONNECTIONS"),
			MinConnections:     v.GetInt32("DB_MIN_CONNECTIONS"),
			MaxConnLifetime:    v.GetDuration("DB_CONNECTION_LIFETIME"),
			MaxConnIdleTime:    v.GetDuration("DB_IDLE_TIME"),
			HealthCheckPeriod:  v.GetDuration("DB_HEALTH_CHECK_PERIOD"),
			ConnectTimeout:     v.GetDuration("DB_CONNECT_TIMEOUT"),
			EnableQueryLogging: boolOr(v, "DB_QUERY_LOGGING", env == "development"),
		},
		AWS: AWSConfig{
			Region:          v.GetString("AWS_REGION"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			S3Bucket:        v.GetString("AWS_S3_BUCKET"),
			S3Prefix:        v.GetString("AWS_S3_PREFIX"),
			S3Endpoint:      v.GetString("AWS_S3_ENDPOINT"),
			UsePathStyle:    boolOr(v, "AWS_S3_PATH_STYLE", v.GetString("AWS_S3_ENDPOINT") != ""),
			SecretName:      v.GetString("AWS_SECRET_NAME"),
		},
		Gateway: GatewayConfig{
			Version:              v.GetString("GATEWAY_VERSION"),
			StaticPrefix:         v.GetString("GATEWAY_STATIC_PREFIX"),
			DynamicPrefix:        v.GetString("GATEWAY_DYNAMIC_PREFIX"),
			UpstreamURL:          v.GetString("GATEWAY_UPSTREAM_URL"),
			Precache:             splitList(v.GetString("GATEWAY_PRECACHE")),
			APIMarker:            v.GetString("GATEWAY_API_MARKER"),
			CacheBackend:         strings.ToLower(v.GetString("GATEWAY_CACHE_BACKEND")),
			SweepInterval:        v.GetString("GATEWAY_SWEEP_INTERVAL"),
			SkipWaitingOnInstall: v.GetBool("GATEWAY_SKIP_WAITING_ON_INSTALL"),
		},
		Cart: CartConfig{
			Mode:       strings.ToLower(v.GetString("CART_MODE")),
			Storage:    strings.ToLower(v.GetString("CART_STORAGE")),
			StorageKey: v.GetString("CART_STORAGE_KEY"),
			QuotaBytes: v.GetInt64("CART_STORAGE_QUOTA_BYTES"),
			FilePath:   v.GetString("CART_FILE_PATH"),
		},
		ListCache: ListCacheConfig{
			DedupInterval:         v.GetDuration("LIST_DEDUP_INTERVAL"),
			RetryCount:            v.GetInt("LIST_RETRY_COUNT"),
			RetryInterval:         v.GetDuration("LIST_RETRY_INTERVAL"),
			RevalidateOnReconnect: v.GetBool("LIST_REVALIDATE_ON_RECONNECT"),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
			Timeout: v.GetDuration("API_TIMEOUT"),
			Token:   v.GetString("API_TOKEN"),
		},
	}
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("%w: server port", ErrMissingRequiredConfig)
	}
	if c.Security.RateLimitRequests <= 0 {
		return fmt.Errorf("%w: rate limit requests must be positive", ErrInvalidConfig)
	}

	if err := c.Gateway.validate(); err != nil {
		return err
	}
	if err := c.Cart.validate(); err != nil {
		return err
	}

	switch c.Gateway.CacheBackend {
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("%w: database host and name for the postgres backend", ErrMissingRequiredConfig)
		}
		if c.Database.MaxConnections < c.Database.MinConnections {
			return fmt.Errorf("%w: max connections must be >= min connections", ErrInvalidConfig)
		}
	case "s3":
		if c.AWS.S3Bucket == "" {
			return fmt.Errorf("%w: S3 bucket for the s3 backend", ErrMissingRequiredConfig)
		}
	}

	if c.ListCache.RetryCount < 0 {
		return fmt.Errorf("%w: list retry count cannot be negative", ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("%w: API base URL: %v", ErrInvalidConfig, err)
	}

	if c.IsProduction() {
		return (&ProductionValidator{}).Validate(c)
	}
	return nil
}

func (g GatewayConfig) validate() error {
	if g.Version == "" {
		return fmt.Errorf("%w: gateway version", ErrMissingRequiredConfig)
	}
	if g.StaticPrefix == "" || g.DynamicPrefix == "" {
		return fmt.Errorf("%w: gateway bucket prefixes", ErrMissingRequiredConfig)
	}
	if g.StaticPrefix == g.DynamicPrefix {
		return fmt.Errorf("%w: static and dynamic prefixes must differ", ErrInvalidConfig)
	}
	u, err := url.Parse(g.UpstreamURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: gateway upstream URL %q", ErrInvalidConfig, g.UpstreamURL)
	}
	for _, p := range g.Precache {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: precache path %q must start with /", ErrInvalidConfig, p)
		}
	}
	switch g.CacheBackend {
	case "redis", "postgres", "s3", "memory":
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, g.CacheBackend)
	}
	return nil
}

func (c CartConfig) validate() error {
	switch c.Mode {
	case "server", "local":
	default:
		return fmt.Errorf("%w: unknown cart mode %q", ErrInvalidConfig, c.Mode)
	}
	switch c.Storage {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("%w: unknown cart storage %q", ErrInvalidConfig, c.Storage)
	}
	if c.StorageKey == "" {
		return fmt.Errorf("%w: cart storage key", ErrMissingRequiredConfig)
	}
	if c.QuotaBytes <= 0 {
		return fmt.Errorf("%w: cart storage quota must be positive", ErrInvalidConfig)
	}
	return nil
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

func boolOr(v *viper.Viper, key string, fallback bool) bool {
	if !v.IsSet(key) || v.GetString(key) == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v.GetString(key))
	if err != nil {
		return fallback
	}
	return b
}

// splitList splits a comma separated setting, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	for _, pair := range strings.Split(queuesStr, ",") {
		name, prio, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		priority, err := strconv.Atoi(strings.TrimSpace(prio))
		if err == nil {
			queues[strings.TrimSpace(name)] = priority
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
