package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheMySQL  = "mysql"
)

// Config holds process settings, read from STOREFRONT_* environment variables.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051"`

	UsersURL         string        `env:"USERS_URL" envDefault:"https://jsonplaceholder.typicode.com/users"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	BreakerThreshold uint32        `env:"BREAKER_THRESHOLD" envDefault:"5"`
	BreakerTimeout   time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`

	CacheBackend string `env:"CACHE_BACKEND" envDefault:"memory"`
	RedisAddr    string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	MySQLDSN     string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/storefront?parseTime=true"`

	SecretDBPath     string `env:"SECRET_DB_PATH" envDefault:"storefront-secrets.db"`
	SecretKey        string `env:"SECRET_KEY"`
	PlaceholderToken string `env:"PLACEHOLDER_TOKEN" envDefault:"dummy-auth-token-12345"`

	CatalogSize   int           `env:"CATALOG_SIZE" envDefault:"5000"`
	CatalogSeed   uint64        `env:"CATALOG_SEED" envDefault:"42"`
	PageSize      int           `env:"CATALOG_PAGE_SIZE" envDefault:"20"`
	PageSettle    time.Duration `env:"CATALOG_PAGE_SETTLE" envDefault:"500ms"`
	WorkerCount   int           `env:"WORKER_COUNT" envDefault:"4"`
	QueueSize     int           `env:"QUEUE_SIZE" envDefault:"1000"`
	OTLPEndpoint  string        `env:"OTLP_ENDPOINT"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"5s"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STOREFRONT_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.CacheBackend {
	case CacheMemory, CacheRedis, CacheMySQL:
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.CacheBackend)
	}
	if c.UsersURL == "" {
		return fmt.Errorf("%w: users url is required", ErrInvalidConfig)
	}
	if c.CatalogSize < 0 {
		return fmt.Errorf("%w: catalog size must not be negative", ErrInvalidConfig)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("%w: page size must be positive", ErrInvalidConfig)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker count must be positive", ErrInvalidConfig)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: queue size must not be negative", ErrInvalidConfig)
	}
	return nil
}
