package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"storefront-service/internal/pricing"
)

// Cart storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
type Config struct {
	AppEnv          string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	CartBackend     string `envconfig:"CART_BACKEND" default:"memory"` // memory, postgres, redis
	CatalogFile     string `envconfig:"CATALOG_FILE"`                  // empty means the built-in catalog
	DisplayCurrency string `envconfig:"DISPLAY_CURRENCY" default:"GBP"`
	HttpServer      ServerConfig
	GrpcServer      GrpcServerConfig
	Session         SessionConfig
	Postgres        PostgresConfig
	Redis           RedisConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// SessionConfig controls the cart session cookie.
type SessionConfig struct {
	CookieName string        `envconfig:"SESSION_COOKIE_NAME" default:"cartId"`
	TTL        time.Duration `envconfig:"SESSION_TTL" default:"168h"`
}

// PostgresConfig holds PostgreSQL database connection details.
// Only required when CART_BACKEND=postgres.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// RedisConfig holds Redis connection details.
// Only required when CART_BACKEND=redis.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Currency returns the configured display currency.
func (c *Config) Currency() pricing.Currency {
	cur, err := pricing.ParseCurrency(c.DisplayCurrency)
	if err != nil {
		return pricing.DefaultCurrency
	}
	return cur
}

// Load reads a .env file from the working directory when one exists, then
// initializes the configuration from environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv initializes the configuration from environment variables only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	c.CartBackend = strings.ToLower(strings.TrimSpace(c.CartBackend))
	if c.CartBackend == "" {
		c.CartBackend = BackendMemory
	}
	if strings.TrimSpace(c.DisplayCurrency) == "" {
		c.DisplayCurrency = string(pricing.DefaultCurrency)
	}
	switch c.CartBackend {
	case BackendMemory:
	case BackendPostgres:
		var missing []string
		if c.Postgres.Host == "" {
			missing = append(missing, "POSTGRES_HOST")
		}
		if c.Postgres.User == "" {
			missing = append(missing, "POSTGRES_USER")
		}
		if c.Postgres.DBName == "" {
			missing = append(missing, "POSTGRES_DBNAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("config: CART_BACKEND=postgres requires %s", strings.Join(missing, ", "))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: CART_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("config: unknown CART_BACKEND %q (want memory, postgres or redis)", c.CartBackend)
	}

	if _, err := pricing.ParseCurrency(c.DisplayCurrency); err != nil {
		return fmt.Errorf("config: DISPLAY_CURRENCY: %w", err)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	return nil
}
