// Package config loads service configuration from environment variables.
// A local .env file is honored in development; real environment always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	// HTTP
	AppPort string
	AppEnv  string // development, production

	// Logging
	LogLevel string

	// Meta-database (tenant registry)
	MetaDatabaseURL string

	// Tenant databases
	TenantDBUser        string
	TenantDBPassword    string
	TenantMaxPools      int
	TenantMaxConns      int
	TenantPoolIdleTime  time.Duration
	PrewarmPools        bool
	PostgresAdminURL    string // admin connection for provisioning tenant databases
	MigrateOnPoolCreate bool

	// Auth
	JWTSecret      string
	AccessTokenTTL time.Duration

	// Query cache
	ProductsCacheTTL  time.Duration
	MovementsCacheTTL time.Duration
}

// Load reads configuration from environment, loading .env first if present.
func Load() (*Config, error) {
	// Ignore missing .env; environment variables take precedence anyway.
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:             getEnv("APP_PORT", "8080"),
		AppEnv:              getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		MetaDatabaseURL:     os.Getenv("META_DATABASE_URL"),
		TenantDBUser:        os.Getenv("TENANT_DB_USER"),
		TenantDBPassword:    os.Getenv("TENANT_DB_PASSWORD"),
		TenantMaxPools:      getEnvInt("TENANT_MAX_POOLS", 100),
		TenantMaxConns:      getEnvInt("TENANT_MAX_CONNS_PER_POOL", 10),
		TenantPoolIdleTime:  getEnvDuration("TENANT_POOL_IDLE_TIMEOUT", 30*time.Minute),
		PrewarmPools:        getEnvBool("PREWARM_POOLS", false),
		PostgresAdminURL:    os.Getenv("POSTGRES_ADMIN_URL"),
		MigrateOnPoolCreate: getEnvBool("MIGRATE_ON_POOL_CREATE", false),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		AccessTokenTTL:      getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		ProductsCacheTTL:    getEnvDuration("PRODUCTS_CACHE_TTL", 30*time.Second),
		MovementsCacheTTL:   getEnvDuration("MOVEMENTS_CACHE_TTL", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.MetaDatabaseURL == "" {
		return fmt.Errorf("META_DATABASE_URL is required")
	}
	if c.TenantDBUser == "" {
		return fmt.Errorf("TENANT_DB_USER is required")
	}
	if c.TenantDBPassword == "" {
		return fmt.Errorf("TENANT_DB_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		if c.AppEnv == "production" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.JWTSecret = "dev-secret-do-not-use-in-production"
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
