package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	DB          DatabaseConfig
	Redis       RedisConfig
	EsimAccess  EsimAccessConfig
	EsimGo      EsimGoConfig
	Fulfillment FulfillmentConfig
	Worker      WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// EsimAccessConfig contains credentials for the eSIM Access provider.
// The provider authenticates with an access-code/secret pair.
type EsimAccessConfig struct {
	BaseURL    string
	AccessCode string
	Secret     string
}

// EsimGoConfig contains credentials for the eSIM Go provider.
// The provider authenticates with a static API key.
type EsimGoConfig struct {
	BaseURL string
	APIKey  string
}

// FulfillmentConfig tunes the fulfillment retry/failover state machine.
type FulfillmentConfig struct {
	MaxAttempts     int
	FailoverEnabled bool
	CallTimeout     time.Duration
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	CatalogSyncInterval    time.Duration
	PricingRebuildInterval time.Duration
	BalanceCheckInterval   time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Providers. Missing credentials do not fail startup: the provider is
	// simply never registered, so it stays inert instead of crashing boot.
	cfg.EsimAccess = EsimAccessConfig{
		BaseURL:    getEnv("ESIMACCESS_BASE_URL", "https://api.esimaccess.com/api/v1"),
		AccessCode: getEnv("ESIMACCESS_ACCESS_CODE", ""),
		Secret:     getEnv("ESIMACCESS_SECRET", ""),
	}
	cfg.EsimGo = EsimGoConfig{
		BaseURL: getEnv("ESIMGO_BASE_URL", "https://api.esim-go.com/v2.4"),
		APIKey:  getEnv("ESIMGO_API_KEY", ""),
	}

	// Fulfillment
	cfg.Fulfillment = FulfillmentConfig{
		MaxAttempts:     getEnvInt("FULFILLMENT_MAX_ATTEMPTS", 3),
		FailoverEnabled: getEnvBool("FULFILLMENT_FAILOVER_ENABLED", true),
	}
	var err error
	if cfg.Fulfillment.CallTimeout, err = parseDurationEnv("FULFILLMENT_CALL_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid FULFILLMENT_CALL_TIMEOUT: %w", err)
	}

	// Workers (durations)
	if cfg.Worker.CatalogSyncInterval, err = parseDurationEnv("CATALOG_SYNC_INTERVAL", "6h"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_SYNC_INTERVAL: %w", err)
	}
	if cfg.Worker.PricingRebuildInterval, err = parseDurationEnv("PRICING_REBUILD_INTERVAL", "1h"); err != nil {
		return nil, fmt.Errorf("invalid PRICING_REBUILD_INTERVAL: %w", err)
	}
	if cfg.Worker.BalanceCheckInterval, err = parseDurationEnv("BALANCE_CHECK_INTERVAL", "30m"); err != nil {
		return nil, fmt.Errorf("invalid BALANCE_CHECK_INTERVAL: %w", err)
	}

	if cfg.Fulfillment.MaxAttempts < 1 {
		return nil, errors.New("FULFILLMENT_MAX_ATTEMPTS must be >= 1")
	}

	// Basic validation for DB parameters — keeps messages concise and helpful.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	// Validate JWT_SECRET
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvBool returns the value of an environment variable as a bool or a default if empty/invalid.
func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
