package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Common
	Environment string
	LogLevel    string

	// StoreBackend selects the alert store: "memory" or "postgres"
	StoreBackend string

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Components
	Pricing   PricingConfig
	Watcher   WatcherConfig
	WSGateway WSGatewayConfig
	API       APIConfig
}

// DatabaseConfig holds PostgreSQL configuration for the alert store
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration for the price cache
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// PricingConfig holds upstream price API configuration
type PricingConfig struct {
	BaseURL       string
	QuoteCurrency string
	FetchTimeout  time.Duration
	CacheTTL      time.Duration
	CacheBackend  string // "memory" or "redis"
}

// WatcherConfig holds the alert watcher loop configuration
type WatcherConfig struct {
	PollInterval time.Duration
	WatchAssets  []string
}

// WSGatewayConfig holds WebSocket gateway configuration
type WSGatewayConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxConnections int
	JWTSecret      string
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// Load loads configuration from environment variables
// It automatically loads .env file if it exists in the current directory
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		StoreBackend: getEnv("ALERT_STORE_BACKEND", "memory"),
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "coin_alerts"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Pricing: PricingConfig{
			BaseURL:       getEnv("PRICE_API_BASE_URL", "https://api.coingecko.com/api/v3"),
			QuoteCurrency: getEnv("PRICE_QUOTE_CURRENCY", "usd"),
			FetchTimeout:  getEnvAsDuration("PRICE_FETCH_TIMEOUT", 5*time.Second),
			CacheTTL:      time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 30)) * time.Second,
			CacheBackend:  getEnv("PRICE_CACHE_BACKEND", "memory"),
		},
		Watcher: WatcherConfig{
			PollInterval: time.Duration(getEnvAsInt("POLL_INTERVAL_MS", 10000)) * time.Millisecond,
			WatchAssets:  getEnvAsStringSlice("WATCH_ASSETS", []string{"bitcoin", "ethereum", "solana", "dogecoin"}),
		},
		WSGateway: WSGatewayConfig{
			ReadTimeout:    getEnvAsDuration("WS_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:   getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:   getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
			MaxConnections: getEnvAsInt("WS_MAX_CONNECTIONS", 1000),
			JWTSecret:      getEnv("WS_JWT_SECRET", ""),
		},
		API: APIConfig{
			Port:            getEnvAsInt("API_PORT", 4000),
			ShutdownTimeout: getEnvAsDuration("API_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Pricing.BaseURL == "" {
		return fmt.Errorf("PRICE_API_BASE_URL is required")
	}
	if c.Watcher.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if c.Pricing.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}
	// The fetch must give up before the next cycle is due
	if c.Pricing.FetchTimeout >= c.Watcher.PollInterval {
		return fmt.Errorf("PRICE_FETCH_TIMEOUT must be shorter than POLL_INTERVAL_MS")
	}
	if c.Pricing.CacheBackend != "memory" && c.Pricing.CacheBackend != "redis" {
		return fmt.Errorf("PRICE_CACHE_BACKEND must be \"memory\" or \"redis\"")
	}
	if c.StoreBackend != "memory" && c.StoreBackend != "postgres" {
		return fmt.Errorf("ALERT_STORE_BACKEND must be \"memory\" or \"postgres\"")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Split by comma and trim spaces
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
