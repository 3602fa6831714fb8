// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// StoreConfig selects the persistence backend.
type StoreConfig interface {
	GetStoreBackend() string
}

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq-backed scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// CacheConfig provides settings for the disposable query cache.
type CacheConfig interface {
	GetCacheRedisURL() string
	GetCacheTTL() time.Duration
	GetRosterRefreshInterval() time.Duration
}

// APIClientConfig provides settings for talking to a remote backing service.
type APIClientConfig interface {
	GetAPIBaseURL() string
	GetAPIToken() string
	GetAPITimeout() time.Duration
	GetAPIRetryBaseDelay() time.Duration
	GetAPIMaxRetries() int
}

// AutosaveConfig provides the checklist draft flush interval.
type AutosaveConfig interface {
	GetAutosaveInterval() time.Duration
}

// QueueConfig provides queue follow-up settings.
type QueueConfig interface {
	GetQueueOverdueGrace() time.Duration
	GetQueueOverdueSweepInterval() time.Duration
}

// TelemetryConfig provides OpenTelemetry exporter settings.
type TelemetryConfig interface {
	GetOTLPEndpoint() string
	GetOTLPInsecure() bool
	GetServiceName() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	ServiceName           string
	StoreBackend          string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	CacheRedisURL         string
	CacheTTL              time.Duration
	RosterRefreshInterval time.Duration
	APIBaseURL            string
	APIToken              string
	APITimeout            time.Duration
	APIRetryBaseDelay     time.Duration
	APIMaxRetries         int
	AutosaveInterval      time.Duration
	QueueOverdueGrace     time.Duration
	QueueSweepInterval    time.Duration
	OTLPEndpoint          string
	OTLPInsecure          bool
	SeedFile              string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// StoreConfig implementation
func (c *Config) GetStoreBackend() string { return c.StoreBackend }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// CacheConfig implementation
func (c *Config) GetCacheRedisURL() string                 { return c.CacheRedisURL }
func (c *Config) GetCacheTTL() time.Duration               { return c.CacheTTL }
func (c *Config) GetRosterRefreshInterval() time.Duration { return c.RosterRefreshInterval }

// APIClientConfig implementation
func (c *Config) GetAPIBaseURL() string               { return c.APIBaseURL }
func (c *Config) GetAPIToken() string                 { return c.APIToken }
func (c *Config) GetAPITimeout() time.Duration        { return c.APITimeout }
func (c *Config) GetAPIRetryBaseDelay() time.Duration { return c.APIRetryBaseDelay }
func (c *Config) GetAPIMaxRetries() int               { return c.APIMaxRetries }

// AutosaveConfig implementation
func (c *Config) GetAutosaveInterval() time.Duration { return c.AutosaveInterval }

// QueueConfig implementation
func (c *Config) GetQueueOverdueGrace() time.Duration         { return c.QueueOverdueGrace }
func (c *Config) GetQueueOverdueSweepInterval() time.Duration { return c.QueueSweepInterval }

// TelemetryConfig implementation
func (c *Config) GetOTLPEndpoint() string { return c.OTLPEndpoint }
func (c *Config) GetOTLPInsecure() bool   { return c.OTLPInsecure }
func (c *Config) GetServiceName() string  { return c.ServiceName }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		ServiceName:           getEnv("SERVICE_NAME", "workshop-api"),
		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", StorePostgres)),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "workshop"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		CacheRedisURL:         getEnv("CACHE_REDIS_URL", ""),
		CacheTTL:              mustDuration(getEnv("CACHE_TTL", "5m")),
		RosterRefreshInterval: mustDuration(getEnv("ROSTER_REFRESH_INTERVAL", "1m")),
		APIBaseURL:            getEnv("API_BASE_URL", ""),
		APIToken:              getEnv("API_TOKEN", ""),
		APITimeout:            mustDuration(getEnv("API_TIMEOUT", "15s")),
		APIRetryBaseDelay:     mustDuration(getEnv("API_RETRY_BASE_DELAY", "1s")),
		APIMaxRetries:         mustInt(getEnv("API_MAX_RETRIES", "3")),
		AutosaveInterval:      mustDuration(getEnv("AUTOSAVE_INTERVAL", "30s")),
		QueueOverdueGrace:     mustDuration(getEnv("QUEUE_OVERDUE_GRACE", "15m")),
		QueueSweepInterval:    mustDuration(getEnv("QUEUE_OVERDUE_SWEEP_INTERVAL", "5m")),
		OTLPEndpoint:          getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:          strings.EqualFold(getEnv("OTEL_EXPORTER_OTLP_INSECURE", "false"), "true"),
		SeedFile:              getEnv("SEED_FILE", ""),
	}

	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.StoreBackend != StorePostgres && cfg.StoreBackend != StoreMemory {
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q", StorePostgres, StoreMemory)
	}
	if cfg.AutosaveInterval <= 0 {
		return nil, fmt.Errorf("AUTOSAVE_INTERVAL must be a positive duration")
	}

	return cfg, nil
}

// LoadServer reads configuration and enforces what the API server needs.
func LoadServer() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.StoreBackend == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
