// Package config provides configuration management for the threat cache
// service. It loads configuration from environment variables with sensible
// defaults and validates it so the service starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Admin server port (default: 8090)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path, "-" for stdout only (default: threat-cache.log)
//   - TLS_CERT_FILE, TLS_KEY_FILE: Serve HTTPS when both are set
//   - METRICS_ENABLED: Serve Prometheus metrics on /metrics (default: true)
//
// Redis Configuration (shared tier):
//   - REDIS_ENABLED: Use Redis as the shared tier (default: true)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - REDIS_KEY_PREFIX: Prefix for every shared tier key (default: threat-cache:)
//   - REDIS_CONNECT_TIMEOUT: Dial timeout (default: 5s)
//   - REDIS_OP_TIMEOUT: Per-operation timeout (default: 500ms)
//
// Cache Configuration:
//   - CACHE_MEMORY_TTL: Default local tier TTL (default: 5m)
//   - CACHE_SHARED_TTL: Default shared tier TTL (default: 1h)
//   - CACHE_EDGE_TTL: Default edge tier TTL (default: 24h)
//   - CACHE_MAX_ENTRIES: Local tier capacity, 0 for unbounded (default: 10000)
//   - CACHE_CLEANUP_SCHEDULE: Cron spec of the expiry sweep, "off" to disable (default: @every 1m)
//   - CACHE_WARMUP_CONCURRENCY: Parallel warm-up fetches (default: 8)
//   - CACHE_WARMUP_FILE: JSON seed file loaded at startup (optional)
//
// Rate Limiting (admin API, per client IP):
//   - RATE_LIMIT_ENABLED: Enable rate limiting (default: true)
//   - RATE_LIMIT_RPS: Requests per second (default: 20)
//   - RATE_LIMIT_BURST: Burst size (default: 40)
//   - RATE_LIMIT_TRUSTED_PROXIES: Comma-separated proxy IPs or CIDRs whose X-Forwarded-For is honored (optional)
//
// Security Configuration:
//   - ADMIN_JWT_SECRET: Secret for admin bearer tokens (optional, minimum 32
//     characters). Mutating admin endpoints are open when unset.
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
//	manager := cache.NewManager(cfg.CacheConfig(), nil, shared, nil, logger)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"threat-cache/internal/cache"
	"threat-cache/internal/common/utils"
	"threat-cache/internal/ratelimit"
	"threat-cache/internal/redis"
)

// Config holds all configuration values for the service. Numeric and
// duration settings are kept as the raw environment strings until Validate
// has accepted them; the typed views are CacheConfig and RedisConfig.
type Config struct {
	// Application settings
	Port     string // Admin server port number
	LogLevel string // Logging level (debug, info, warn, error)
	LogFile  string // Log file path

	TLSCertFile string // TLS certificate path (optional)
	TLSKeyFile  string // TLS key path (optional)

	MetricsEnabled bool // Serve /metrics

	// Redis configuration for the shared tier
	RedisEnabled        bool   // Whether the shared tier is used at all
	RedisAddress        string // Redis server address (host:port)
	RedisPassword       string // Redis authentication password
	RedisDB             string // Redis database number (0-15)
	RedisPoolSize       string // Redis connection pool size
	RedisKeyPrefix      string // Prefix applied to every shared tier key
	RedisConnectTimeout string // Dial timeout (e.g. "5s")
	RedisOpTimeout      string // Per-operation timeout (e.g. "500ms")

	// Cache configuration
	CacheMemoryTTL         string // Default local tier TTL
	CacheSharedTTL         string // Default shared tier TTL
	CacheEdgeTTL           string // Default edge tier TTL
	CacheMaxEntries        string // Local tier capacity, 0 for unbounded
	CacheCleanupSchedule   string // Cron spec for the expiry sweep
	CacheWarmUpConcurrency string // Parallel warm-up fetches
	CacheWarmUpFile        string // JSON seed file loaded at startup

	// Rate limiting configuration
	RateLimitEnabled bool   // Whether rate limiting is enabled
	RateLimitRPS     string // Requests per second per client
	RateLimitBurst   string // Burst size per client

	RateLimitTrustedProxies string // Proxy IPs or CIDRs allowed to report the client address

	// Admin authentication
	AdminJWTSecret string // Secret for admin bearer tokens (optional)
}

// Load creates a new Config with values from environment variables. Unset
// variables take their defaults. Load does not validate; call Validate.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8090"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "threat-cache.log"),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),

		RedisEnabled:        getBoolEnv("REDIS_ENABLED", true),
		RedisAddress:        getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnv("REDIS_DB", "0"),
		RedisPoolSize:       getEnv("REDIS_POOL_SIZE", "10"),
		RedisKeyPrefix:      getEnv("REDIS_KEY_PREFIX", "threat-cache:"),
		RedisConnectTimeout: getEnv("REDIS_CONNECT_TIMEOUT", "5s"),
		RedisOpTimeout:      getEnv("REDIS_OP_TIMEOUT", "500ms"),

		CacheMemoryTTL:         getEnv("CACHE_MEMORY_TTL", "5m"),
		CacheSharedTTL:         getEnv("CACHE_SHARED_TTL", "1h"),
		CacheEdgeTTL:           getEnv("CACHE_EDGE_TTL", "24h"),
		CacheMaxEntries:        getEnv("CACHE_MAX_ENTRIES", "10000"),
		CacheCleanupSchedule:   getEnv("CACHE_CLEANUP_SCHEDULE", "@every 1m"),
		CacheWarmUpConcurrency: getEnv("CACHE_WARMUP_CONCURRENCY", "8"),
		CacheWarmUpFile:        getEnv("CACHE_WARMUP_FILE", ""),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:     getEnv("RATE_LIMIT_RPS", "20"),
		RateLimitBurst:   getEnv("RATE_LIMIT_BURST", "40"),

		RateLimitTrustedProxies: getEnv("RATE_LIMIT_TRUSTED_PROXIES", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
//
// This function accepts common boolean representations:
//   - "true", "1", "t", "TRUE", "True" -> true
//   - "false", "0", "f", "FALSE", "False" -> false
//   - Any other value or parsing error -> returns defaultValue
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks every field and returns a descriptive error for the first
// invalid one. The service should call it before using the typed views.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	if c.RedisEnabled {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when REDIS_ENABLED is true")
		}
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
		if err := positiveDuration("REDIS_CONNECT_TIMEOUT", c.RedisConnectTimeout); err != nil {
			return err
		}
		if err := positiveDuration("REDIS_OP_TIMEOUT", c.RedisOpTimeout); err != nil {
			return err
		}
	}

	for _, d := range []struct{ name, value string }{
		{"CACHE_MEMORY_TTL", c.CacheMemoryTTL},
		{"CACHE_SHARED_TTL", c.CacheSharedTTL},
		{"CACHE_EDGE_TTL", c.CacheEdgeTTL},
	} {
		if err := positiveDuration(d.name, d.value); err != nil {
			return err
		}
	}

	if n, err := strconv.Atoi(c.CacheMaxEntries); err != nil || n < 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be zero or a positive number")
	}
	if n, err := strconv.Atoi(c.CacheWarmUpConcurrency); err != nil || n < 1 {
		return fmt.Errorf("CACHE_WARMUP_CONCURRENCY must be a positive number")
	}
	if c.CleanupSchedule() != "" {
		if _, err := cron.ParseStandard(c.CacheCleanupSchedule); err != nil {
			return fmt.Errorf("CACHE_CLEANUP_SCHEDULE must be a valid cron spec (e.g. '@every 1m') or 'off': %v", err)
		}
	}

	if c.RateLimitEnabled {
		if rps, err := strconv.Atoi(c.RateLimitRPS); err != nil || rps < 1 {
			return fmt.Errorf("RATE_LIMIT_RPS must be a positive number")
		}
		if burst, err := strconv.Atoi(c.RateLimitBurst); err != nil || burst < 1 {
			return fmt.Errorf("RATE_LIMIT_BURST must be a positive number")
		}
		rl := c.RateLimitConfig()
		if err := rl.Validate(); err != nil {
			return fmt.Errorf("RATE_LIMIT_TRUSTED_PROXIES: %v", err)
		}
	}

	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < 32 {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least 32 characters long for security")
	}

	return nil
}

// CacheConfig returns the cache manager settings. Values that do not parse
// fall back to the cache package defaults.
func (c *Config) CacheConfig() cache.Config {
	def := cache.DefaultConfig()
	return cache.Config{
		MemoryTTL:         parseDuration(c.CacheMemoryTTL, def.MemoryTTL),
		SharedTTL:         parseDuration(c.CacheSharedTTL, def.SharedTTL),
		EdgeTTL:           parseDuration(c.CacheEdgeTTL, def.EdgeTTL),
		MaxEntries:        parseInt(c.CacheMaxEntries, def.MaxEntries),
		CleanupSchedule:   c.CleanupSchedule(),
		WarmUpConcurrency: parseInt(c.CacheWarmUpConcurrency, def.WarmUpConcurrency),
	}
}

// CleanupSchedule returns the janitor's cron spec, or "" when the sweep is
// turned off with "off", "none" or "-".
func (c *Config) CleanupSchedule() string {
	schedule := strings.TrimSpace(c.CacheCleanupSchedule)
	switch strings.ToLower(schedule) {
	case "off", "none", "-":
		return ""
	}
	return schedule
}

// RedisConfig returns the Redis client settings.
func (c *Config) RedisConfig() *redis.Config {
	return &redis.Config{
		Address:        c.RedisAddress,
		Password:       c.RedisPassword,
		DB:             parseInt(c.RedisDB, 0),
		PoolSize:       parseInt(c.RedisPoolSize, 10),
		ConnectTimeout: parseDuration(c.RedisConnectTimeout, 5*time.Second),
	}
}

// SharedTierOptions returns the shared tier settings.
func (c *Config) SharedTierOptions() cache.SharedTierOptions {
	return cache.SharedTierOptions{
		Prefix:    c.RedisKeyPrefix,
		OpTimeout: parseDuration(c.RedisOpTimeout, 500*time.Millisecond),
	}
}

// RateLimitConfig returns the admin API rate limiter settings.
func (c *Config) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Enabled:           c.RateLimitEnabled,
		RequestsPerSecond: parseInt(c.RateLimitRPS, 20),
		BurstSize:         parseInt(c.RateLimitBurst, 40),
		TrustedProxies:    splitList(c.RateLimitTrustedProxies),
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func positiveDuration(name, value string) error {
	d, err := utils.ParseDuration(value)
	if err != nil || d <= 0 {
		return fmt.Errorf("%s must be a valid positive duration (e.g. '500ms', '5m', '2d')", name)
	}
	return nil
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if d, err := utils.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}

func parseInt(value string, fallback int) int {
	if n, err := strconv.Atoi(value); err == nil && n >= 0 {
		return n
	}
	return fallback
}
