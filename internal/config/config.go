package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	PublicBaseURL  string        // base for minted share links (ex: https://faves.domain.ext)
	ImportFile     string        // path to the seed import yaml (optional, empty = importer disabled)
	ReloadInterval time.Duration // interval to re-read the import file (default: 24h)
	GCInterval     time.Duration // interval to run garbage collection (default: 24h)
	GCThreshold    time.Duration // idle duration before a record is reaped (default: 8760h)

	DevMode bool // true => in-memory record store, no Redis required

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Rate limiting for the widget endpoints
	RateLimitBurst  int // bucket capacity per IP
	RateLimitPerMin int // refill per IP per minute

	AllowedOrigins []string // CORS origins for the widget endpoints
	AllowedCIDRS   []string // optional, restrict ops endpoints to specific IPs
	TrustProxy     bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("PF_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("PF_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("PF_LOG_LEVEL", "info"),
		PrettyLog: mustBool("PF_PRETTY_LOG", true),

		// Service behavior
		PublicBaseURL:  requireEnv("PF_PUBLIC_BASE_URL"),
		ImportFile:     getenv("PF_IMPORT_FILE", ""), // Optional, empty = importer disabled
		ReloadInterval: mustDuration("PF_RELOAD_INTERVAL", 24*time.Hour),
		GCInterval:     mustDuration("PF_GC_INTERVAL", 24*time.Hour),
		GCThreshold:    mustDuration("PF_GC_THRESHOLD", 365*24*time.Hour),

		DevMode: mustBool("PF_DEV_MODE", false),

		// Rate limiting
		RateLimitBurst:  getenvInt("PF_RATE_LIMIT_BURST", 60),
		RateLimitPerMin: getenvInt("PF_RATE_LIMIT_PER_MIN", 120),

		// Access restrictions
		AllowedOrigins: parseList(getenv("PF_ALLOWED_ORIGINS", "")),
		AllowedCIDRS:   parseList(getenv("PF_ALLOWED_CIDRS", "")),
		TrustProxy:     mustBool("PF_TRUST_PROXY", true),
	}

	// Redis settings; dev mode runs entirely in memory.
	if !cfg.DevMode {
		cfg.RedisAddr = requireEnv("PF_REDIS_ADDR")
		cfg.RedisUser = getenv("PF_REDIS_USERNAME", "default")
		cfg.RedisPasswordRequired = mustBool("PF_REDIS_PASSWORD_REQUIRED", true)
		cfg.RedisPassword = getenv("PF_REDIS_PASSWORD", "")
		cfg.RedisDB = getenvInt("PF_REDIS_DB", 0)
		cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
		cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
		cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
		cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
		cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
		cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
		cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
		cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
		cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)

		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("FATAL: PF_REDIS_PASSWORD is required when PF_REDIS_PASSWORD_REQUIRED=true")
		}
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
