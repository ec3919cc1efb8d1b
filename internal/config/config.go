package config

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Cache and session backends.
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
)

// Config holds all configuration for the easyviews application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseDriver string `json:"database_driver"`
	DatabaseURL    string `json:"database_url"`
	RedisAddr      string `json:"redis_addr,omitempty"`
	MemcachedAddr  string `json:"memcached_addr,omitempty"`
	HTTPAddr       string `json:"http_addr"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout     time.Duration `json:"-"`
	HTTPShutdownTimeoutStr  string        `json:"http_shutdown_timeout"`
	ObserverDrainTimeout    time.Duration `json:"-"`
	ObserverDrainTimeoutStr string        `json:"observer_drain_timeout"`

	EventBusBufferSize int `json:"eventbus_buffer_size"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    int    `json:"metrics_port"`

	// CacheEnabled caches every count; Remember() enables it per query.
	CacheEnabled         bool          `json:"cache_enabled"`
	CacheBackend         string        `json:"cache_backend"`
	CacheLifetime        time.Duration `json:"-"`
	CacheLifetimeMinutes int           `json:"cache_lifetime_minutes"`
	CacheKeyPrefix       string        `json:"cache_key_prefix"`
	CacheMaxEntries      int           `json:"cache_max_entries"`

	SessionBackend     string        `json:"session_backend"`
	SessionKey         string        `json:"session_key"`
	SessionLifetime    time.Duration `json:"-"`
	SessionLifetimeStr string        `json:"session_lifetime"`

	IgnoreBots         bool     `json:"ignore_bots"`
	HonorDoNotTrack    bool     `json:"honor_dnt"`
	IgnoredIPAddresses []string `json:"ignored_ip_addresses,omitempty"`

	// VisitorCookie is read, never set.
	VisitorCookie      string `json:"visitor_cookie"`
	TrustXForwardedFor bool   `json:"trust_x_forwarded_for"`

	// APIJWTKey guards the destructive endpoints. Empty disables them.
	APIJWTKey string `json:"api_jwt_key,omitempty"`

	RecordRatePerSecond float64 `json:"record_rate_per_second"`
	RecordBurst         int     `json:"record_burst"`

	// Retention: empty disables pruning.
	Retention     time.Duration `json:"-"`
	RetentionStr  string        `json:"retention,omitempty"`
	PruneSchedule string        `json:"prune_schedule"`
	PruneTimezone string        `json:"prune_timezone"`

	TickInterval    time.Duration `json:"-"`
	TickIntervalStr string        `json:"tick_interval"`

	// LeaderLockKey: all pruner instances sharing the same database must use the same key.
	LeaderLockKey int64 `json:"leader_lock_key"`

	// LeaderRetryInterval determines the maximum failover gap.
	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`

	// LeaderHeartbeatInterval: pings the dedicated connection to detect local
	// connection death. Does NOT renew the advisory lock.
	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseDriver:             os.Getenv("DATABASE_DRIVER"),
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		MemcachedAddr:              os.Getenv("MEMCACHED_ADDR"),
		HTTPAddr:                   os.Getenv("HTTP_ADDR"),
		DBOpTimeoutStr:             os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:       os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:       os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr:     os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		ObserverDrainTimeoutStr:    os.Getenv("OBSERVER_DRAIN_TIMEOUT"),
		MetricsEnabled:             os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:                os.Getenv("METRICS_PATH"),
		CacheEnabled:               os.Getenv("CACHE_ENABLED") == "true",
		CacheBackend:               os.Getenv("CACHE_BACKEND"),
		CacheKeyPrefix:             os.Getenv("CACHE_KEY_PREFIX"),
		SessionBackend:             os.Getenv("SESSION_BACKEND"),
		SessionKey:                 os.Getenv("SESSION_KEY"),
		SessionLifetimeStr:         os.Getenv("SESSION_LIFETIME"),
		IgnoreBots:                 os.Getenv("IGNORE_BOTS") != "false",
		HonorDoNotTrack:            os.Getenv("HONOR_DNT") == "true",
		IgnoredIPAddresses:         splitList(os.Getenv("IGNORED_IP_ADDRESSES")),
		VisitorCookie:              os.Getenv("VISITOR_COOKIE"),
		TrustXForwardedFor:         os.Getenv("TRUST_X_FORWARDED_FOR") == "true",
		APIJWTKey:                  os.Getenv("API_JWT_KEY"),
		RetentionStr:               os.Getenv("RETENTION"),
		PruneSchedule:              os.Getenv("PRUNE_SCHEDULE"),
		PruneTimezone:              os.Getenv("PRUNE_TIMEZONE"),
		TickIntervalStr:            os.Getenv("TICK_INTERVAL"),
		LeaderRetryIntervalStr:     os.Getenv("LEADER_RETRY_INTERVAL"),
		LeaderHeartbeatIntervalStr: os.Getenv("LEADER_HEARTBEAT_INTERVAL"),
	}

	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DriverPostgres
	}
	if cfg.DatabaseURL == "" && cfg.DatabaseDriver == DriverSQLite {
		cfg.DatabaseURL = "easyviews.db"
	}

	if bufStr := os.Getenv("EVENTBUS_BUFFER_SIZE"); bufStr != "" {
		if n, err := parseInt(bufStr); err == nil && n > 0 {
			cfg.EventBusBufferSize = n
		} else {
			log.Printf("config: invalid EVENTBUS_BUFFER_SIZE %q (must be a positive integer), using default 100", bufStr)
		}
	}
	if cfg.EventBusBufferSize == 0 {
		cfg.EventBusBufferSize = 100
	}

	if portStr := os.Getenv("METRICS_PORT"); portStr != "" {
		if n, err := parseInt(portStr); err == nil && n > 0 && n < 65536 {
			cfg.MetricsPort = n
		} else {
			log.Printf("config: invalid METRICS_PORT %q, using default 9090", portStr)
		}
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}

	if lifetimeStr := os.Getenv("CACHE_LIFETIME_MINUTES"); lifetimeStr != "" {
		if n, err := parseInt(lifetimeStr); err == nil && n > 0 {
			cfg.CacheLifetimeMinutes = n
		} else {
			log.Printf("config: invalid CACHE_LIFETIME_MINUTES %q (must be a positive integer), using default 60", lifetimeStr)
		}
	}
	if cfg.CacheLifetimeMinutes == 0 {
		cfg.CacheLifetimeMinutes = 60
	}
	cfg.CacheLifetime = time.Duration(cfg.CacheLifetimeMinutes) * time.Minute

	if maxStr := os.Getenv("CACHE_MAX_ENTRIES"); maxStr != "" {
		if n, err := parseInt(maxStr); err == nil && n > 0 {
			cfg.CacheMaxEntries = n
		} else {
			log.Printf("config: invalid CACHE_MAX_ENTRIES %q (must be a positive integer), using default 100000", maxStr)
		}
	}
	if cfg.CacheMaxEntries == 0 {
		cfg.CacheMaxEntries = 100_000
	}

	if rateStr := os.Getenv("RECORD_RATE_PER_SECOND"); rateStr != "" {
		if n, err := parseInt(rateStr); err == nil && n > 0 {
			cfg.RecordRatePerSecond = float64(n)
		} else {
			log.Printf("config: invalid RECORD_RATE_PER_SECOND %q (must be a positive integer), using default 10", rateStr)
		}
	}
	if cfg.RecordRatePerSecond == 0 {
		cfg.RecordRatePerSecond = 10
	}

	if burstStr := os.Getenv("RECORD_BURST"); burstStr != "" {
		if n, err := parseInt(burstStr); err == nil && n > 0 {
			cfg.RecordBurst = n
		} else {
			log.Printf("config: invalid RECORD_BURST %q (must be a positive integer), using default 20", burstStr)
		}
	}
	if cfg.RecordBurst == 0 {
		cfg.RecordBurst = 20
	}

	if lockKeyStr := os.Getenv("LEADER_LOCK_KEY"); lockKeyStr != "" {
		if n, err := parseInt(lockKeyStr); err == nil && n > 0 {
			cfg.LeaderLockKey = int64(n)
		} else {
			log.Printf("config: invalid LEADER_LOCK_KEY %q (must be a positive integer), using default 728380", lockKeyStr)
		}
	}
	if cfg.LeaderLockKey == 0 {
		cfg.LeaderLockKey = 728380
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.ObserverDrainTimeoutStr == "" {
		cfg.ObserverDrainTimeoutStr = "30s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = BackendMemory
	}
	if cfg.CacheKeyPrefix == "" {
		cfg.CacheKeyPrefix = "easyviews.cache"
	}
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = BackendMemory
	}
	if cfg.SessionKey == "" {
		cfg.SessionKey = "easyviews.session"
	}
	if cfg.SessionLifetimeStr == "" {
		cfg.SessionLifetimeStr = "2h"
	}
	if cfg.VisitorCookie == "" {
		cfg.VisitorCookie = "easyviews_visitor"
	}
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = "0 3 * * *"
	}
	if cfg.PruneTimezone == "" {
		cfg.PruneTimezone = "UTC"
	}
	if cfg.TickIntervalStr == "" {
		cfg.TickIntervalStr = "30s"
	}
	if cfg.LeaderRetryIntervalStr == "" {
		cfg.LeaderRetryIntervalStr = "5s"
	}
	if cfg.LeaderHeartbeatIntervalStr == "" {
		cfg.LeaderHeartbeatIntervalStr = "2s"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ObserverDrainTimeoutStr); err == nil {
		cfg.ObserverDrainTimeout = d
	}
	if d, err := time.ParseDuration(cfg.SessionLifetimeStr); err == nil {
		cfg.SessionLifetime = d
	}
	if cfg.RetentionStr != "" {
		if d, err := time.ParseDuration(cfg.RetentionStr); err == nil {
			cfg.Retention = d
		}
	}
	if d, err := time.ParseDuration(cfg.TickIntervalStr); err == nil {
		cfg.TickInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderRetryIntervalStr); err == nil {
		cfg.LeaderRetryInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderHeartbeatIntervalStr); err == nil {
		cfg.LeaderHeartbeatInterval = d
	}

	return cfg
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	if c.DatabaseDriver != DriverSQLite {
		masked.DatabaseURL = maskSecret(c.DatabaseURL)
	}
	masked.APIJWTKey = maskSecret(c.APIJWTKey)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}
