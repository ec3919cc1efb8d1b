package config

import (
	"fmt"
	"time"

	"github.com/djlord-it/easy-views/internal/cron"
	"github.com/djlord-it/easy-views/internal/guard"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	switch cfg.DatabaseDriver {
	case DriverPostgres:
		// DATABASE_URL is required for postgres; sqlite defaults to a local file.
		if cfg.DatabaseURL == "" {
			errs = append(errs, ValidationError{
				Field:   "DATABASE_URL",
				Message: "required",
			})
		}
	case DriverSQLite:
	default:
		errs = append(errs, ValidationError{
			Field:   "DATABASE_DRIVER",
			Message: fmt.Sprintf("must be 'postgres' or 'sqlite', got %q", cfg.DatabaseDriver),
		})
	}

	errs = checkPositiveDuration(errs, "TICK_INTERVAL", cfg.TickIntervalStr)
	errs = checkPositiveDuration(errs, "SESSION_LIFETIME", cfg.SessionLifetimeStr)
	errs = checkPositiveDuration(errs, "RETENTION", cfg.RetentionStr)

	switch cfg.CacheBackend {
	case "", BackendMemory:
	case BackendRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, ValidationError{
				Field:   "REDIS_ADDR",
				Message: "required when CACHE_BACKEND is 'redis'",
			})
		}
	case BackendMemcached:
		if cfg.MemcachedAddr == "" {
			errs = append(errs, ValidationError{
				Field:   "MEMCACHED_ADDR",
				Message: "required when CACHE_BACKEND is 'memcached'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "CACHE_BACKEND",
			Message: fmt.Sprintf("must be 'memory', 'redis' or 'memcached', got %q", cfg.CacheBackend),
		})
	}

	switch cfg.SessionBackend {
	case "", BackendMemory:
	case BackendRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, ValidationError{
				Field:   "REDIS_ADDR",
				Message: "required when SESSION_BACKEND is 'redis'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "SESSION_BACKEND",
			Message: fmt.Sprintf("must be 'memory' or 'redis', got %q", cfg.SessionBackend),
		})
	}

	if _, err := guard.NewIPBlocklist(cfg.IgnoredIPAddresses); err != nil {
		errs = append(errs, ValidationError{
			Field:   "IGNORED_IP_ADDRESSES",
			Message: err.Error(),
		})
	}

	// PRUNE_SCHEDULE only matters when retention is enabled.
	if cfg.RetentionStr != "" {
		if _, err := cron.NewParser().Parse(cfg.PruneSchedule, cfg.PruneTimezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "PRUNE_SCHEDULE",
				Message: err.Error(),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// checkPositiveDuration validates an optional duration setting.
func checkPositiveDuration(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}
	if d <= 0 {
		return append(errs, ValidationError{
			Field:   field,
			Message: "must be positive",
		})
	}
	return errs
}
