package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-views/internal/cache"
	"github.com/djlord-it/easy-views/internal/config"
	"github.com/djlord-it/easy-views/internal/cooldown"
	"github.com/djlord-it/easy-views/internal/guard"
	"github.com/djlord-it/easy-views/internal/metrics"
	"github.com/djlord-it/easy-views/internal/store/postgres"
	"github.com/djlord-it/easy-views/internal/store/sqlite"
	"github.com/djlord-it/easy-views/internal/views"

	_ "github.com/lib/pq"
)

// backend is the opened record store and the *sql.DB behind it.
type backend struct {
	db    *sql.DB
	store views.Store
	close func() error
}

func openBackend(cfg config.Config) (*backend, error) {
	if cfg.DatabaseDriver == config.DriverSQLite {
		s, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Printf("easyviews: sqlite store opened (path=%s)", cfg.DatabaseURL)
		return &backend{db: s.DB(), store: s, close: s.Close}, nil
	}

	db, err := openPostgres(cfg)
	if err != nil {
		return nil, err
	}
	return &backend{db: db, store: postgres.New(db, cfg.DBOpTimeout), close: db.Close}, nil
}

// openPostgres opens the pool and verifies connectivity.
func openPostgres(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("easyviews: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// engineDeps holds the engine and the network clients it owns.
type engineDeps struct {
	engine *views.Engine
	redis  *redis.Client // nil unless a backend uses redis
}

func (d *engineDeps) Close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Printf("easyviews: redis close error: %v", err)
		}
	}
}

// buildEngine wires the count cache and session backends. Remote caches sit
// behind a circuit breaker. sink may be nil.
func buildEngine(cfg config.Config, store views.Store, sink *metrics.PrometheusSink) (*engineDeps, error) {
	deps := &engineDeps{}
	if cfg.CacheBackend == config.BackendRedis || cfg.SessionBackend == config.BackendRedis {
		deps.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Printf("easyviews: redis configured (addr=%s)", cfg.RedisAddr)
	}

	var countCache cache.CountCache
	switch cfg.CacheBackend {
	case config.BackendRedis:
		countCache = cache.NewBreaker(cache.NewRedis(deps.redis), cache.DefaultBreakerThreshold, cache.DefaultBreakerCooldown)
	case config.BackendMemcached:
		mc := memcache.New(strings.Split(cfg.MemcachedAddr, ",")...)
		countCache = cache.NewBreaker(cache.NewMemcached(mc), cache.DefaultBreakerThreshold, cache.DefaultBreakerCooldown)
		log.Printf("easyviews: memcached configured (addr=%s)", cfg.MemcachedAddr)
	default:
		countCache = cache.NewMemory(cfg.CacheMaxEntries)
	}

	var sessions cooldown.Sessions
	switch cfg.SessionBackend {
	case config.BackendRedis:
		sessions = cooldown.NewRedisSessions(deps.redis, cfg.SessionKey, cfg.SessionLifetime)
	default:
		sessions = cooldown.NewMemorySessions(cooldown.DefaultMaxSessions, cfg.SessionLifetime)
	}

	engine, err := views.New(views.Config{
		CacheEnabled:   cfg.CacheEnabled,
		CacheLifetime:  cfg.CacheLifetime,
		CacheKeyPrefix: cfg.CacheKeyPrefix,
		SessionKey:     cfg.SessionKey,
		Guards: guard.Config{
			IgnoreBots:      cfg.IgnoreBots,
			HonorDoNotTrack: cfg.HonorDoNotTrack,
			IgnoredIPs:      cfg.IgnoredIPAddresses,
		},
	}, store, countCache, sessions)
	if err != nil {
		deps.Close()
		return nil, err
	}
	if sink != nil {
		engine = engine.WithMetrics(sink)
	}
	deps.engine = engine

	log.Printf("easyviews: engine configured (cache=%s enabled=%t lifetime=%s, sessions=%s)",
		cfg.CacheBackend, cfg.CacheEnabled, cfg.CacheLifetime, cfg.SessionBackend)
	return deps, nil
}
