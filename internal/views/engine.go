// Package views counts and records subject views.
//
// An Engine holds the collaborators (record store, count cache, visitor
// sessions) and the configuration. Engine.For returns a Views value for one
// subject; its configuration methods return modified copies, so a base query
// can be shared and refined freely:
//
//	v := engine.For(post).Period(period.PastDays(7)).Unique()
//	n, err := v.Count(ctx)
package views

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-views/internal/cache"
	"github.com/djlord-it/easy-views/internal/cachekey"
	"github.com/djlord-it/easy-views/internal/cooldown"
	"github.com/djlord-it/easy-views/internal/domain"
	"github.com/djlord-it/easy-views/internal/guard"
)

// ErrNoSessions is returned when a cooldown is requested but the engine has
// no session store.
var ErrNoSessions = errors.New("views: cooldown requires a session store")

// ErrNoSubjectType is returned for subjects whose type slugs to "".
var ErrNoSubjectType = errors.New("views: subject has no type")

// Store persists view records.
type Store interface {
	InsertView(ctx context.Context, rec domain.ViewRecord) error
	CountViews(ctx context.Context, q domain.ViewQuery) (int, error)
	DeleteViews(ctx context.Context, q domain.ViewQuery) (int64, error)
	TopSubjects(ctx context.Context, q domain.ViewQuery, limit int) ([]domain.SubjectCount, error)
}

// MetricsSink defines the interface for recording engine metrics.
type MetricsSink interface {
	ViewRecorded(subjectType string)
	ViewRejected(reason string)
	CountCompleted(cacheResult string, duration time.Duration)
	ViewsDestroyed(count int64)
}

// Cache results reported to MetricsSink.CountCompleted.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheDisabled = "disabled"
)

// Config is the engine configuration. There are no package-level defaults;
// callers pass everything explicitly.
type Config struct {
	// CacheEnabled turns count caching on for every query.
	CacheEnabled bool
	// CacheLifetime is the TTL of cached counts.
	CacheLifetime time.Duration
	// CacheKeyPrefix is the first segment of every cache key.
	CacheKeyPrefix string
	// SessionKey is the base key of cooldown namespaces in visitor sessions.
	SessionKey string
	// Guards decides which visitors are never recorded.
	Guards guard.Config
}

// Engine records and aggregates views.
type Engine struct {
	cfg      Config
	store    Store
	cache    cache.CountCache  // optional, nil = counts are never cached
	sessions cooldown.Sessions // optional, nil = cooldowns unavailable
	guards   guard.Pipeline
	keys     cachekey.Builder
	clock    func() time.Time
	metrics  MetricsSink // optional, nil = disabled
}

// New creates an engine. The cache and sessions may be nil.
func New(cfg Config, store Store, countCache cache.CountCache, sessions cooldown.Sessions) (*Engine, error) {
	if store == nil {
		return nil, errors.New("views: store is required")
	}
	guards, err := guard.New(cfg.Guards)
	if err != nil {
		return nil, fmt.Errorf("views: %w", err)
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		cache:    countCache,
		sessions: sessions,
		guards:   guards,
		keys:     cachekey.New(cfg.CacheKeyPrefix),
		clock:    time.Now,
	}, nil
}

// WithMetrics attaches a metrics sink to the engine.
func (e *Engine) WithMetrics(sink MetricsSink) *Engine {
	e.metrics = sink
	return e
}

// WithClock replaces the time source, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// WithGuards replaces the guard pipeline built from Config.Guards.
func (e *Engine) WithGuards(p guard.Pipeline) *Engine {
	e.guards = p
	return e
}

// For starts a query for subject with the engine defaults.
func (e *Engine) For(subject domain.Subject) Views {
	return Views{
		engine:        e,
		subject:       subject,
		cacheEnabled:  e.cfg.CacheEnabled,
		cacheLifetime: e.cfg.CacheLifetime,
	}
}

// SubjectDeleted removes the views of a deleted subject. Subjects that
// implement domain.ViewRetainer and return true keep their views.
func (e *Engine) SubjectDeleted(ctx context.Context, subject domain.Subject) (int64, error) {
	if r, ok := subject.(domain.ViewRetainer); ok && r.RetainViewsOnDelete() {
		return 0, nil
	}
	return e.For(subject).Destroy(ctx)
}

func (e *Engine) countCompleted(result string, started time.Time) {
	if e.metrics != nil {
		e.metrics.CountCompleted(result, e.clock().Sub(started))
	}
}

// newRecord builds the record stored for one accepted view.
func (e *Engine) newRecord(subjectType string, subject domain.Subject, visitor domain.Visitor, collection string) domain.ViewRecord {
	id, _ := subject.ViewableID()
	return domain.ViewRecord{
		ID:          uuid.New(),
		SubjectType: subjectType,
		SubjectID:   id,
		Visitor:     visitor.ID,
		Collection:  collection,
		ViewedAt:    e.clock(),
	}
}
