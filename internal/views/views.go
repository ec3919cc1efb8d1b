package views

import (
	"context"
	"fmt"
	"time"

	"github.com/djlord-it/easy-views/internal/cooldown"
	"github.com/djlord-it/easy-views/internal/domain"
	"github.com/djlord-it/easy-views/internal/period"
)

// Views is a query over one subject. The zero period spans all time.
type Views struct {
	engine  *Engine
	subject domain.Subject

	period     *period.Period
	unique     bool
	collection string
	cooldown   time.Duration

	cacheEnabled  bool
	cacheLifetime time.Duration
}

// Period restricts counting to p.
func (v Views) Period(p period.Period) Views {
	v.period = &p
	return v
}

// Unique counts distinct visitors instead of records.
func (v Views) Unique() Views {
	v.unique = true
	return v
}

// Collection scopes the query to a named collection.
func (v Views) Collection(name string) Views {
	v.collection = name
	return v
}

// Cooldown suppresses repeated views from the same visitor for d.
func (v Views) Cooldown(d time.Duration) Views {
	v.cooldown = d
	return v
}

// Remember caches counts for lifetime. Zero keeps the configured lifetime.
func (v Views) Remember(lifetime time.Duration) Views {
	v.cacheEnabled = true
	if lifetime > 0 {
		v.cacheLifetime = lifetime
	}
	return v
}

// Subject returns the subject the query is for.
func (v Views) Subject() domain.Subject {
	return v.subject
}

// subjectType is the slug records are stored under. An empty type would widen
// every query to all subjects, so it is rejected.
func (v Views) subjectType() (string, error) {
	typ := domain.Slug(v.subject.ViewableType())
	if typ == "" {
		return "", ErrNoSubjectType
	}
	return typ, nil
}

func (v Views) query(typ string) domain.ViewQuery {
	q := domain.ViewQuery{
		SubjectType: typ,
		Collection:  v.collection,
		Unique:      v.unique,
	}
	if id, ok := v.subject.ViewableID(); ok {
		q.SubjectID = id
	}
	if v.period != nil {
		if start, ok := v.period.Start(); ok {
			q.Start = &start
		}
		if end, ok := v.period.End(); ok {
			q.End = &end
		}
	}
	return q
}

func (v Views) caching() bool {
	return v.cacheEnabled && v.engine.cache != nil && v.cacheLifetime > 0
}

// Count returns the number of views (or unique visitors) of the subject,
// served from the cache when caching is enabled and a live entry exists.
func (v Views) Count(ctx context.Context) (int, error) {
	e := v.engine
	started := e.clock()

	typ, err := v.subjectType()
	if err != nil {
		return 0, err
	}

	if !v.caching() {
		n, err := e.store.CountViews(ctx, v.query(typ))
		if err != nil {
			return 0, fmt.Errorf("count views: %w", err)
		}
		e.countCompleted(CacheDisabled, started)
		return n, nil
	}

	key := e.keys.Make(v.subject, v.period, v.unique, v.collection)
	cached, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("cache get %s: %w", key, err)
	}
	if ok {
		e.countCompleted(CacheHit, started)
		return cached, nil
	}

	n, err := e.store.CountViews(ctx, v.query(typ))
	if err != nil {
		return 0, fmt.Errorf("count views: %w", err)
	}
	if err := e.cache.Put(ctx, key, n, v.cacheLifetime); err != nil {
		return 0, fmt.Errorf("cache put %s: %w", key, err)
	}
	e.countCompleted(CacheMiss, started)
	return n, nil
}

// Record stores one view by visitor. Views rejected by a guard or by an
// active cooldown return an Outcome carrying the reason and a nil error.
func (v Views) Record(ctx context.Context, visitor domain.Visitor) (domain.Outcome, error) {
	e := v.engine

	typ, err := v.subjectType()
	if err != nil {
		return domain.Outcome{}, err
	}

	if reason := e.guards.Evaluate(visitor); reason != "" {
		e.rejected(reason)
		return domain.Rejected(reason), nil
	}

	if v.cooldown > 0 {
		if e.sessions == nil {
			return domain.Outcome{}, ErrNoSessions
		}
		history := cooldown.NewHistory(e.sessions.Session(visitor.ID), e.cfg.SessionKey).WithClock(e.clock)
		stored, err := history.Push(ctx, v.subject, e.clock().Add(v.cooldown), v.collection)
		if err != nil {
			return domain.Outcome{}, err
		}
		if !stored {
			e.rejected(domain.RejectCooldown)
			return domain.Rejected(domain.RejectCooldown), nil
		}
	}

	rec := e.newRecord(typ, v.subject, visitor, v.collection)
	if err := e.store.InsertView(ctx, rec); err != nil {
		return domain.Outcome{}, fmt.Errorf("insert view: %w", err)
	}
	if e.metrics != nil {
		e.metrics.ViewRecorded(rec.SubjectType)
	}
	return domain.Outcome{Record: &rec}, nil
}

// Destroy deletes every view of the subject, or of every subject of the type
// for type-level subjects. Period and collection are ignored.
func (v Views) Destroy(ctx context.Context) (int64, error) {
	typ, err := v.subjectType()
	if err != nil {
		return 0, err
	}
	q := domain.ViewQuery{SubjectType: typ}
	if id, ok := v.subject.ViewableID(); ok {
		q.SubjectID = id
	}
	n, err := v.engine.store.DeleteViews(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("delete views: %w", err)
	}
	if v.engine.metrics != nil {
		v.engine.metrics.ViewsDestroyed(n)
	}
	return n, nil
}

// Top ranks the subjects of this subject's type by view count within the
// configured period, collection and uniqueness.
func (v Views) Top(ctx context.Context, limit int) ([]domain.SubjectCount, error) {
	if limit <= 0 {
		return nil, nil
	}
	typ, err := v.subjectType()
	if err != nil {
		return nil, err
	}
	q := v.query(typ)
	q.SubjectID = ""
	top, err := v.engine.store.TopSubjects(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("top subjects: %w", err)
	}
	return top, nil
}

// ForgetCooldowns clears visitor's cooldowns for this subject type and
// collection, returning how many were still active.
func (v Views) ForgetCooldowns(ctx context.Context, visitor domain.Visitor) (int, error) {
	e := v.engine
	if e.sessions == nil {
		return 0, ErrNoSessions
	}
	history := cooldown.NewHistory(e.sessions.Session(visitor.ID), e.cfg.SessionKey).WithClock(e.clock)
	return history.Forget(ctx, v.subject.ViewableType(), v.collection)
}

func (e *Engine) rejected(reason domain.RejectReason) {
	if e.metrics != nil {
		e.metrics.ViewRejected(string(reason))
	}
}
