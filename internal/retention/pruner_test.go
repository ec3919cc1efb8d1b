package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/djlord-it/easy-views/internal/cron"
	"github.com/djlord-it/easy-views/internal/domain"
	"github.com/djlord-it/easy-views/internal/testutil"
)

type mockStore struct {
	mu      sync.Mutex
	queries []domain.ViewQuery
	deleted int64
	err     error
}

func (m *mockStore) DeleteViews(ctx context.Context, q domain.ViewQuery) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.err != nil {
		return 0, m.err
	}
	return m.deleted, nil
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

type mockMetrics struct {
	mu        sync.Mutex
	started   int
	completed int
	deleted   int64
	errors    int
	drifts    []time.Duration
}

func (m *mockMetrics) PruneStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *mockMetrics) PruneCompleted(duration time.Duration, deleted int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
	m.deleted += deleted
	if err != nil {
		m.errors++
	}
}

func (m *mockMetrics) TickDrift(drift time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drifts = append(m.drifts, drift)
}

func mustSchedule(t *testing.T, expr string) cron.Schedule {
	t.Helper()
	s, err := cron.NewParser().Parse(expr, "UTC")
	if err != nil {
		t.Fatalf("parse %q: %v", expr, err)
	}
	return s
}

func TestPruneOnce_Cutoff(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC))
	store := &mockStore{deleted: 7}
	metrics := &mockMetrics{}
	p := New(Config{TickInterval: time.Minute, Retention: 24 * time.Hour}, store, mustSchedule(t, "0 3 * * *")).
		WithClock(clock.Now).
		WithMetrics(metrics)

	n, err := p.PruneOnce(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("PruneOnce = (%d, %v), want (7, nil)", n, err)
	}

	q := store.queries[0]
	want := time.Date(2024, 2, 29, 3, 0, 0, 0, time.UTC)
	if q.End == nil || !q.End.Equal(want) {
		t.Errorf("cutoff = %v, want %v", q.End, want)
	}
	if q.Start != nil || q.SubjectType != "" || q.SubjectID != "" || q.Collection != "" {
		t.Errorf("prune query should only bound the end: %+v", q)
	}
	if metrics.started != 1 || metrics.completed != 1 || metrics.deleted != 7 {
		t.Errorf("metrics = started %d completed %d deleted %d", metrics.started, metrics.completed, metrics.deleted)
	}
}

func TestPruneOnce_StoreError(t *testing.T) {
	boom := errors.New("db down")
	metrics := &mockMetrics{}
	p := New(Config{TickInterval: time.Minute, Retention: time.Hour}, &mockStore{err: boom}, mustSchedule(t, "@hourly")).
		WithMetrics(metrics)

	if _, err := p.PruneOnce(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
	if metrics.errors != 1 {
		t.Errorf("error metric = %d, want 1", metrics.errors)
	}
}

func TestProcessTick_RunsWhenDue(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2024, 3, 1, 2, 58, 0, 0, time.UTC))
	store := &mockStore{}
	metrics := &mockMetrics{}
	p := New(Config{TickInterval: time.Minute, Retention: 24 * time.Hour}, store, mustSchedule(t, "0 3 * * *")).
		WithClock(clock.Now).
		WithMetrics(metrics)
	p.lastTick = clock.Now()
	ctx := context.Background()

	// 02:59: not due yet.
	clock.Advance(time.Minute)
	if err := p.processTick(ctx); err != nil {
		t.Fatalf("processTick: %v", err)
	}
	if store.calls() != 0 {
		t.Fatalf("pruned before the fire time")
	}

	// 03:00: due.
	clock.Advance(time.Minute)
	_ = p.processTick(ctx)
	if store.calls() != 1 {
		t.Fatalf("prune calls = %d, want 1", store.calls())
	}

	// 03:01: same fire time must not run twice.
	clock.Advance(time.Minute)
	_ = p.processTick(ctx)
	if store.calls() != 1 {
		t.Errorf("prune calls = %d, want 1", store.calls())
	}

	if len(metrics.drifts) != 3 || metrics.drifts[0] != 0 {
		t.Errorf("drifts = %v, want three zero drifts", metrics.drifts)
	}
}

func TestProcessTick_MissedFireTimesCollapse(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	store := &mockStore{}
	p := New(Config{TickInterval: time.Minute, Retention: time.Hour}, store, mustSchedule(t, "@hourly")).
		WithClock(clock.Now)
	p.lastTick = clock.Now()

	clock.Advance(5 * time.Hour)
	_ = p.processTick(context.Background())
	if store.calls() != 1 {
		t.Errorf("prune calls = %d, want 1", store.calls())
	}
}

func TestRun_RejectsNonPositiveRetention(t *testing.T) {
	p := New(Config{TickInterval: time.Minute}, &mockStore{}, mustSchedule(t, "@daily"))
	if err := p.Run(context.Background()); err == nil {
		t.Error("expected error for zero retention")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	p := New(Config{TickInterval: 10 * time.Millisecond, Retention: time.Hour}, &mockStore{}, mustSchedule(t, "@every 1s"))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want context.DeadlineExceeded", err)
	}
}
