// Package retention deletes view records older than the retention window on
// a cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/djlord-it/easy-views/internal/cron"
	"github.com/djlord-it/easy-views/internal/domain"
	"github.com/djlord-it/easy-views/internal/period"
)

type Store interface {
	DeleteViews(ctx context.Context, q domain.ViewQuery) (int64, error)
}

// MetricsSink defines the interface for recording pruner metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	PruneStarted()
	PruneCompleted(duration time.Duration, deleted int64, err error)
	TickDrift(drift time.Duration)
}

type Config struct {
	TickInterval time.Duration
	// Retention is how long records are kept. Must be positive.
	Retention time.Duration
}

type Pruner struct {
	config   Config
	store    Store
	schedule cron.Schedule
	clock    func() time.Time
	metrics  MetricsSink // optional, nil = disabled
	lastTick time.Time
}

func New(config Config, store Store, schedule cron.Schedule) *Pruner {
	return &Pruner{
		config:   config,
		store:    store,
		schedule: schedule,
		clock:    time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (p *Pruner) WithClock(clock func() time.Time) *Pruner {
	p.clock = clock
	return p
}

// WithMetrics attaches a metrics sink to the pruner.
func (p *Pruner) WithMetrics(sink MetricsSink) *Pruner {
	p.metrics = sink
	return p
}

func (p *Pruner) Run(ctx context.Context) error {
	if p.config.Retention <= 0 {
		return errors.New("pruner: retention must be positive")
	}

	ticker := time.NewTicker(p.config.TickInterval)
	defer ticker.Stop()

	log.Printf("pruner: started, tick=%s retention=%s", p.config.TickInterval, p.config.Retention)
	p.lastTick = p.clock().UTC()

	for {
		select {
		case <-ctx.Done():
			log.Println("pruner: stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.processTick(ctx); err != nil {
				log.Printf("pruner: tick error: %v", err)
			}
		}
	}
}

// processTick prunes once when at least one fire time passed since the last
// tick. Missed fire times collapse into a single run.
func (p *Pruner) processTick(ctx context.Context) error {
	now := p.clock().UTC()
	if p.metrics != nil && !p.lastTick.IsZero() {
		p.metrics.TickDrift(now.Sub(p.lastTick) - p.config.TickInterval)
	}

	due := cron.Due(p.schedule, p.lastTick, now)
	p.lastTick = now
	if !due {
		return nil
	}

	_, err := p.PruneOnce(ctx)
	return err
}

// PruneOnce deletes every record viewed at or before now minus the retention.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	started := p.clock()
	if p.metrics != nil {
		p.metrics.PruneStarted()
	}

	cutoff, _ := period.Upto(started.UTC().Add(-p.config.Retention)).End()
	n, err := p.store.DeleteViews(ctx, domain.ViewQuery{End: &cutoff})

	if p.metrics != nil {
		p.metrics.PruneCompleted(p.clock().Sub(started), n, err)
	}
	if err != nil {
		return 0, fmt.Errorf("prune views before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	log.Printf("pruner: deleted %d views viewed at or before %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}
