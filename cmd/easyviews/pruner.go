package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/djlord-it/easy-views/internal/config"
	"github.com/djlord-it/easy-views/internal/cron"
	"github.com/djlord-it/easy-views/internal/leaderelection"
	"github.com/djlord-it/easy-views/internal/metrics"
	"github.com/djlord-it/easy-views/internal/retention"
)

var errRetentionUnset = errors.New("RETENTION is not set")

func newPrunerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pruner",
		Short: "Run only the retention pruner (leader-elected on postgres)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			if cfg.Retention <= 0 {
				return invalidConfig(errRetentionUnset)
			}

			b, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer b.close()

			metricsSink, metricsServer := startMetrics(cfg)
			if metricsServer != nil {
				defer metricsServer.Close()
			}

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				sig := make(chan os.Signal, 1)
				signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
				received := <-sig
				log.Printf("easyviews: received signal %v, shutting down", received)
				cancel()
			}()

			err = runPruning(ctx, cfg, b, metricsSink)
			log.Println("easyviews: stopped")
			return err
		},
	}
}

func newPruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete view records older than RETENTION once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			if cfg.Retention <= 0 {
				return invalidConfig(errRetentionUnset)
			}

			b, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer b.close()

			p, err := newPruner(cfg, b, nil)
			if err != nil {
				return err
			}
			n, err := p.PruneOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d views\n", n)
			return nil
		},
	}
}

func newPruner(cfg config.Config, b *backend, sink *metrics.PrometheusSink) (*retention.Pruner, error) {
	schedule, err := cron.NewParser().Parse(cfg.PruneSchedule, cfg.PruneTimezone)
	if err != nil {
		return nil, invalidConfig(err)
	}
	p := retention.New(retention.Config{TickInterval: cfg.TickInterval, Retention: cfg.Retention}, b.store, schedule)
	if sink != nil {
		p = p.WithMetrics(sink)
	}
	return p, nil
}

// runPruning blocks until ctx is cancelled. sqlite deployments are single
// process and prune directly; postgres deployments prune on the elected leader.
func runPruning(ctx context.Context, cfg config.Config, b *backend, sink *metrics.PrometheusSink) error {
	if cfg.DatabaseDriver == config.DriverSQLite {
		p, err := newPruner(cfg, b, sink)
		if err != nil {
			return err
		}
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	tracker := &leaderRun{}
	onElected := func(leaderCtx context.Context) {
		done := tracker.start()
		defer close(done)

		p, err := newPruner(cfg, b, sink)
		if err != nil {
			log.Printf("easyviews: pruner setup failed: %v", err)
			return
		}
		if err := p.Run(leaderCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("easyviews: pruner error: %v", err)
		}
	}

	elector := leaderelection.New(
		leaderelection.NewAdvisoryLock(b.db, cfg.LeaderLockKey),
		cfg.LeaderRetryInterval,
		cfg.LeaderHeartbeatInterval,
		onElected,
		tracker.wait,
	)
	if sink != nil {
		elector = elector.WithMetrics(sink)
	}
	elector.Run(ctx)
	return nil
}

// leaderRun lets the demotion callback wait for the election callback, which
// the elector starts in its own goroutine. wait may run before that goroutine
// reaches start; the channel is created on whichever side comes first so the
// wait is never skipped.
type leaderRun struct {
	mu   sync.Mutex
	done chan struct{}
}

// start returns the channel the elected run must close when it returns.
func (r *leaderRun) start() chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		r.done = make(chan struct{})
	}
	return r.done
}

// wait blocks until the current run has closed its channel, then resets for
// the next election.
func (r *leaderRun) wait() {
	r.mu.Lock()
	if r.done == nil {
		r.done = make(chan struct{})
	}
	done := r.done
	r.mu.Unlock()

	<-done

	r.mu.Lock()
	r.done = nil
	r.mu.Unlock()
}
