// Package leaderelection runs the retention pruner on exactly one instance.
//
// Leadership is a session-scoped lock. The postgres implementation takes a
// pg_try_advisory_lock on a dedicated connection; there is no renewal or TTL,
// the lock dies with the connection. The heartbeat only detects local
// connection death so the leader can stop pruning promptly.
package leaderelection

import (
	"context"
	"log"
	"time"
)

// Lost reasons reported to LeaderLost.
const (
	ReasonShutdown = "shutdown"
	ReasonConnLost = "conn_lost"
)

// MetricsSink defines the interface for recording leader election metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// Lock is a non-blocking exclusive lock shared by all instances.
type Lock interface {
	// TryAcquire returns a held lock, or ok=false when another instance owns it.
	TryAcquire(ctx context.Context) (held Held, ok bool, err error)
	String() string
}

// Held is an acquired lock. Release must be safe to call once after Ping fails.
type Held interface {
	Ping(ctx context.Context) error
	Release() error
}

// Elector manages leader election over a Lock.
type Elector struct {
	lock              Lock
	retryInterval     time.Duration // follower: how often to attempt lock acquisition
	heartbeatInterval time.Duration // leader: how often to ping the held lock
	onElected         func(ctx context.Context)
	onDemoted         func()
	metrics           MetricsSink // optional, nil = disabled
}

// New creates a new Elector.
//
// onElected is called in a new goroutine when this instance acquires the lock.
// The provided context is cancelled when leadership is lost.
// onElected should start the pruner and return quickly.
//
// onDemoted is called synchronously when leadership is lost.
// It should stop the pruner and block until it is fully stopped.
// It must be idempotent.
func New(
	lock Lock,
	retryInterval, heartbeatInterval time.Duration,
	onElected func(ctx context.Context),
	onDemoted func(),
) *Elector {
	return &Elector{
		lock:              lock,
		retryInterval:     retryInterval,
		heartbeatInterval: heartbeatInterval,
		onElected:         onElected,
		onDemoted:         onDemoted,
	}
}

// WithMetrics attaches a metrics sink to the elector.
func (e *Elector) WithMetrics(sink MetricsSink) *Elector {
	e.metrics = sink
	return e
}

// Run starts the leader election loop. It blocks until ctx is cancelled.
func (e *Elector) Run(ctx context.Context) {
	log.Printf("leader: starting election loop (lock=%s, retry=%s, heartbeat=%s)",
		e.lock, e.retryInterval, e.heartbeatInterval)

	for {
		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}

		reason := e.runOnce(ctx)

		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}

		if reason != "" {
			log.Printf("leader: lost leadership (reason=%s), will retry in %s", reason, e.retryInterval)
		}

		select {
		case <-ctx.Done():
			log.Println("leader: election loop stopped")
			return
		case <-time.After(e.retryInterval):
		}
	}
}

// runOnce attempts to acquire the lock and hold it.
// Returns the reason leadership was lost ("" if the lock was not acquired).
func (e *Elector) runOnce(ctx context.Context) string {
	held, acquired, err := e.lock.TryAcquire(ctx)
	if err != nil {
		log.Printf("leader: lock attempt failed: %v", err)
		return ""
	}
	if !acquired {
		log.Printf("leader: %s held by another instance, retrying in %s", e.lock, e.retryInterval)
		return ""
	}

	log.Printf("leader: acquired %s", e.lock)
	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(true)
		e.metrics.LeaderAcquired()
	}

	leaderCtx, cancelLeader := context.WithCancel(ctx)

	go e.onElected(leaderCtx)

	reason := e.hold(ctx, held)

	cancelLeader()
	e.onDemoted()

	if err := held.Release(); err != nil {
		log.Printf("leader: release %s: %v", e.lock, err)
	}

	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(false)
		e.metrics.LeaderLost(reason)
	}

	log.Printf("leader: released %s", e.lock)
	return reason
}

// hold blocks while pinging the held lock.
// Returns the reason the lock was lost.
func (e *Elector) hold(ctx context.Context, held Held) string {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ReasonShutdown
		case <-ticker.C:
			if err := held.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return ReasonShutdown
				}
				log.Printf("leader: heartbeat failed: %v", err)
				return ReasonConnLost
			}
		}
	}
}
