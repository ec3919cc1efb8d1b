package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the backend while the breaker is open.
var ErrCircuitOpen = errors.New("cache circuit breaker is open")

// Breaker defaults for remote backends.
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 30 * time.Second
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker fails fast after threshold consecutive backend errors. After the
// cooldown one trial call goes through; its result closes or reopens the
// circuit. Errors are never swallowed: callers see either the backend error or
// ErrCircuitOpen.
type Breaker struct {
	next      CountCache
	threshold int
	cooldown  time.Duration
	clock     func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
}

func NewBreaker(next CountCache, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		next:      next,
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (b *Breaker) WithClock(clock func() time.Time) *Breaker {
	b.clock = clock
	return b
}

func (b *Breaker) Get(ctx context.Context, key string) (int, bool, error) {
	if err := b.allow(); err != nil {
		return 0, false, err
	}
	n, ok, err := b.next.Get(ctx, key)
	b.record(err)
	return n, ok, err
}

func (b *Breaker) Put(ctx context.Context, key string, count int, ttl time.Duration) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := b.next.Put(ctx, key, count, ttl)
	b.record(err)
	return err
}

func (b *Breaker) Has(ctx context.Context, key string) (bool, error) {
	if err := b.allow(); err != nil {
		return false, err
	}
	ok, err := b.next.Has(ctx, key)
	b.record(err)
	return ok, err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.clock().Sub(b.openedAt) >= b.cooldown {
			b.state = breakerHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case breakerHalfOpen:
		// A trial call is in flight.
		return ErrCircuitOpen
	default:
		return nil
	}
}

// record counts cancellations as neither success nor failure.
func (b *Breaker) record(err error) {
	if errors.Is(err, context.Canceled) {
		b.mu.Lock()
		if b.state == breakerHalfOpen {
			b.state = breakerOpen
		}
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = breakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = b.clock()
	}
}
