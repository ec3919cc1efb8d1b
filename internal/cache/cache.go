// Package cache stores computed view counts with a TTL. Entries are only ever
// replaced by a later Put or dropped by expiry; nothing here invalidates a
// count when a new view is recorded.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CountCache is the key/value cache collaborator used for view counts.
type CountCache interface {
	Get(ctx context.Context, key string) (count int, ok bool, err error)
	Put(ctx context.Context, key string, count int, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
}

// DefaultMaxEntries bounds Memory when no size is given.
const DefaultMaxEntries = 100_000

type memoryEntry struct {
	count     int
	expiresAt time.Time
}

// Memory is an in-process CountCache holding at most size entries; the least
// recently used one is evicted first. Each entry keeps the TTL of its Put and
// is dropped once read past expiry.
type Memory struct {
	lru   *expirable.LRU[string, memoryEntry]
	clock func() time.Time
}

// NewMemory returns an empty in-process cache. size <= 0 uses DefaultMaxEntries.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMaxEntries
	}
	return &Memory{
		// No LRU-wide TTL: expiry is per entry and follows the injected clock.
		lru:   expirable.NewLRU[string, memoryEntry](size, nil, 0),
		clock: time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (m *Memory) WithClock(clock func() time.Time) *Memory {
	m.clock = clock
	return m
}

func (m *Memory) Get(ctx context.Context, key string) (int, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return 0, false, nil
	}
	if !m.clock().Before(e.expiresAt) {
		m.lru.Remove(key)
		return 0, false, nil
	}
	return e.count, true, nil
}

func (m *Memory) Put(ctx context.Context, key string, count int, ttl time.Duration) error {
	if ttl <= 0 {
		m.lru.Remove(key)
		return nil
	}
	m.lru.Add(key, memoryEntry{count: count, expiresAt: m.clock().Add(ttl)})
	return nil
}

func (m *Memory) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	now := m.clock()
	n := 0
	for _, e := range m.lru.Values() {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}
