// Package cooldown keeps the per-visitor history of recently recorded views so
// the same visitor is not counted twice for a subject within a cooldown window.
package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Session is a visitor-scoped key/value store, the way an HTTP session is.
type Session interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	// Pull returns the value and removes it.
	Pull(ctx context.Context, key string) ([]byte, bool, error)
}

// Sessions hands out the Session of a visitor.
type Sessions interface {
	Session(visitorID string) Session
}

// DefaultMaxSessions bounds MemorySessions when no size is given.
const DefaultMaxSessions = 100_000

// MemorySessions keeps sessions in process, evicting the least recently used
// visitor once size is reached and any session idle for longer than lifetime.
type MemorySessions struct {
	lru *expirable.LRU[string, *memorySession]
	mu  sync.Mutex
}

// NewMemorySessions returns an LRU-bounded session provider.
func NewMemorySessions(size int, lifetime time.Duration) *MemorySessions {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	return &MemorySessions{
		lru: expirable.NewLRU[string, *memorySession](size, nil, lifetime),
	}
}

// Session returns the visitor's session, creating it when absent. Each call
// refreshes the session's lifetime.
func (m *MemorySessions) Session(visitorID string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.lru.Get(visitorID)
	if !ok {
		s = &memorySession{values: make(map[string][]byte)}
	}
	m.lru.Add(visitorID, s)
	return s
}

// Len returns the number of live sessions.
func (m *MemorySessions) Len() int {
	return m.lru.Len()
}

type memorySession struct {
	mu     sync.Mutex
	values map[string][]byte
}

func (s *memorySession) Has(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok, nil
}

func (s *memorySession) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *memorySession) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *memorySession) Pull(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if ok {
		delete(s.values, key)
	}
	return v, ok, nil
}
