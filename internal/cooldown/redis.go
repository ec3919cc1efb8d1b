package cooldown

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessions stores every visitor's session keys in redis under
// "{prefix}:{visitor}:{key}". Each write renews the key's lifetime.
type RedisSessions struct {
	client   redis.Cmdable
	prefix   string
	lifetime time.Duration
}

// NewRedisSessions returns a redis-backed session provider.
func NewRedisSessions(client redis.Cmdable, prefix string, lifetime time.Duration) *RedisSessions {
	return &RedisSessions{
		client:   client,
		prefix:   strings.Trim(prefix, ":"),
		lifetime: lifetime,
	}
}

func (r *RedisSessions) Session(visitorID string) Session {
	return &redisSession{
		client:   r.client,
		base:     r.prefix + ":" + visitorID + ":",
		lifetime: r.lifetime,
	}
}

type redisSession struct {
	client   redis.Cmdable
	base     string
	lifetime time.Duration
}

func (s *redisSession) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.base+key).Result()
	if err != nil {
		return false, fmt.Errorf("session exists: %w", err)
	}
	return n > 0, nil
}

func (s *redisSession) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.base+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session get: %w", err)
	}
	return v, true, nil
}

func (s *redisSession) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.base+key, value, s.lifetime).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

func (s *redisSession) Pull(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.GetDel(ctx, s.base+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session pull: %w", err)
	}
	return v, true, nil
}
