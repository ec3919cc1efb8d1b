package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// maxRelativeExpiration is the largest TTL memcached treats as relative;
// anything longer is read as a unix timestamp.
const maxRelativeExpiration = 30 * 24 * time.Hour

const maxKeyLength = 250

// Memcached stores counts as decimal item values.
type Memcached struct {
	client *memcache.Client
}

// NewMemcached wraps a gomemcache client.
func NewMemcached(client *memcache.Client) *Memcached {
	return &Memcached{client: client}
}

func (m *Memcached) Get(ctx context.Context, key string) (int, bool, error) {
	item, err := m.client.Get(itemKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("memcached get %s: %w", key, err)
	}
	n, err := strconv.Atoi(string(item.Value))
	if err != nil {
		return 0, false, fmt.Errorf("memcached get %s: corrupt value: %w", key, err)
	}
	return n, true, nil
}

func (m *Memcached) Put(ctx context.Context, key string, count int, ttl time.Duration) error {
	item := &memcache.Item{
		Key:        itemKey(key),
		Value:      []byte(strconv.Itoa(count)),
		Expiration: expiration(ttl, time.Now()),
	}
	if err := m.client.Set(item); err != nil {
		return fmt.Errorf("memcached set %s: %w", key, err)
	}
	return nil
}

func (m *Memcached) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

// expiration converts a TTL into memcached's expiration field.
func expiration(ttl time.Duration, now time.Time) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeExpiration {
		return int32(now.Add(ttl).Unix())
	}
	secs := int32(ttl / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}

// itemKey hashes keys longer than memcached accepts.
func itemKey(key string) string {
	if len(key) <= maxKeyLength {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return key[:maxKeyLength-len(sum)*2-1] + ":" + hex.EncodeToString(sum[:])
}
