package cooldown

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/djlord-it/easy-views/internal/domain"
)

// Record marks one subject as recently viewed until ExpiresAt.
type Record struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// History tracks cooldowns inside one visitor's Session. Records of a
// namespace (subject type plus optional collection) are kept as one JSON list
// under the namespace key and pruned lazily on the next Push.
//
// Push is check-then-act against the session; two concurrent pushes for the
// same visitor and subject can both succeed.
type History struct {
	session Session
	baseKey string
	clock   func() time.Time
}

// NewHistory returns a History storing its namespaces under baseKey.
func NewHistory(session Session, baseKey string) *History {
	return &History{
		session: session,
		baseKey: baseKey,
		clock:   time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (h *History) WithClock(clock func() time.Time) *History {
	h.clock = clock
	return h
}

// Push stores a record for subject expiring at expiresAt unless a live one
// already exists. It reports whether the record was stored.
func (h *History) Push(ctx context.Context, subject domain.Subject, expiresAt time.Time, collection string) (bool, error) {
	namespace := h.namespaceKey(subject.ViewableType(), collection)
	key := recordKey(namespace, subject)

	records, err := h.load(ctx, namespace)
	if err != nil {
		return false, err
	}

	live, pruned := pruneExpired(records, h.clock())
	for _, r := range live {
		if r.Key == key {
			if pruned {
				if err := h.save(ctx, namespace, live); err != nil {
					return false, err
				}
			}
			return false, nil
		}
	}

	live = append(live, Record{Key: key, ExpiresAt: expiresAt})
	if err := h.save(ctx, namespace, live); err != nil {
		return false, err
	}
	return true, nil
}

// Active reports whether subject currently has a live cooldown record.
func (h *History) Active(ctx context.Context, subject domain.Subject, collection string) (bool, error) {
	namespace := h.namespaceKey(subject.ViewableType(), collection)
	key := recordKey(namespace, subject)

	records, err := h.load(ctx, namespace)
	if err != nil {
		return false, err
	}
	now := h.clock()
	for _, r := range records {
		if r.Key == key && r.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

// Forget removes every record of the namespace and returns how many were live.
func (h *History) Forget(ctx context.Context, subjectType, collection string) (int, error) {
	namespace := h.namespaceKey(subjectType, collection)
	raw, ok, err := h.session.Pull(ctx, namespace)
	if err != nil {
		return 0, fmt.Errorf("cooldown pull %s: %w", namespace, err)
	}
	if !ok {
		return 0, nil
	}
	records, err := decode(namespace, raw)
	if err != nil {
		return 0, err
	}
	live, _ := pruneExpired(records, h.clock())
	return len(live), nil
}

func (h *History) namespaceKey(subjectType, collection string) string {
	key := h.baseKey + "." + domain.Slug(subjectType)
	if collection != "" {
		key += ":" + collection
	}
	return key
}

func recordKey(namespace string, subject domain.Subject) string {
	id, _ := subject.ViewableID()
	return namespace + "." + id
}

func (h *History) load(ctx context.Context, namespace string) ([]Record, error) {
	exists, err := h.session.Has(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("cooldown has %s: %w", namespace, err)
	}
	if !exists {
		return nil, nil
	}
	raw, ok, err := h.session.Get(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("cooldown get %s: %w", namespace, err)
	}
	if !ok {
		return nil, nil
	}
	return decode(namespace, raw)
}

func (h *History) save(ctx context.Context, namespace string, records []Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("cooldown encode %s: %w", namespace, err)
	}
	if err := h.session.Put(ctx, namespace, raw); err != nil {
		return fmt.Errorf("cooldown put %s: %w", namespace, err)
	}
	return nil
}

func decode(namespace string, raw []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("cooldown decode %s: %w", namespace, err)
	}
	return records, nil
}

// pruneExpired drops records with ExpiresAt <= now.
func pruneExpired(records []Record, now time.Time) (live []Record, pruned bool) {
	live = records[:0:0]
	for _, r := range records {
		if r.ExpiresAt.After(now) {
			live = append(live, r)
		} else {
			pruned = true
		}
	}
	return live, pruned
}
