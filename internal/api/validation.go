package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/djlord-it/easy-views/internal/period"
)

// Top limits.
const (
	DefaultTopLimit = 10
	MaxTopLimit     = 100
)

const maxNameLength = 64

// validateName checks a subject type or collection name. Cache keys rely on
// these staying within [a-z0-9-].
func validateName(field, name string) error {
	if name == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%s exceeds %d characters", field, maxNameLength)
	}
	for _, c := range name {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return fmt.Errorf("%s must match [a-z0-9-]", field)
		}
	}
	return nil
}

// validateID checks a subject id. Ids are opaque but must not contain the
// cache key separator.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if len(id) > 128 {
		return fmt.Errorf("id exceeds 128 characters")
	}
	if strings.ContainsAny(id, ". ") {
		return fmt.Errorf("id must not contain dots or spaces")
	}
	return nil
}

// parseCollection returns the optional collection parameter.
func parseCollection(q url.Values) (string, error) {
	c := q.Get("collection")
	if c == "" {
		return "", nil
	}
	if err := validateName("collection", c); err != nil {
		return "", err
	}
	return c, nil
}

// parsePeriod combines the period fragment with the since/until bounds
// (RFC 3339). Returns nil when none is given.
func parsePeriod(q url.Values, now time.Time) (*period.Period, error) {
	raw, since, until := q.Get("period"), q.Get("since"), q.Get("until")
	if raw == "" && since == "" && until == "" {
		return nil, nil
	}

	p, err := period.Parse(raw, now)
	if err != nil {
		return nil, fmt.Errorf("invalid period: %w", err)
	}
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, fmt.Errorf("invalid since: %w", err)
		}
		if p, err = p.WithStart(t); err != nil {
			return nil, err
		}
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return nil, fmt.Errorf("invalid until: %w", err)
		}
		if p, err = p.WithEnd(t); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// parseRemember reads remember=true (configured lifetime) or a duration.
// ok is false when caching was not requested.
func parseRemember(q url.Values) (lifetime time.Duration, ok bool, err error) {
	raw := q.Get("remember")
	switch raw {
	case "", "false":
		return 0, false, nil
	case "true":
		return 0, true, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false, fmt.Errorf("remember must be true or a positive duration")
	}
	return d, true, nil
}

// parseCooldown reads an optional positive duration.
func parseCooldown(q url.Values) (time.Duration, error) {
	raw := q.Get("cooldown")
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("cooldown must be a positive duration")
	}
	return d, nil
}

// parseTopLimit returns DefaultTopLimit when limit is absent or 0.
func parseTopLimit(q url.Values) (int, error) {
	raw := q.Get("limit")
	if raw == "" {
		return DefaultTopLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	if limit > MaxTopLimit {
		return 0, fmt.Errorf("limit exceeds maximum of %d", MaxTopLimit)
	}
	if limit == 0 {
		limit = DefaultTopLimit
	}
	return limit, nil
}
