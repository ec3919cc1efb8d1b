// Package cachekey derives the cache key a view count is stored under.
package cachekey

import (
	"strings"

	"github.com/djlord-it/easy-views/internal/domain"
	"github.com/djlord-it/easy-views/internal/period"
)

const (
	separator    = "."
	allTime      = "|"
	typeSentinel = "*"
)

// Builder builds deterministic keys. Type slugs and collection names must stay
// within [a-z0-9-] for keys of different arguments to never collide.
type Builder struct {
	Prefix string
}

// New returns a Builder with the given namespace prefix.
func New(prefix string) Builder {
	return Builder{Prefix: prefix}
}

// Make concatenates prefix, store, type slug, identity, period fragment,
// uniqueness and collection. A nil period counts all time.
func (b Builder) Make(subject domain.Subject, p *period.Period, unique bool, collection string) string {
	id, ok := subject.ViewableID()
	if !ok {
		id = typeSentinel
	}

	fragment := allTime
	if p != nil {
		fragment = p.KeyFragment()
	}

	kind := "normal"
	if unique {
		kind = "unique"
	}

	parts := []string{
		b.Prefix,
		subject.ViewableStore(),
		domain.Slug(subject.ViewableType()),
		id,
		fragment,
		kind,
	}
	if collection != "" {
		parts = append(parts, collection)
	}
	return strings.Join(parts, separator)
}
