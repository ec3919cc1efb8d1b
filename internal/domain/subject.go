package domain

import "strings"

// Subject is anything whose views are counted. Types that persist entities
// implement it directly; SubjectRef covers everything else.
type Subject interface {
	// ViewableType identifies the kind of subject. It is slugged before use
	// in keys, so callers may return a fully-qualified type name.
	ViewableType() string

	// ViewableID returns the subject's primary key. ok is false for
	// type-level subjects, which aggregate over every instance of the type.
	ViewableID() (id string, ok bool)

	// ViewableStore names the backing store (connection + database) so keys
	// never collide across separate data stores.
	ViewableStore() string
}

// ViewRetainer is implemented by subjects that opt out of having their views
// removed when the subject itself is deleted.
type ViewRetainer interface {
	RetainViewsOnDelete() bool
}

// SubjectRef is a plain Subject value.
type SubjectRef struct {
	Store string
	Type  string
	ID    string // empty for type-level subjects
}

// Ref returns a reference to a single subject instance.
func Ref(store, typ, id string) SubjectRef {
	return SubjectRef{Store: store, Type: typ, ID: id}
}

// TypeRef returns a reference to every subject of the given type.
func TypeRef(store, typ string) SubjectRef {
	return SubjectRef{Store: store, Type: typ}
}

func (r SubjectRef) ViewableType() string  { return r.Type }
func (r SubjectRef) ViewableStore() string { return r.Store }

func (r SubjectRef) ViewableID() (string, bool) {
	return r.ID, r.ID != ""
}

// RefOf copies any Subject into a SubjectRef.
func RefOf(s Subject) SubjectRef {
	id, _ := s.ViewableID()
	return SubjectRef{Store: s.ViewableStore(), Type: s.ViewableType(), ID: id}
}

// Slug lowercases name and replaces every character outside [a-z0-9] with '-'.
// "App\Models\Post" becomes "app-models-post".
func Slug(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
