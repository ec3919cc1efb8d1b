package domain

import (
	"time"

	"github.com/google/uuid"
)

// ViewRecord is one persisted view of a subject.
type ViewRecord struct {
	ID uuid.UUID

	SubjectType string // Slug of the subject type
	SubjectID   string // empty when the view was recorded against a type

	Visitor    string // empty when no visitor identity was available
	Collection string

	ViewedAt time.Time
}

// ViewQuery is the predicate set the record store filters on.
type ViewQuery struct {
	// SubjectType restricts to one type. Empty matches every type and is
	// only used by retention pruning.
	SubjectType string
	SubjectID   string // empty = every subject of the type

	Start *time.Time // viewed_at >= Start
	End   *time.Time // viewed_at <= End

	Collection string // empty = every collection
	Unique     bool   // count distinct visitors instead of rows
}

// SubjectCount pairs a subject id with its view count.
type SubjectCount struct {
	SubjectID string
	Count     int
}
