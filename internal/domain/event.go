package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubjectDeleted is emitted when a subject is removed from its owning store.
type SubjectDeleted struct {
	ID      uuid.UUID
	Subject SubjectRef

	// RetainViews is the per-instance opt-out: the subject's views survive.
	RetainViews bool

	OccurredAt time.Time
}

