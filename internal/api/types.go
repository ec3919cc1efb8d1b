package api

import (
	"time"

	"github.com/djlord-it/easy-views/internal/domain"
)

type CountResponse struct {
	Count int `json:"count"`
}

type RecordResponse struct {
	Recorded    bool   `json:"recorded"`
	Reason      string `json:"reason,omitempty"`
	ID          string `json:"id,omitempty"`
	SubjectType string `json:"subject_type,omitempty"`
	SubjectID   string `json:"subject_id,omitempty"`
	Collection  string `json:"collection,omitempty"`
	ViewedAt    string `json:"viewed_at,omitempty"`
}

type DeleteViewsResponse struct {
	Deleted int64 `json:"deleted"`
}

type ForgetCooldownsResponse struct {
	Forgotten int `json:"forgotten"`
}

type SubjectDeletedResponse struct {
	EventID     string `json:"event_id"`
	RetainViews bool   `json:"retain_views"`
}

type SubjectCountResponse struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

type TopResponse struct {
	Subjects []SubjectCountResponse `json:"subjects"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func recordResponse(o domain.Outcome) RecordResponse {
	if !o.Recorded() {
		return RecordResponse{Reason: string(o.Reason)}
	}
	rec := o.Record
	return RecordResponse{
		Recorded:    true,
		ID:          rec.ID.String(),
		SubjectType: rec.SubjectType,
		SubjectID:   rec.SubjectID,
		Collection:  rec.Collection,
		ViewedAt:    formatTime(rec.ViewedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
