package domain

// RejectReason says why a view was not recorded.
type RejectReason string

const (
	RejectBot        RejectReason = "bot"
	RejectDoNotTrack RejectReason = "do_not_track"
	RejectIgnoredIP  RejectReason = "ignored_ip"
	RejectCooldown   RejectReason = "cooldown"
)

// Outcome is the result of recording a view: either a stored record or the
// reason the view was skipped. A skipped view is not an error.
type Outcome struct {
	Record *ViewRecord
	Reason RejectReason
}

// Recorded reports whether a record was written.
func (o Outcome) Recorded() bool {
	return o.Record != nil
}

// Rejected builds a skipped Outcome.
func Rejected(reason RejectReason) Outcome {
	return Outcome{Reason: reason}
}
