package domain

// Visitor carries the externally-derived signals about whoever triggered a view.
type Visitor struct {
	ID         string
	IP         string
	DoNotTrack bool
	Crawler    bool
}
