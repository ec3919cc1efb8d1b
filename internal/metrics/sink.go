package metrics

import (
	"net/http"
	"time"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Engine metrics
	ViewRecorded(subjectType string)
	ViewRejected(reason string)
	CountCompleted(cacheResult string, duration time.Duration)
	ViewsDestroyed(count int64)

	// Observer metrics
	EventProcessed(outcome string)
	EventsInFlightIncr()
	EventsInFlightDecr()

	// EventBus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()

	// Retention metrics
	PruneStarted()
	PruneCompleted(duration time.Duration, deleted int64, err error)
	TickDrift(drift time.Duration)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)

	// API metrics
	RequestCompleted(route, statusClass string, duration time.Duration)
}

// Outcome constants for EventProcessed metric.
const (
	OutcomeDeleted  = "deleted"
	OutcomeRetained = "retained"
	OutcomeFailed   = "failed"
)

// StatusClass constants for RequestCompleted metric.
const (
	StatusClass2xx         = "2xx"
	StatusClass4xx         = "4xx"
	StatusClass5xx         = "5xx"
	StatusClassRateLimited = "rate_limited"
	StatusClassOther       = "other"
)

// ClassifyStatus maps an HTTP status code to a status class. 429 gets its
// own class so record throttling is visible apart from client errors.
func ClassifyStatus(statusCode int) string {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return StatusClassRateLimited
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500 && statusCode < 600:
		return StatusClass5xx
	default:
		return StatusClassOther
	}
}
