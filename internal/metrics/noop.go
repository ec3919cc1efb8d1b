package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) ViewRecorded(subjectType string)                                    {}
func (n *NoopSink) ViewRejected(reason string)                                         {}
func (n *NoopSink) CountCompleted(cacheResult string, duration time.Duration)          {}
func (n *NoopSink) ViewsDestroyed(count int64)                                         {}
func (n *NoopSink) EventProcessed(outcome string)                                      {}
func (n *NoopSink) EventsInFlightIncr()                                                {}
func (n *NoopSink) EventsInFlightDecr()                                                {}
func (n *NoopSink) BufferSizeUpdate(size int)                                          {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                     {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64)                          {}
func (n *NoopSink) EmitError()                                                         {}
func (n *NoopSink) PruneStarted()                                                      {}
func (n *NoopSink) PruneCompleted(duration time.Duration, deleted int64, err error)    {}
func (n *NoopSink) TickDrift(drift time.Duration)                                      {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                                  {}
func (n *NoopSink) LeaderAcquired()                                                    {}
func (n *NoopSink) LeaderLost(reason string)                                           {}
func (n *NoopSink) RequestCompleted(route, statusClass string, duration time.Duration) {}
