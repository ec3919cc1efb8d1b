package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Engine metrics
	viewsRecordedTotal  *prometheus.CounterVec
	viewsRejectedTotal  *prometheus.CounterVec
	countsTotal         *prometheus.CounterVec
	countDuration       prometheus.Histogram
	viewsDestroyedTotal prometheus.Counter

	// Observer metrics
	eventsProcessedTotal *prometheus.CounterVec
	eventsInFlight       prometheus.Gauge

	// EventBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter

	// Retention metrics
	pruneRunsTotal   prometheus.Counter
	pruneErrorsTotal prometheus.Counter
	prunedViewsTotal prometheus.Counter
	pruneDuration    prometheus.Histogram
	pruneTickDrift   prometheus.Histogram

	// Leader election metrics
	leaderStatus        prometheus.Gauge
	leaderAcquiredTotal prometheus.Counter
	leaderLostTotal     *prometheus.CounterVec

	// API metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
// Metrics that fail to register keep working but are not exported.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initEngineMetrics(reg)
	s.initObserverMetrics(reg)
	s.initEventBusMetrics(reg)
	s.initRetentionMetrics(reg)
	s.initLeaderMetrics(reg)
	s.initAPIMetrics(reg)
	return s
}

func (s *PrometheusSink) initEngineMetrics(reg prometheus.Registerer) {
	s.viewsRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyviews_views_recorded_total",
		Help: "Total number of views recorded, by subject type.",
	}, []string{"subject_type"})
	s.viewsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyviews_views_rejected_total",
		Help: "Total number of views skipped by a guard or cooldown.",
	}, []string{"reason"})
	s.countsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyviews_counts_total",
		Help: "Total number of counts served, by cache result.",
	}, []string{"cache"})
	s.countDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyviews_count_duration_seconds",
		Help:    "Duration of view counts in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	s.viewsDestroyedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyviews_views_destroyed_total",
		Help: "Total number of view records deleted by destroy.",
	})

	s.register(reg, s.viewsRecordedTotal, "easyviews_views_recorded_total")
	s.register(reg, s.viewsRejectedTotal, "easyviews_views_rejected_total")
	s.register(reg, s.countsTotal, "easyviews_counts_total")
	s.register(reg, s.countDuration, "easyviews_count_duration_seconds")
	s.register(reg, s.viewsDestroyedTotal, "easyviews_views_destroyed_total")
}

func (s *PrometheusSink) initObserverMetrics(reg prometheus.Registerer) {
	s.eventsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyviews_observer_events_processed_total",
		Help: "Total number of subject deletion events processed, by outcome.",
	}, []string{"outcome"})
	s.eventsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyviews_observer_events_in_flight",
		Help: "Number of events currently being processed.",
	})

	s.register(reg, s.eventsProcessedTotal, "easyviews_observer_events_processed_total")
	s.register(reg, s.eventsInFlight, "easyviews_observer_events_in_flight")
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyviews_eventbus_buffer_size",
		Help: "Current number of events in the event bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyviews_eventbus_buffer_capacity",
		Help: "Capacity of the event bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyviews_eventbus_buffer_saturation",
		Help: "Fraction of the event bus buffer in use (0 to 1).",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyviews_eventbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "easyviews_eventbus_buffer_size")
	s.register(reg, s.bufferCapacity, "easyviews_eventbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "easyviews_eventbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "easyviews_eventbus_emit_errors_total")
}

func (s *PrometheusSink) initRetentionMetrics(reg prometheus.Registerer) {
	s.pruneRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyviews_retention_prune_runs_total",
		Help: "Total number of retention prune runs.",
	})
	s.pruneErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyviews_retention_prune_errors_total",
		Help: "Total number of failed retention prune runs.",
	})
	s.prunedViewsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyviews_retention_pruned_views_total",
		Help: "Total number of view records deleted by retention.",
	})
	s.pruneDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyviews_retention_prune_duration_seconds",
		Help:    "Duration of each prune run in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
	})
	s.pruneTickDrift = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyviews_retention_tick_drift_seconds",
		Help:    "Difference between actual tick time and expected interval in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	s.register(reg, s.pruneRunsTotal, "easyviews_retention_prune_runs_total")
	s.register(reg, s.pruneErrorsTotal, "easyviews_retention_prune_errors_total")
	s.register(reg, s.prunedViewsTotal, "easyviews_retention_pruned_views_total")
	s.register(reg, s.pruneDuration, "easyviews_retention_prune_duration_seconds")
	s.register(reg, s.pruneTickDrift, "easyviews_retention_tick_drift_seconds")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyviews_leader_status",
		Help: "1 if this instance holds the pruner leader lock, 0 otherwise.",
	})
	s.leaderAcquiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyviews_leader_acquired_total",
		Help: "Total number of times leadership was acquired.",
	})
	s.leaderLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyviews_leader_lost_total",
		Help: "Total number of times leadership was lost, by reason.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "easyviews_leader_status")
	s.register(reg, s.leaderAcquiredTotal, "easyviews_leader_acquired_total")
	s.register(reg, s.leaderLostTotal, "easyviews_leader_lost_total")
}

func (s *PrometheusSink) initAPIMetrics(reg prometheus.Registerer) {
	s.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyviews_api_requests_total",
		Help: "Total number of API requests, by route and status class.",
	}, []string{"route", "status_class"})
	s.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "easyviews_api_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"route"})

	s.register(reg, s.requestsTotal, "easyviews_api_requests_total")
	s.register(reg, s.requestDuration, "easyviews_api_request_duration_seconds")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Engine metrics implementation

func (s *PrometheusSink) ViewRecorded(subjectType string) {
	s.viewsRecordedTotal.WithLabelValues(subjectType).Inc()
}

func (s *PrometheusSink) ViewRejected(reason string) {
	s.viewsRejectedTotal.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) CountCompleted(cacheResult string, duration time.Duration) {
	s.countsTotal.WithLabelValues(cacheResult).Inc()
	s.countDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) ViewsDestroyed(count int64) {
	s.viewsDestroyedTotal.Add(float64(count))
}

// Observer metrics implementation

func (s *PrometheusSink) EventProcessed(outcome string) {
	s.eventsProcessedTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) EventsInFlightIncr() {
	s.eventsInFlight.Inc()
}

func (s *PrometheusSink) EventsInFlightDecr() {
	s.eventsInFlight.Dec()
}

// EventBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Retention metrics implementation

func (s *PrometheusSink) PruneStarted() {
	s.pruneRunsTotal.Inc()
}

func (s *PrometheusSink) PruneCompleted(duration time.Duration, deleted int64, err error) {
	s.pruneDuration.Observe(duration.Seconds())
	s.prunedViewsTotal.Add(float64(deleted))
	if err != nil {
		s.pruneErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) TickDrift(drift time.Duration) {
	// Record absolute drift value
	d := drift.Seconds()
	if d < 0 {
		d = -d
	}
	s.pruneTickDrift.Observe(d)
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquiredTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLostTotal.WithLabelValues(reason).Inc()
}

// API metrics implementation

func (s *PrometheusSink) RequestCompleted(route, statusClass string, duration time.Duration) {
	s.requestsTotal.WithLabelValues(route, statusClass).Inc()
	s.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
