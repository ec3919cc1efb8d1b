// Package observer removes the views of deleted subjects.
//
// Owners of subjects emit domain.SubjectDeleted events onto a channel; the
// Observer consumes them and deletes the matching view records unless the
// event opts out.
package observer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/djlord-it/easy-views/internal/domain"
)

// DefaultDrainTimeout is the maximum time to wait for buffered events during shutdown.
const DefaultDrainTimeout = 30 * time.Second

// Deleter removes a subject's views. Subjects implementing
// domain.ViewRetainer may be skipped by the implementation.
type Deleter interface {
	SubjectDeleted(ctx context.Context, subject domain.Subject) (int64, error)
}

// MetricsSink defines the interface for recording observer metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	EventProcessed(outcome string)
	EventsInFlightIncr()
	EventsInFlightDecr()
}

// Outcomes reported to MetricsSink.EventProcessed.
const (
	OutcomeDeleted  = "deleted"
	OutcomeRetained = "retained"
	OutcomeFailed   = "failed"
)

type Observer struct {
	deleter      Deleter
	drainTimeout time.Duration
	metrics      MetricsSink // optional, nil = disabled
}

func New(deleter Deleter) *Observer {
	return &Observer{
		deleter:      deleter,
		drainTimeout: DefaultDrainTimeout,
	}
}

// WithDrainTimeout overrides how long shutdown waits for buffered events.
func (o *Observer) WithDrainTimeout(d time.Duration) *Observer {
	if d > 0 {
		o.drainTimeout = d
	}
	return o
}

// WithMetrics attaches a metrics sink to the observer.
func (o *Observer) WithMetrics(sink MetricsSink) *Observer {
	o.metrics = sink
	return o
}

// Run processes events from the channel until context is cancelled.
// After cancellation, it drains remaining buffered events with a timeout.
func (o *Observer) Run(ctx context.Context, ch <-chan domain.SubjectDeleted) {
	for {
		select {
		case <-ctx.Done():
			o.drain(ch)
			return
		case event, ok := <-ch:
			if !ok {
				log.Println("observer: channel closed")
				return
			}
			if err := o.Handle(ctx, event); err != nil {
				log.Printf("observer: error: %v", err)
			}
		}
	}
}

// drain processes remaining events in the channel buffer after shutdown signal.
// Uses a background context since the main context is already cancelled.
func (o *Observer) drain(ch <-chan domain.SubjectDeleted) {
	drainCtx, cancel := context.WithTimeout(context.Background(), o.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("observer: drain timeout, processed %d events", count)
			}
			return
		case event, ok := <-ch:
			if !ok {
				log.Printf("observer: drain complete, processed %d events", count)
				return
			}
			if err := o.Handle(drainCtx, event); err != nil {
				log.Printf("observer: drain error: %v", err)
			}
			count++
		default:
			// No more buffered events
			if count > 0 {
				log.Printf("observer: drain complete, processed %d events", count)
			}
			return
		}
	}
}

// Handle processes one deletion event.
func (o *Observer) Handle(ctx context.Context, event domain.SubjectDeleted) error {
	if o.metrics != nil {
		o.metrics.EventsInFlightIncr()
		defer o.metrics.EventsInFlightDecr()
	}

	subject := event.Subject
	if event.RetainViews {
		o.processed(OutcomeRetained)
		log.Printf("observer: event=%s subject=%s/%s retains its views", event.ID, subject.Type, subject.ID)
		return nil
	}

	n, err := o.deleter.SubjectDeleted(ctx, subject)
	if err != nil {
		o.processed(OutcomeFailed)
		return fmt.Errorf("event %s: delete views of %s/%s: %w", event.ID, subject.Type, subject.ID, err)
	}

	o.processed(OutcomeDeleted)
	log.Printf("observer: event=%s subject=%s/%s deleted %d views", event.ID, subject.Type, subject.ID, n)
	return nil
}

func (o *Observer) processed(outcome string) {
	if o.metrics != nil {
		o.metrics.EventProcessed(outcome)
	}
}
