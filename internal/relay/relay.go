// Package relay connects the capture callback to the engine and the broker.
// Decisions are handed to a publisher goroutine through a bounded queue, so
// a slow or stalled broker costs forwarded ticks, never capture latency.
package relay

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/sweeney/scroll-stabilizer/internal/engine"
	"github.com/sweeney/scroll-stabilizer/internal/logic"
	"github.com/sweeney/scroll-stabilizer/internal/mqtt"
)

// DefaultQueueSize bounds the decisions waiting for the publisher goroutine.
const DefaultQueueSize = 256

// Relay runs ticks through the engine and forwards the decisions.
type Relay struct {
	engine    *engine.Engine
	publisher mqtt.Publisher
	queue     chan logic.Decision

	// forward suppressed ticks as well
	publishSuppressed bool

	dropped atomic.Uint64
}

// New creates a Relay. A queueSize <= 0 uses DefaultQueueSize.
func New(eng *engine.Engine, pub mqtt.Publisher, queueSize int, publishSuppressed bool) *Relay {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Relay{
		engine:            eng,
		publisher:         pub,
		queue:             make(chan logic.Decision, queueSize),
		publishSuppressed: publishSuppressed,
	}
}

// Handle is the capture callback. It never waits on the publisher: when
// the queue is full the decision is dropped and counted.
func (r *Relay) Handle(ev logic.ScrollEvent) logic.Verdict {
	d := r.engine.Process(ev)
	if d.Verdict == logic.Suppress {
		log.Printf("suppressed: %s (%s)", ev.Direction, d.Status)
	}
	if d.Verdict != logic.Pass && !r.publishSuppressed {
		return d.Verdict
	}

	select {
	case r.queue <- d:
	default:
		if r.dropped.Add(1) == 1 {
			log.Printf("relay: publish queue full (%d), dropping ticks", cap(r.queue))
		}
	}
	return d.Verdict
}

// Run publishes queued decisions until ctx is cancelled, then publishes
// whatever is still queued.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.Flush()
			return nil
		case d := <-r.queue:
			r.publish(d)
		}
	}
}

// Flush publishes every decision queued so far and returns.
func (r *Relay) Flush() {
	for {
		select {
		case d := <-r.queue:
			r.publish(d)
		default:
			return
		}
	}
}

func (r *Relay) publish(d logic.Decision) {
	if err := r.publisher.Publish(d); err != nil {
		log.Printf("publish error: %v", err)
	}
}

// Pending returns how many decisions wait for the publisher goroutine.
func (r *Relay) Pending() int {
	return len(r.queue)
}

// Dropped returns how many decisions were discarded on a full queue.
func (r *Relay) Dropped() uint64 {
	return r.dropped.Load()
}
