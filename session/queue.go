// Package session manages backtest sessions: creation, the per-session
// event queue bridging engine and stream consumer, cancellation, and
// eviction.
package session

import (
	"sync"
	"time"

	"backtestd/sim"
)

// Streaming contract constants shared by every consumer.
const (
	// DrainTimeout bounds each wait for the next event; on expiry the
	// consumer may emit a keepalive.
	DrainTimeout = time.Second

	// MaxIdlePolls is how many consecutive empty waits a consumer
	// tolerates before declaring the session dead.
	MaxIdlePolls = 30
)

// Queue is the ordered, unbounded event channel between one engine
// (producer) and one stream consumer. Push never blocks, so a slow or
// absent consumer cannot stall the simulation.
type Queue struct {
	mu    sync.Mutex
	items []sim.Event
	wake  chan struct{} // buffered 1; single consumer
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends an event, preserving emission order.
func (q *Queue) Push(e sim.Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest event, waiting up to timeout for one
// to arrive. The second return value is false on timeout.
func (q *Queue) Pop(timeout time.Duration) (sim.Event, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return e, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-deadline.C:
			return nil, false
		}
	}
}

// Len reports how many events are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
