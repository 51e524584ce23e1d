package event

import (
	"sync/atomic"
)

// Default queue depth. Sized for the worst case of a full GATT exchange
// (connect, challenge, response, control, disconnect) plus timer expiries
// arriving before the loop drains.
const queueDepth = 16

// Queue is a bounded multi-producer single-consumer event queue. Posts never
// block: when the queue is full the event is dropped and counted, because an
// interrupt-context producer must not wait on the main loop. A dropped event
// is always safe here — every producer-side condition that matters re-arises
// (timer expiries re-derive from deadlines, disconnects are terminal) and
// the state machine's fail-safe default is to remain locked.
type Queue struct {
	ch      chan Event
	dropped atomic.Uint32
}

func NewQueue() *Queue {
	return &Queue{ch: make(chan Event, queueDepth)}
}

// Post enqueues ev without blocking. Returns false if the queue was full and
// the event was dropped.
func (q *Queue) Post(ev Event) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Events exposes the consumer side of the queue. Only the main loop may
// receive from it.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Dropped returns the number of events discarded because the queue was full.
func (q *Queue) Dropped() uint32 {
	return q.dropped.Load()
}
