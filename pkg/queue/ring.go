package queue

import (
	plumber "github.com/MostlyMax/plumber-queue"
)

// Ring is a bounded MPMC FIFO of messages. Producers treat it as a
// real-time buffer: Push never blocks and evicts the oldest entry when
// the ring is full. Consumers poll with Pop, which never blocks either.
//
// The ring is backed by a buffered channel, which gives FIFO ordering
// and safe concurrent access from any number of producer and consumer
// goroutines without a lock around the hot path.
type Ring struct {
	ch chan plumber.Message
}

// New creates a ring holding at most capacity messages.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{ch: make(chan plumber.Message, capacity)}
}

// Push appends msg to the ring. When the ring is full the oldest entry
// is dropped to make room; the dropped message is returned with
// evicted=true. A racing consumer can empty the ring between the failed
// append and the drop, in which case nothing is evicted.
func (r *Ring) Push(msg plumber.Message) (old plumber.Message, evicted bool) {
	for {
		select {
		case r.ch <- msg:
			return old, evicted
		default:
		}
		select {
		case old = <-r.ch:
			evicted = true
		default:
		}
	}
}

// Pop removes and returns the oldest message. ok is false when the
// ring is empty.
func (r *Ring) Pop() (plumber.Message, bool) {
	select {
	case msg := <-r.ch:
		return msg, true
	default:
		return plumber.Message{}, false
	}
}

// Len returns the number of buffered messages.
func (r *Ring) Len() int { return len(r.ch) }

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return cap(r.ch) }
