// Package outbound is the multi-producer single-consumer bounded queue
// connecting the agent orchestrator (and the message tool) to channel
// adapters: producers use a non-blocking try-send and get an explicit
// buffer-full error back rather than blocking.
package outbound

import (
	"errors"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// ErrBufferFull is returned by TrySend when the queue has no free capacity.
var ErrBufferFull = errors.New("buffer full")

// ErrClosed is returned by TrySend once the queue has been closed.
var ErrClosed = errors.New("channel closed")

// Queue is a bounded channel of OutboundMessage with a non-blocking
// producer side.
type Queue struct {
	ch     chan models.OutboundMessage
	closed chan struct{}
}

// NewQueue creates a queue with the given buffer capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{
		ch:     make(chan models.OutboundMessage, capacity),
		closed: make(chan struct{}),
	}
}

// TrySend enqueues msg without blocking. Returns ErrBufferFull if the queue
// is at capacity, ErrClosed if the queue has been closed.
func (q *Queue) TrySend(msg models.OutboundMessage) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// Recv returns the queue's receive side, for the single consumer (the
// daemon supervisor's channel dispatch loop).
func (q *Queue) Recv() <-chan models.OutboundMessage { return q.ch }

// Close marks the queue closed. Further TrySend calls return ErrClosed.
// Safe to call once; the channel itself is left open so in-flight receives
// can drain.
func (q *Queue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}
