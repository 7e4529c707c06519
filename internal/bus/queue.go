package bus

import (
	"errors"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)

// Queue is a bounded message queue with a timeout-bounded pop. One
// producer and one consumer per queue; the pop timeout is the only
// blocking surface exposed to the consumer's scheduler.
type Queue[T any] struct {
	ch     chan T
	closed atomic.Bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Push enqueues, blocking while the queue is full.
func (q *Queue[T]) Push(v T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	q.ch <- v
	return nil
}

// TryPush enqueues without blocking.
func (q *Queue[T]) TryPush(v T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case q.ch <- v:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop dequeues, waiting at most timeout. ok is false on timeout or when
// the queue is closed and drained.
func (q *Queue[T]) Pop(timeout time.Duration) (v T, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v, ok = <-q.ch:
		return v, ok
	case <-timer.C:
		return v, false
	}
}

// PopWait dequeues, blocking until a value arrives or the queue is
// closed and drained.
func (q *Queue[T]) PopWait() (v T, ok bool) {
	v, ok = <-q.ch
	return v, ok
}

// Len returns the number of buffered messages.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new messages. Buffered messages
// remain poppable.
func (q *Queue[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}
