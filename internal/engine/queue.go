package engine

import "sync"

// submission is a gesture waiting for the Run loop, plus where to send
// its outcome.
type submission struct {
	gesture Gesture
	reply   chan Outcome
}

// gestureQueue is a thread-safe, unbounded FIFO of submissions.
//
// The queue uses a buffered signal channel so the Run loop can wait on it
// in a select alongside ctx.Done().
type gestureQueue struct {
	mu      sync.Mutex
	pending []submission
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newGestureQueue() *gestureQueue {
	return &gestureQueue{
		pending: make([]submission, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends a submission. Returns false if the queue is closed.
func (q *gestureQueue) Enqueue(s submission) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.pending = append(q.pending, s)

	// Non-blocking: the size-1 buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front submission without blocking.
func (q *gestureQueue) TryDequeue() (submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return submission{}, false
	}

	s := q.pending[0]
	q.pending[0] = submission{} // release the reply channel for GC

	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}

	return s, true
}

// Wait returns a channel that fires when submissions may be available.
// It is closed when the queue is closed.
func (q *gestureQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending submissions.
func (q *gestureQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting submissions and wakes any waiter.
func (q *gestureQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *gestureQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
