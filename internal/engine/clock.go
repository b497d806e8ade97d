package engine

import "sync/atomic"

// Sequencer hands out strictly increasing logical seqs.
// Implemented by Clock and by testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock for gesture ordering.
//
// Every applied gesture is stamped with the next seq. Wall-clock time is
// never used for ordering, so a replayed journal keeps its order.
//
// Clock is safe for concurrent use, although only the engine's writer
// calls Next in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific seq.
// Used to resume a journal loaded from the store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued seq without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
