package history

import "sync/atomic"

// Sequencer hands out entry ids. Each call returns a unique, increasing value.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock for history entry ids.
//
// Ids are never reused, not even after Clear, so a replay request for an id
// from before a reset cannot resolve to a newer entry.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0. The first id is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next id and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last id handed out without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
