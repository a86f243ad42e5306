package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a resettable id sequence for tests.
// It satisfies history.Sequencer; the first Next returns 1.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock starting at 0.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last issued number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next call to Next returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// SteppingTime is a fake wall clock. Every call to Now returns the previous
// instant plus Step, so durations measured with it are exact.
type SteppingTime struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// Epoch is the first instant returned by a SteppingTime created with a zero start.
var Epoch = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

// NewSteppingTime returns a clock whose first Now is start (Epoch if zero).
func NewSteppingTime(start time.Time, step time.Duration) *SteppingTime {
	if start.IsZero() {
		start = Epoch
	}
	return &SteppingTime{next: start, step: step}
}

// Now returns the current fake instant and advances by one step.
func (s *SteppingTime) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next = s.next.Add(s.step)
	return t
}
