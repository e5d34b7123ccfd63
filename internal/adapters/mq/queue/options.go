package queue

import (
	"time"

	"github.com/okian/pokerank/pkg/clock"
	"github.com/okian/pokerank/pkg/logger"
)

// Option applies a configuration option to the CoalescingQueue.
type Option func(*CoalescingQueue)

// WithCapacity sets how many operations may wait before a flush is forced.
func WithCapacity(capacity int) Option {
	return func(q *CoalescingQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithWindow sets the debounce window.
func WithWindow(d time.Duration) Option {
	return func(q *CoalescingQueue) {
		if d > 0 {
			q.window = d
		}
	}
}

// WithClock sets the clock driving the debounce timer.
func WithClock(c clock.Clock) Option {
	return func(q *CoalescingQueue) {
		if c != nil {
			q.clock = c
		}
	}
}

// WithLogger sets the queue logger.
func WithLogger(l logger.Logger) Option {
	return func(q *CoalescingQueue) {
		if l != nil {
			q.log = l
		}
	}
}
