// Package worker runs background persistence of rating snapshots.
package worker

import (
	"time"

	"github.com/okian/pokerank/pkg/logger"
)

// Option applies a configuration option to the Syncer.
type Option func(*Syncer)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(s *Syncer) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebounce sets how long the worker waits for more changes before saving.
func WithDebounce(d time.Duration) Option {
	return func(s *Syncer) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// WithRetry sets the retry budget and the initial backoff, which doubles per attempt.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(s *Syncer) {
		if maxRetries >= 0 {
			s.maxRetries = maxRetries
		}
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

// WithRecoveryInterval sets how long Run waits before saving again once a
// save has used up its retries.
func WithRecoveryInterval(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.recovery = d
		}
	}
}
