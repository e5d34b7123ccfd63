package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/pkg/logger"
	"github.com/okian/pokerank/pkg/metrics"
)

// Default syncer configuration constants.
const (
	defaultDebounce   = 500 * time.Millisecond
	defaultMaxRetries = 3
	defaultBackoff    = 200 * time.Millisecond
	defaultRecovery   = 5 * time.Second
)

// Source provides the records to persist.
type Source interface {
	Records(ctx context.Context) map[model.ItemID]model.Record
}

// Saver persists a session snapshot.
type Saver interface {
	Save(ctx context.Context, sessionID string, records map[model.ItemID]model.Record) error
}

// Worker is a background loop with graceful shutdown.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the loop after a final save of unsaved changes.
	Shutdown(ctx context.Context) error
}

// Syncer saves the rating state after changes, coalescing bursts of change
// notifications into one save. Failures are retried with backoff and never
// reach the caller of Notify.
type Syncer struct {
	source    Source
	saver     Saver
	sessionID string
	name      string

	debounce   time.Duration
	maxRetries int
	backoff    time.Duration
	recovery   time.Duration

	signal       chan struct{}
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	dirty        atomic.Bool

	saves    atomic.Int64
	failures atomic.Int64

	logger logger.Logger
}

var _ Worker = (*Syncer)(nil)

// NewSyncer creates a syncer for one session.
func NewSyncer(source Source, saver Saver, sessionID string, opts ...Option) *Syncer {
	s := &Syncer{
		source:     source,
		saver:      saver,
		sessionID:  sessionID,
		name:       "syncer",
		debounce:   defaultDebounce,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		recovery:   defaultRecovery,
		signal:     make(chan struct{}, 1),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named(s.name)
	return s
}

// Notify marks the state dirty and wakes the loop. It never blocks.
// Its signature matches repository.Listener.
func (s *Syncer) Notify(_ context.Context) {
	s.dirty.Store(true)
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Run starts the worker loop.
func (s *Syncer) Run(ctx context.Context) {
	defer close(s.done)
	defer s.finalSave(context.WithoutCancel(ctx))

	// retryAt fires once after a save exhausted its retries, so unsaved state
	// is written even if the store never changes again.
	var retryAt <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-retryAt:
			retryAt = nil
			if !s.dirty.Load() {
				continue
			}
		case <-s.signal:
			if !s.wait(ctx) {
				return
			}
		}
		if err := s.SaveNow(ctx); err != nil {
			s.logger.Error(ctx, "sync failed", logger.Error(err),
				logger.String("session_id", s.sessionID),
				logger.Duration("next_attempt", s.recovery))
			retryAt = time.After(s.recovery)
			continue
		}
		retryAt = nil
	}
}

// wait lets further changes accumulate. It reports false when the loop should stop.
func (s *Syncer) wait(ctx context.Context) bool {
	if s.debounce <= 0 {
		return true
	}
	t := time.NewTimer(s.debounce)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.shutdown:
		return false
	}
}

func (s *Syncer) finalSave(ctx context.Context) {
	if !s.dirty.Load() {
		return
	}
	if err := s.SaveNow(ctx); err != nil {
		s.logger.Error(ctx, "final sync failed", logger.Error(err), logger.String("session_id", s.sessionID))
	}
}

// SaveNow saves the current state, retrying with backoff. On failure the
// state stays dirty; Run tries again after the recovery interval, on the next
// change, or at shutdown, whichever comes first.
func (s *Syncer) SaveNow(ctx context.Context) error {
	s.dirty.Store(false)
	records := s.source.Records(ctx)

	delay := s.backoff
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordSyncRetry()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				s.dirty.Store(true)
				return fmt.Errorf("sync cancelled after %d attempts: %w", attempt, ctx.Err())
			}
			delay *= 2
		}

		start := time.Now()
		err = s.saver.Save(ctx, s.sessionID, records)
		if err == nil {
			s.saves.Add(1)
			metrics.RecordSyncSave(float64(time.Since(start).Microseconds()) / 1000)
			s.logger.Debug(ctx, "ratings saved", logger.Int("items", len(records)), logger.Int("attempt", attempt+1))
			return nil
		}
		s.failures.Add(1)
		metrics.RecordSyncError()
		metrics.RecordErrorByComponent("worker", "save_failed")
		s.logger.Warn(ctx, "save attempt failed", logger.Error(err), logger.Int("attempt", attempt+1))
	}
	s.dirty.Store(true)
	return fmt.Errorf("save after %d attempts: %w", s.maxRetries+1, err)
}

// Shutdown gracefully stops the worker.
func (s *Syncer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdown) })

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Saves returns the number of successful saves.
func (s *Syncer) Saves() int64 { return s.saves.Load() }

// Failures returns the number of failed save attempts.
func (s *Syncer) Failures() int64 { return s.failures.Load() }

// Dirty reports whether there are unsaved changes.
func (s *Syncer) Dirty() bool { return s.dirty.Load() }
