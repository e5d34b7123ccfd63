// Package queue implements the debounced, coalescing reconciliation queue.
//
// Operations collect during a trailing debounce window. On flush the pending
// slice is detached, so anything enqueued while the handler runs belongs to
// the next window, and only the newest operation per item is handed on.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/pkg/clock"
	"github.com/okian/pokerank/pkg/logger"
	"github.com/okian/pokerank/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultWindow   = 100 * time.Millisecond
	defaultCapacity = 1024
)

// Flush triggers, used as metric labels.
const (
	triggerDebounce = "debounce"
	triggerCapacity = "capacity"
	triggerManual   = "manual"
)

// Handler consumes a coalesced batch.
type Handler interface {
	HandleBatch(ctx context.Context, ops []model.PendingOperation) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ops []model.PendingOperation) error

// HandleBatch implements Handler.
func (f HandlerFunc) HandleBatch(ctx context.Context, ops []model.PendingOperation) error {
	return f(ctx, ops)
}

// CoalescingQueue is a debounced queue with a single timer.
type CoalescingQueue struct {
	handler  Handler
	clock    clock.Clock
	window   time.Duration
	capacity int
	log      logger.Logger

	mu      sync.Mutex
	pending []model.PendingOperation
	timer   clock.Timer
	gen     uint64
	trigger string
	closed  bool
	// inFlight counts detached batches whose handler has not returned.
	inFlight int

	// flushMu keeps flush cycles from overlapping.
	flushMu sync.Mutex
}

// NewCoalescingQueue creates a queue delivering batches to h.
func NewCoalescingQueue(h Handler, opts ...Option) *CoalescingQueue {
	q := &CoalescingQueue{
		handler:  h,
		clock:    clock.Real(),
		window:   defaultWindow,
		capacity: defaultCapacity,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueLength(0)
	return q
}

// Enqueue adds op and re-arms the debounce timer. Reaching capacity arms an
// immediate flush instead of dropping anything.
func (q *CoalescingQueue) Enqueue(_ context.Context, op model.PendingOperation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	q.pending = append(q.pending, op)
	metrics.UpdateQueueLength(len(q.pending))

	delay, trigger := q.window, triggerDebounce
	if len(q.pending) >= q.capacity {
		delay, trigger = 0, triggerCapacity
	}
	q.armLocked(delay, trigger)
	return nil
}

// armLocked replaces the single timer. Caller holds mu.
func (q *CoalescingQueue) armLocked(d time.Duration, trigger string) {
	if q.timer != nil {
		q.timer.Stop()
	}
	q.gen++
	gen := q.gen
	q.trigger = trigger
	q.timer = q.clock.AfterFunc(d, func() { q.fire(gen) })
}

func (q *CoalescingQueue) fire(gen uint64) {
	q.mu.Lock()
	if gen != q.gen || q.closed {
		q.mu.Unlock()
		return
	}
	q.timer = nil
	trigger := q.trigger
	q.mu.Unlock()

	q.flush(context.Background(), trigger)
}

// Flush synchronously drains whatever is pending.
func (q *CoalescingQueue) Flush(ctx context.Context) error {
	return q.flush(ctx, triggerManual)
}

func (q *CoalescingQueue) flush(ctx context.Context, trigger string) error {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.gen++
	batch := q.pending
	q.pending = nil
	if len(batch) > 0 {
		q.inFlight++
	}
	q.mu.Unlock()
	metrics.UpdateQueueLength(0)

	if len(batch) == 0 {
		return nil
	}
	defer func() {
		q.mu.Lock()
		q.inFlight--
		q.mu.Unlock()
	}()

	ops := Coalesce(batch)
	dropped := len(batch) - len(ops)
	for i := 0; i < dropped; i++ {
		metrics.RecordStaleOperationDropped()
	}
	metrics.RecordBatchFlush(trigger, len(ops), dropped)
	q.log.Debug(ctx, "flushing batch",
		logger.String("trigger", trigger),
		logger.Int("received", len(batch)),
		logger.Int("coalesced", len(ops)))

	start := time.Now()
	err := q.handler.HandleBatch(ctx, ops)
	metrics.RecordFlushLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordErrorByComponent("queue", "handler")
		q.log.Error(ctx, "batch handler failed", logger.Error(err), logger.Int("ops", len(ops)))
	}
	return err
}

// Coalesce keeps the newest operation per item (latest RequestedAt, ties go to
// the later enqueue). Survivors keep the order in which their item first appeared.
func Coalesce(batch []model.PendingOperation) []model.PendingOperation {
	latest := make(map[model.ItemID]int, len(batch))
	var firstSeen []model.ItemID
	for i, op := range batch {
		j, ok := latest[op.ItemID]
		if !ok {
			firstSeen = append(firstSeen, op.ItemID)
			latest[op.ItemID] = i
			continue
		}
		if !op.RequestedAt.Before(batch[j].RequestedAt) {
			latest[op.ItemID] = i
		}
	}
	out := make([]model.PendingOperation, 0, len(firstSeen))
	for _, id := range firstSeen {
		out = append(out, batch[latest[id]])
	}
	return out
}

// Len returns the number of operations waiting, before coalescing.
func (q *CoalescingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Busy reports whether operations are waiting or a detached batch is still
// being handled.
func (q *CoalescingQueue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0 || q.inFlight > 0
}

// Close stops the timer and rejects further enqueues. Operations still
// waiting are discarded; call Flush first to keep them.
func (q *CoalescingQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	if n := len(q.pending); n > 0 {
		q.log.Warn(context.Background(), "queue closed with pending operations", logger.Int("discarded", n))
	}
	q.pending = nil
	metrics.UpdateQueueLength(0)
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *CoalescingQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
