// Package app wires the rating engines into the optimistic ranking controller
// and the service that owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pokerank/internal/adapters/catalog"
	"github.com/okian/pokerank/internal/adapters/mq/queue"
	"github.com/okian/pokerank/internal/adapters/repository"
	"github.com/okian/pokerank/internal/domain/dedupe"
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/ordering"
	"github.com/okian/pokerank/internal/domain/pending"
	"github.com/okian/pokerank/internal/domain/reconcile"
	"github.com/okian/pokerank/internal/domain/scoring"
	"github.com/okian/pokerank/internal/domain/types"
	"github.com/okian/pokerank/pkg/clock"
	"github.com/okian/pokerank/pkg/logger"
	"github.com/okian/pokerank/pkg/metrics"
)

const (
	defaultDebounce              = 100 * time.Millisecond
	defaultQueueCapacity         = 1024
	defaultReorderConfirmations  = 2
	defaultInsertConfirmations   = 3
	defaultCompletedBattleMemory = 50000
)

// Result describes the optimistic effect of a drag.
type Result struct {
	NoOp        bool                `json:"no_op"`
	Index       int                 `json:"index"`
	Kind        model.OperationKind `json:"kind"`
	OperationID uuid.UUID           `json:"operation_id"`
}

// ControllerOption applies a configuration option to the Controller.
type ControllerOption func(*Controller)

// WithCatalog restricts accepted ids to the catalog.
func WithCatalog(c *catalog.Catalog) ControllerOption {
	return func(ctl *Controller) {
		if c != nil {
			ctl.catalog = c
		}
	}
}

// WithClock sets the clock driving the debounce timer and operation timestamps.
func WithClock(c clock.Clock) ControllerOption {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithDebounce sets the quiet period before queued reorders are reconciled.
func WithDebounce(d time.Duration) ControllerOption {
	return func(ctl *Controller) {
		if d >= 0 {
			ctl.debounce = d
		}
	}
}

// WithQueueCapacity sets how many queued reorders force an immediate flush.
func WithQueueCapacity(n int) ControllerOption {
	return func(ctl *Controller) {
		if n > 0 {
			ctl.capacity = n
		}
	}
}

// WithConfirmations sets how many completed battles clear a pending marker.
func WithConfirmations(reorder, insert int) ControllerOption {
	return func(ctl *Controller) {
		if reorder > 0 {
			ctl.reorderConfirmations = reorder
		}
		if insert > 0 {
			ctl.insertConfirmations = insert
		}
	}
}

// WithCompletedBattleMemory bounds how many completed battle ids are remembered.
func WithCompletedBattleMemory(n int) ControllerOption {
	return func(ctl *Controller) {
		if n > 0 {
			ctl.dedupeSize = n
		}
	}
}

// WithReconcileParams overrides the placement constants.
func WithReconcileParams(p reconcile.Params) ControllerOption {
	return func(ctl *Controller) {
		ctl.params = &p
	}
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(l logger.Logger) ControllerOption {
	return func(ctl *Controller) {
		if l != nil {
			ctl.log = l
		}
	}
}

// Controller owns the display order and serializes every state transition.
// Drags are applied to the display immediately and reconciled into ratings
// when the debounce window closes.
type Controller struct {
	mu      sync.Mutex
	display []model.ItemID

	store      *repository.RatingStore
	engine     *scoring.Engine
	reconciler *reconcile.Reconciler
	tracker    *pending.Tracker
	completed  dedupe.Deduper
	catalog    *catalog.Catalog
	queue      *queue.CoalescingQueue
	clock      clock.Clock

	params               *reconcile.Params
	debounce             time.Duration
	capacity             int
	dedupeSize           int
	reorderConfirmations int
	insertConfirmations  int

	log logger.Logger
}

var _ queue.Handler = (*Controller)(nil)

// NewController creates a controller over store. The display order starts as
// the derived ranking of whatever store already holds.
func NewController(ctx context.Context, store *repository.RatingStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:                store,
		tracker:              pending.NewTracker(),
		catalog:              catalog.Empty(),
		clock:                clock.Real(),
		debounce:             defaultDebounce,
		capacity:             defaultQueueCapacity,
		dedupeSize:           defaultCompletedBattleMemory,
		reorderConfirmations: defaultReorderConfirmations,
		insertConfirmations:  defaultInsertConfirmations,
		log:                  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	params := reconcile.DefaultParams()
	if c.params != nil {
		params = *c.params
	}
	c.reconciler = reconcile.New(store, reconcile.WithParams(params), reconcile.WithLogger(c.log))
	c.engine = scoring.NewEngine(store,
		scoring.WithMinSigma(c.reconciler.Params().MinSigma),
		scoring.WithLogger(c.log))
	c.completed = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(c.dedupeSize))
	c.queue = queue.NewCoalescingQueue(c,
		queue.WithWindow(c.debounce),
		queue.WithCapacity(c.capacity),
		queue.WithClock(c.clock),
		queue.WithLogger(c.log))
	c.display = store.Order(ctx)
	return c
}

// DragStart marks id pending as soon as the user picks it up.
func (c *Controller) DragStart(ctx context.Context, id model.ItemID) error {
	if err := c.resolve(id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.reorderConfirmations
	if ordering.IndexOf(c.display, id) < 0 {
		n = c.insertConfirmations
	}
	c.tracker.MarkPending(id, n)
	c.log.Debug(ctx, "drag started", logger.String("item_id", string(id)))
	return nil
}

// DragEnd applies a drag to the display order and queues its reconciliation.
// Dropping an item where it already is changes nothing.
func (c *Controller) DragEnd(ctx context.Context, id model.ItemID, src, dst int) (Result, error) {
	if err := c.resolve(id); err != nil {
		return Result{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	kind := model.KindReorder
	cur := ordering.IndexOf(c.display, id)
	if cur < 0 {
		kind = model.KindInsert
	} else if cur == ordering.Clamp(dst, len(c.display)) {
		metrics.RecordReorderNoop()
		return Result{NoOp: true, Index: cur, Kind: kind}, nil
	}
	if c.queue.IsClosed() {
		return Result{}, fmt.Errorf("drag %q: %w", id, queue.ErrClosed)
	}

	pos, err := c.applyOptimistic(ctx, id, dst)
	if err != nil {
		return Result{}, err
	}

	op := model.NewPendingOperation(id, src, pos, c.clock.Now(), kind)
	if err := c.queue.Enqueue(ctx, op); err != nil {
		return Result{}, fmt.Errorf("enqueue %q: %w", id, err)
	}

	n := c.reorderConfirmations
	if kind == model.KindInsert {
		n = c.insertConfirmations
	}
	c.tracker.MarkPending(id, n)
	metrics.RecordReorderRequested()
	c.log.Debug(ctx, "drag applied",
		logger.String("item_id", string(id)),
		logger.String("kind", string(kind)),
		logger.Int("source", src),
		logger.Int("destination", pos))
	return Result{Index: pos, Kind: kind, OperationID: op.ID}, nil
}

// applyOptimistic seeds id if it is new and splices it into the display at
// dst. It returns the clamped position. Caller holds mu.
func (c *Controller) applyOptimistic(ctx context.Context, id model.ItemID, dst int) (int, error) {
	if _, err := c.store.Seed(ctx, id); err != nil {
		return 0, fmt.Errorf("seed %q: %w", id, err)
	}
	display, pos := ordering.Move(c.display, id, dst)
	c.display = display
	return pos, nil
}

// HandleBatch reconciles a flushed batch of drags. It implements queue.Handler.
func (c *Controller) HandleBatch(ctx context.Context, ops []model.PendingOperation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconcileBatch(ctx, ops)
}

// reconcileBatch places every operation's item at its live display position
// inside one store batch. Caller holds mu.
func (c *Controller) reconcileBatch(ctx context.Context, ops []model.PendingOperation) error {
	c.store.StartBatch()
	defer c.store.EndBatch(ctx)

	var errs []error
	for _, op := range ops {
		idx := ordering.IndexOf(c.display, op.ItemID)
		if idx < 0 {
			metrics.RecordStaleOperationDropped()
			c.log.Debug(ctx, "dropping operation for removed item",
				logger.String("item_id", string(op.ItemID)),
				logger.String("operation_id", op.ID.String()))
			continue
		}
		if _, err := c.reconciler.Reconcile(ctx, c.display, idx); err != nil {
			errs = append(errs, fmt.Errorf("reconcile %q: %w", op.ItemID, err))
		}
	}
	c.display = ordering.Merge(c.display, c.store.Order(ctx))
	return errors.Join(errs...)
}

// ResolveBattle applies a battle outcome immediately.
func (c *Controller) ResolveBattle(ctx context.Context, b model.Battle) (scoring.Outcome, error) {
	for _, id := range b.Participants() {
		if err := c.resolve(id); err != nil {
			return scoring.Outcome{}, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.engine.Resolve(ctx, b)
	if err != nil {
		return scoring.Outcome{}, err
	}
	c.resyncLocked(ctx)
	return out, nil
}

// BattleScheduled records that a battle was queued. It never confirms anything.
func (c *Controller) BattleScheduled(ctx context.Context, n model.BattleNotice) error {
	if n.BattleID == "" {
		return ErrMissingBattleID
	}
	c.tracker.NoteScheduled(n.ItemIDs)
	metrics.RecordBattleScheduled()
	c.log.Debug(ctx, "battle scheduled",
		logger.String("battle_id", n.BattleID),
		logger.Int("items", len(n.ItemIDs)))
	return nil
}

// BattleCompleted consumes one confirmation per participant. A battle id is
// applied at most once; it returns false for a repeated report.
func (c *Controller) BattleCompleted(ctx context.Context, n model.BattleNotice) (bool, error) {
	if n.BattleID == "" {
		return false, ErrMissingBattleID
	}
	if c.completed.SeenAndRecord(ctx, n.BattleID) {
		metrics.RecordDuplicateCompletion()
		c.log.Debug(ctx, "duplicate battle completion", logger.String("battle_id", n.BattleID))
		return false, nil
	}
	for _, id := range n.ItemIDs {
		c.tracker.ConfirmOne(id)
	}
	return true, nil
}

// SubmitVote moves an item up or down by the vote strength.
func (c *Controller) SubmitVote(ctx context.Context, v model.Vote) (reconcile.Plan, error) {
	if err := c.resolve(v.ItemID); err != nil {
		return reconcile.Plan{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.reconciler.Vote(ctx, c.display, v)
	switch {
	case errors.Is(err, reconcile.ErrNotInOrder):
		return reconcile.Plan{}, fmt.Errorf("vote %q: %w", v.ItemID, ErrNotRanked)
	case err != nil:
		return reconcile.Plan{}, err
	}
	c.resyncLocked(ctx)
	return p, nil
}

// RemoveItem takes id out of the ranked set. Queued drags for it are dropped
// when they are flushed.
func (c *Controller) RemoveItem(ctx context.Context, id model.ItemID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	inDisplay := ordering.IndexOf(c.display, id) >= 0
	removed := c.store.Remove(ctx, id)
	if !inDisplay && !removed {
		return fmt.Errorf("remove %q: %w", id, ErrNotRanked)
	}
	c.display = ordering.Remove(c.display, id)
	c.tracker.Clear(id)
	metrics.RecordItemRemoved()
	c.log.Info(ctx, "item removed", logger.String("item_id", string(id)))
	return nil
}

// ResetOrder discards manual divergence: the display becomes the derived ranking.
func (c *Controller) ResetOrder(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.display = c.store.Order(ctx)
}

// ClearPending drops every pending marker.
func (c *Controller) ClearPending() {
	c.tracker.ClearAll()
}

// resyncLocked follows the derived ranking when no drag is queued or being
// reconciled, otherwise it keeps the manual order and only picks up new or
// removed items.
func (c *Controller) resyncLocked(ctx context.Context) {
	derived := c.store.Order(ctx)
	if !c.queue.Busy() {
		c.display = derived
		return
	}
	c.display = ordering.Merge(c.display, derived)
}

func (c *Controller) resolve(id model.ItemID) error {
	if !c.catalog.Resolve(id) {
		metrics.RecordErrorByComponent("controller", "unknown_item")
		return fmt.Errorf("%q: %w", id, ErrUnknownItem)
	}
	return nil
}

// Ranking returns the derived order: score desc, battle count asc, insertion order.
func (c *Controller) Ranking(ctx context.Context) []model.ItemID {
	return c.store.Order(ctx)
}

// Entries returns the top limit ranked items with their pending flags.
func (c *Controller) Entries(ctx context.Context, limit int) ([]types.Entry, error) {
	items, err := c.store.TopN(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, len(items))
	for i, it := range items {
		out[i] = types.NewEntry(i+1, it, c.tracker.IsPending(it.ID))
	}
	return out, nil
}

// Entry returns the ranked entry for id.
func (c *Controller) Entry(ctx context.Context, id model.ItemID) (types.Entry, error) {
	rank, err := c.store.Rank(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return types.Entry{}, fmt.Errorf("%q: %w", id, ErrNotRanked)
		}
		return types.Entry{}, err
	}
	rec, _ := c.store.Record(ctx, id)
	it := model.RankedItem{ID: id, Rating: rec.Rating, BattleCount: rec.BattleCount, Score: rec.Rating.Score()}
	return types.NewEntry(rank, it, c.tracker.IsPending(id)), nil
}

// Rating returns the rating of id, or the default if it has none.
func (c *Controller) Rating(ctx context.Context, id model.ItemID) model.Rating {
	return c.store.Get(ctx, id)
}

// IsPending reports whether id still waits for battle confirmations.
func (c *Controller) IsPending(id model.ItemID) bool {
	return c.tracker.IsPending(id)
}

// PendingMarkers returns every pending marker sorted by item id.
func (c *Controller) PendingMarkers() []model.PendingMarker {
	return c.tracker.Snapshot()
}

// DisplayOrder returns a copy of the order the user currently sees.
func (c *Controller) DisplayOrder() []model.ItemID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.ItemID(nil), c.display...)
}

// QueueLen returns the number of queued drags not yet reconciled.
func (c *Controller) QueueLen() int {
	return c.queue.Len()
}

// Reconciling reports whether drags are queued or a flushed batch is still
// being reconciled.
func (c *Controller) Reconciling() bool {
	return c.queue.Busy()
}

// Flush reconciles queued drags now. It must not be called with mu held.
func (c *Controller) Flush(ctx context.Context) error {
	return c.queue.Flush(ctx)
}

// Close flushes queued drags and stops accepting new ones.
func (c *Controller) Close(ctx context.Context) error {
	err := c.queue.Flush(ctx)
	if cerr := c.queue.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}
