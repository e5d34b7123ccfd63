package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pokerank/internal/adapters/catalog"
	"github.com/okian/pokerank/internal/adapters/mq/worker"
	"github.com/okian/pokerank/internal/adapters/persistence"
	"github.com/okian/pokerank/internal/adapters/repository"
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/reconcile"
	"github.com/okian/pokerank/internal/domain/scoring"
	"github.com/okian/pokerank/internal/domain/types"
	"github.com/okian/pokerank/pkg/logger"
	"github.com/okian/pokerank/pkg/metrics"
)

const defaultStopTimeout = 10 * time.Second

// Service owns the rating store, the controller and the persistence sync worker.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *repository.RatingStore
	controller *Controller
	client     persistence.Client
	syncer     *worker.Syncer

	// Configuration
	sessionID       string
	defaultRating   model.Rating
	catalog         *catalog.Catalog
	controllerOpts  []ControllerOption
	syncOpts        []worker.Option
	maxRankingLimit int

	// State
	started     bool
	unsubscribe func()
	cancel      context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionID sets the persistence session. A random id is used otherwise.
func WithSessionID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.sessionID = id
		}
	}
}

// WithPersistence sets the client ratings are loaded from and saved to.
func WithPersistence(c persistence.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithDefaultRating sets the rating new items start with.
func WithDefaultRating(r model.Rating) Option {
	return func(s *Service) {
		if r.Valid() {
			s.defaultRating = r
		}
	}
}

// WithItemCatalog restricts accepted ids to c.
func WithItemCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithControllerOptions passes options through to the controller.
func WithControllerOptions(opts ...ControllerOption) Option {
	return func(s *Service) {
		s.controllerOpts = append(s.controllerOpts, opts...)
	}
}

// WithSyncOptions passes options through to the persistence sync worker.
func WithSyncOptions(opts ...worker.Option) Option {
	return func(s *Service) {
		s.syncOpts = append(s.syncOpts, opts...)
	}
}

// WithMaxRankingLimit caps how many entries a ranking read may return.
func WithMaxRankingLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRankingLimit = n
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessionID:       uuid.NewString(),
		defaultRating:   model.DefaultRating(),
		catalog:         catalog.Empty(),
		maxRankingLimit: 1000,
		logger:          nil, // replaced on Start
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads persisted ratings and starts the controller and sync worker.
// A failed load is logged and the service starts empty.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting ranking service...", logger.String("session_id", s.sessionID))

	if s.client == nil {
		s.client = persistence.NewMemory()
	}
	s.store = repository.NewRatingStore(
		repository.WithDefaultRating(s.defaultRating),
		repository.WithLogger(s.logger.Named("store")),
	)

	records, err := s.client.Load(ctx, s.sessionID)
	switch {
	case err != nil:
		metrics.RecordErrorByComponent("service", "load")
		s.logger.Warn(ctx, "loading ratings failed, starting empty", logger.Error(err))
	case len(records) > 0:
		if err := s.store.Restore(ctx, records); err != nil {
			metrics.RecordErrorByComponent("service", "restore")
			s.logger.Warn(ctx, "restoring ratings failed, starting empty", logger.Error(err))
		} else {
			s.logger.Info(ctx, "ratings restored", logger.Int("items", len(records)))
		}
	}

	opts := append([]ControllerOption{
		WithCatalog(s.catalog),
		WithControllerLogger(s.logger.Named("controller")),
	}, s.controllerOpts...)
	s.controller = NewController(ctx, s.store, opts...)

	syncOpts := append([]worker.Option{
		worker.WithLogger(s.logger),
	}, s.syncOpts...)
	s.syncer = worker.NewSyncer(s.store, s.client, s.sessionID, syncOpts...)
	s.unsubscribe = s.store.Subscribe(s.syncer.Notify)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.syncer.Run(runCtx)

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("items", s.store.Count(ctx)),
		logger.Int("catalog", s.catalog.Len()))
	return nil
}

// Stop reconciles queued drags, saves a final snapshot and closes persistence.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping ranking service...")

	if err := s.controller.Close(ctx); err != nil {
		s.logger.Error(ctx, "final flush failed", logger.Error(err))
	}
	if err := s.syncer.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "sync shutdown failed", logger.Error(err))
	}
	s.unsubscribe()
	s.cancel()
	if err := s.client.Close(); err != nil {
		s.logger.Error(ctx, "closing persistence failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "ranking service stopped")
}

// Controller returns the running controller, or nil before Start.
func (s *Service) Controller() *Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controller
}

func (s *Service) ctl() (*Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.controller, nil
}

// Ranking returns the top limit entries, capped at the configured maximum.
func (s *Service) Ranking(ctx context.Context, limit int) ([]types.Entry, error) {
	c, err := s.ctl()
	if err != nil {
		return nil, err
	}
	if limit > s.maxRankingLimit {
		limit = s.maxRankingLimit
	}
	return c.Entries(ctx, limit)
}

// DisplayOrder returns the order the user currently sees.
func (s *Service) DisplayOrder(_ context.Context) ([]model.ItemID, error) {
	c, err := s.ctl()
	if err != nil {
		return nil, err
	}
	return c.DisplayOrder(), nil
}

// Item returns the ranked entry for id.
func (s *Service) Item(ctx context.Context, id model.ItemID) (types.Entry, error) {
	c, err := s.ctl()
	if err != nil {
		return types.Entry{}, err
	}
	return c.Entry(ctx, id)
}

// ResolveBattle applies a battle outcome.
func (s *Service) ResolveBattle(ctx context.Context, b model.Battle) (scoring.Outcome, error) {
	c, err := s.ctl()
	if err != nil {
		return scoring.Outcome{}, err
	}
	return c.ResolveBattle(ctx, b)
}

// BattleScheduled records a scheduled battle.
func (s *Service) BattleScheduled(ctx context.Context, n model.BattleNotice) error {
	c, err := s.ctl()
	if err != nil {
		return err
	}
	return c.BattleScheduled(ctx, n)
}

// BattleCompleted records a fought battle.
func (s *Service) BattleCompleted(ctx context.Context, n model.BattleNotice) (bool, error) {
	c, err := s.ctl()
	if err != nil {
		return false, err
	}
	return c.BattleCompleted(ctx, n)
}

// DragStart marks an item pending.
func (s *Service) DragStart(ctx context.Context, id model.ItemID) error {
	c, err := s.ctl()
	if err != nil {
		return err
	}
	return c.DragStart(ctx, id)
}

// DragEnd applies a drag.
func (s *Service) DragEnd(ctx context.Context, id model.ItemID, src, dst int) (Result, error) {
	c, err := s.ctl()
	if err != nil {
		return Result{}, err
	}
	return c.DragEnd(ctx, id, src, dst)
}

// SubmitVote applies a vote.
func (s *Service) SubmitVote(ctx context.Context, v model.Vote) (reconcile.Plan, error) {
	c, err := s.ctl()
	if err != nil {
		return reconcile.Plan{}, err
	}
	return c.SubmitVote(ctx, v)
}

// RemoveItem takes an item out of the ranked set.
func (s *Service) RemoveItem(ctx context.Context, id model.ItemID) error {
	c, err := s.ctl()
	if err != nil {
		return err
	}
	return c.RemoveItem(ctx, id)
}

// ResetPending clears every pending marker.
func (s *Service) ResetPending(_ context.Context) error {
	c, err := s.ctl()
	if err != nil {
		return err
	}
	c.ClearPending()
	return nil
}

// ResetOrder makes the display follow the derived ranking again.
func (s *Service) ResetOrder(ctx context.Context) error {
	c, err := s.ctl()
	if err != nil {
		return err
	}
	c.ResetOrder(ctx)
	return nil
}

// Flush reconciles queued drags now.
func (s *Service) Flush(ctx context.Context) error {
	c, err := s.ctl()
	if err != nil {
		return err
	}
	if err := c.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"sessionID":       s.sessionID,
		"catalogSize":     s.catalog.Len(),
		"maxRankingLimit": s.maxRankingLimit,
	}

	if s.started {
		items := s.store.Count(ctx)
		queueLen := s.controller.QueueLen()
		pendingItems := len(s.controller.PendingMarkers())

		stats["rankedItems"] = items
		stats["queueLength"] = queueLen
		stats["reconciling"] = s.controller.Reconciling()
		stats["pendingItems"] = pendingItems
		stats["storeWrites"] = s.store.Writes()
		stats["syncSaves"] = s.syncer.Saves()
		stats["syncFailures"] = s.syncer.Failures()

		metrics.UpdateRankedItems(items)
		metrics.UpdateQueueLength(queueLen)
		metrics.UpdatePendingItems(pendingItems)
	}

	return stats
}
