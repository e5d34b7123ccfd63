package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/pkg/logger"
	"github.com/okian/pokerank/pkg/metrics"
)

type entry struct {
	rating  model.Rating
	battles int
	seq     uint64
}

func (e entry) key() key {
	return key{score: e.rating.Score(), battles: e.battles, seq: e.seq}
}

// RatingStore is an in-memory Store indexed by a treap in ranking order.
type RatingStore struct {
	mu            sync.RWMutex
	root          *node
	byID          map[model.ItemID]entry
	nextSeq       uint64
	defaultRating model.Rating
	log           logger.Logger

	batchDepth int
	dirty      bool

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextLID     int

	writes atomic.Uint64
}

var _ Store = (*RatingStore)(nil)

// NewRatingStore constructs an empty store.
func NewRatingStore(opts ...Option) *RatingStore {
	s := &RatingStore{
		byID:          make(map[model.ItemID]entry),
		defaultRating: model.DefaultRating(),
		log:           logger.Nop(),
		listeners:     make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultRating returns the rating used for unseen items.
func (s *RatingStore) DefaultRating() model.Rating {
	return s.defaultRating
}

// Get implements Store.
func (s *RatingStore) Get(_ context.Context, id model.ItemID) model.Rating {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.byID[id]; ok {
		return e.rating
	}
	return s.defaultRating
}

// Record returns the stored record for id and whether it exists.
func (s *RatingStore) Record(_ context.Context, id model.ItemID) (model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return model.Record{}, false
	}
	return model.Record{Rating: e.rating, BattleCount: e.battles}, true
}

// Has reports whether id is in the ranked set.
func (s *RatingStore) Has(_ context.Context, id model.ItemID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// Set implements Store.
func (s *RatingStore) Set(ctx context.Context, id model.ItemID, r model.Rating) error {
	if id == "" {
		return ErrEmptyID
	}
	if !r.Valid() {
		metrics.RecordErrorByComponent("repository", "invalid_rating")
		return fmt.Errorf("set %q (mu=%v sigma=%v): %w", id, r.Mu, r.Sigma, ErrInvalidRating)
	}
	s.write(ctx, func() bool {
		e, ok := s.byID[id]
		if !ok {
			e = s.newEntry()
		}
		e.rating = r
		s.put(id, e, ok)
		return true
	})
	return nil
}

// Seed implements Store.
func (s *RatingStore) Seed(ctx context.Context, id model.ItemID) (bool, error) {
	if id == "" {
		return false, ErrEmptyID
	}
	var created bool
	s.write(ctx, func() bool {
		if _, ok := s.byID[id]; ok {
			return false
		}
		e := s.newEntry()
		e.rating = s.defaultRating
		s.put(id, e, false)
		created = true
		return true
	})
	return created, nil
}

// IncrementBattles implements Store. Absent items are seeded first.
func (s *RatingStore) IncrementBattles(ctx context.Context, id model.ItemID) error {
	if id == "" {
		return ErrEmptyID
	}
	s.write(ctx, func() bool {
		e, ok := s.byID[id]
		if !ok {
			e = s.newEntry()
			e.rating = s.defaultRating
		}
		e.battles++
		s.put(id, e, ok)
		return true
	})
	return nil
}

// Remove deletes id from the ranked set and reports whether it was present.
func (s *RatingStore) Remove(ctx context.Context, id model.ItemID) bool {
	var removed bool
	s.write(ctx, func() bool {
		e, ok := s.byID[id]
		if !ok {
			return false
		}
		s.root = deleteNode(s.root, e.key())
		delete(s.byID, id)
		removed = true
		return true
	})
	return removed
}

// GetAll implements Store.
func (s *RatingStore) GetAll(_ context.Context) map[model.ItemID]model.Rating {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ItemID]model.Rating, len(s.byID))
	for id, e := range s.byID {
		out[id] = e.rating
	}
	return out
}

// Records returns a copy of every record, ready for persistence.
func (s *RatingStore) Records(_ context.Context) map[model.ItemID]model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ItemID]model.Record, len(s.byID))
	for id, e := range s.byID {
		out[id] = model.Record{Rating: e.rating, BattleCount: e.battles}
	}
	return out
}

// Ranking returns every item ordered by score desc, battle count asc, then insertion order.
func (s *RatingStore) Ranking(_ context.Context) []model.RankedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(len(s.byID))
}

// TopN returns the first n items of the ranking.
func (s *RatingStore) TopN(_ context.Context, n int) ([]model.RankedItem, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(n), nil
}

// Order returns the derived ranking as ids.
func (s *RatingStore) Order(ctx context.Context) []model.ItemID {
	ranked := s.Ranking(ctx)
	out := make([]model.ItemID, len(ranked))
	for i, it := range ranked {
		out[i] = it.ID
	}
	return out
}

// Rank returns the 1-based position of id in the derived ranking.
func (s *RatingStore) Rank(_ context.Context, id model.ItemID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return 0, ErrNotFound
	}
	return position(s.root, e.key()) + 1, nil
}

// Count returns the number of ranked items.
func (s *RatingStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Writes returns the number of writes applied since construction.
func (s *RatingStore) Writes() uint64 {
	return s.writes.Load()
}

// Restore replaces the whole state without notifying listeners.
// Items are sequenced by id so restores are deterministic.
func (s *RatingStore) Restore(_ context.Context, records map[model.ItemID]model.Record) error {
	ids := make([]model.ItemID, 0, len(records))
	for id, rec := range records {
		if id == "" {
			return ErrEmptyID
		}
		if !rec.Rating.Valid() {
			return fmt.Errorf("restore %q: %w", id, ErrInvalidRating)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = nil
	s.byID = make(map[model.ItemID]entry, len(ids))
	for _, id := range ids {
		e := s.newEntry()
		e.rating = records[id].Rating
		e.battles = records[id].BattleCount
		s.put(id, e, false)
	}
	metrics.UpdateRankedItems(len(s.byID))
	return nil
}

// StartBatch implements Store. Batches nest.
func (s *RatingStore) StartBatch() {
	s.mu.Lock()
	s.batchDepth++
	s.mu.Unlock()
}

// EndBatch implements Store. The outermost EndBatch notifies once if anything changed.
func (s *RatingStore) EndBatch(ctx context.Context) {
	s.mu.Lock()
	if s.batchDepth == 0 {
		s.mu.Unlock()
		s.log.Warn(ctx, "EndBatch without matching StartBatch")
		return
	}
	s.batchDepth--
	notify := s.batchDepth == 0 && s.dirty
	if notify {
		s.dirty = false
	}
	s.mu.Unlock()
	if notify {
		s.notify(ctx)
	}
}

// Subscribe registers fn for change notifications and returns a cancel func.
func (s *RatingStore) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// write runs fn under the write lock. fn reports whether it changed anything.
func (s *RatingStore) write(ctx context.Context, fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.writes.Add(1)
	count := len(s.byID)
	notify := s.batchDepth == 0
	if !notify {
		s.dirty = true
	}
	s.mu.Unlock()

	metrics.RecordStoreWrite()
	metrics.UpdateRankedItems(count)
	if notify {
		s.notify(ctx)
	}
}

func (s *RatingStore) notify(ctx context.Context) {
	s.listenersMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.listenersMu.Unlock()

	metrics.RecordStoreNotification()
	for _, fn := range fns {
		fn(ctx)
	}
}

func (s *RatingStore) newEntry() entry {
	s.nextSeq++
	return entry{seq: s.nextSeq}
}

// put stores e under id, re-indexing the old key when existed is true. Caller holds mu.
func (s *RatingStore) put(id model.ItemID, e entry, existed bool) {
	if existed {
		s.root = deleteNode(s.root, s.byID[id].key())
	}
	s.byID[id] = e
	s.root = insert(s.root, id, e.key())
}

func (s *RatingStore) collectLocked(limit int) []model.RankedItem {
	nodes := make([]*node, 0, min(limit, len(s.byID)))
	collect(s.root, limit, &nodes)
	out := make([]model.RankedItem, 0, len(nodes))
	for _, n := range nodes {
		e := s.byID[n.id]
		out = append(out, model.RankedItem{
			ID:          n.id,
			Rating:      e.rating,
			BattleCount: e.battles,
			Score:       e.rating.Score(),
		})
	}
	return out
}
