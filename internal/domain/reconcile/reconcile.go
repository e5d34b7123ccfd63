// Package reconcile turns a requested display position into a rating that
// reproduces it when items are sorted by score.
package reconcile

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/pokerank/internal/adapters/repository"
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/ordering"
	"github.com/okian/pokerank/pkg/logger"
	"github.com/okian/pokerank/pkg/metrics"
)

// Neighbor is an adjacent item in the display order with its current rating.
type Neighbor struct {
	ID     model.ItemID
	Rating model.Rating
}

// Snapshot is everything Plan needs: the item and its would-be neighbors.
type Snapshot struct {
	Item  model.ItemID
	Above *Neighbor
	Below *Neighbor
}

// Nudge is a neighbor rating change made to break a score tie.
type Nudge struct {
	ID     model.ItemID
	Rating model.Rating
}

// Plan is the outcome of a placement. Rating.Mu - Rating.Sigma == Target exactly.
type Plan struct {
	Item   model.ItemID
	Target float64
	Rating model.Rating
	Nudges []Nudge
}

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithParams overrides the placement constants. Invalid params are ignored.
func WithParams(p Params) Option {
	return func(r *Reconciler) {
		if p.valid() {
			r.params = p
		}
	}
}

// WithLogger sets the reconciler logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// Reconciler reads neighbor ratings from a store and writes placements back.
type Reconciler struct {
	store  repository.Store
	params Params
	log    logger.Logger
}

// New creates a reconciler over store.
func New(store repository.Store, opts ...Option) *Reconciler {
	r := &Reconciler{store: store, params: DefaultParams(), log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Params returns the active constants.
func (r *Reconciler) Params() Params { return r.params }

// Snapshot reads the neighbors of the item at index in order. Missing ratings default.
func (r *Reconciler) Snapshot(ctx context.Context, order []model.ItemID, index int) (Snapshot, error) {
	if index < 0 || index >= len(order) {
		return Snapshot{}, fmt.Errorf("index %d of %d: %w", index, len(order), ErrNotInOrder)
	}
	s := Snapshot{Item: order[index]}
	if index > 0 {
		id := order[index-1]
		s.Above = &Neighbor{ID: id, Rating: r.store.Get(ctx, id)}
	}
	if index+1 < len(order) {
		id := order[index+1]
		s.Below = &Neighbor{ID: id, Rating: r.store.Get(ctx, id)}
	}
	return s, nil
}

// Target computes the score that places the item between its neighbors.
func (r *Reconciler) Target(s Snapshot) float64 {
	switch {
	case s.Above != nil && s.Below != nil:
		return (s.Above.Rating.Score() + s.Below.Rating.Score()) / 2
	case s.Above != nil:
		return s.Above.Rating.Score() - r.params.EpsilonDown
	case s.Below != nil:
		return s.Below.Rating.Score() + r.params.EpsilonUp
	default:
		return r.params.DefaultScore
	}
}

// Plan computes the placement for s. It is pure: equal snapshots give identical plans.
func (r *Reconciler) Plan(s Snapshot) Plan {
	sigma := r.params.MinSigma
	mu := r.Target(s) + sigma
	p := Plan{
		Item:   s.Item,
		Target: mu - sigma,
		Rating: model.Rating{Mu: mu, Sigma: sigma},
	}

	// One hop only: the neighbor moves, its own neighbors are left alone.
	if s.Above != nil && r.collides(p.Target, s.Above.Rating.Score()) {
		n := s.Above.Rating
		n.Mu += r.params.CascadeDelta
		p.Nudges = append(p.Nudges, Nudge{ID: s.Above.ID, Rating: n})
	}
	if s.Below != nil && r.collides(p.Target, s.Below.Rating.Score()) {
		n := s.Below.Rating
		n.Mu -= r.params.CascadeDelta
		p.Nudges = append(p.Nudges, Nudge{ID: s.Below.ID, Rating: n})
	}
	return p
}

func (r *Reconciler) collides(a, b float64) bool {
	return math.Abs(a-b) <= r.params.Collision
}

// Apply writes a plan inside one store batch.
func (r *Reconciler) Apply(ctx context.Context, p Plan) error {
	r.store.StartBatch()
	defer r.store.EndBatch(ctx)

	if err := r.store.Set(ctx, p.Item, p.Rating); err != nil {
		return fmt.Errorf("place %q: %w", p.Item, err)
	}
	for _, n := range p.Nudges {
		if err := r.store.Set(ctx, n.ID, n.Rating); err != nil {
			return fmt.Errorf("nudge %q: %w", n.ID, err)
		}
		metrics.RecordCascadeNudge()
	}
	return nil
}

// Reconcile places the item at index of the live order.
func (r *Reconciler) Reconcile(ctx context.Context, order []model.ItemID, index int) (Plan, error) {
	s, err := r.Snapshot(ctx, order, index)
	if err != nil {
		return Plan{}, err
	}
	p := r.Plan(s)
	if err := r.Apply(ctx, p); err != nil {
		metrics.RecordErrorByComponent("reconcile", "apply")
		return Plan{}, err
	}
	metrics.RecordReconcile()
	r.log.Debug(ctx, "item placed",
		logger.String("item_id", string(p.Item)),
		logger.Int("index", index),
		logger.Float64("target", p.Target),
		logger.Int("nudges", len(p.Nudges)))
	return p, nil
}

// PlanVote computes a vote's rating. at is the snapshot of the item moved
// strength places in the vote direction, or nil when it is already at the edge.
func (r *Reconciler) PlanVote(current model.Rating, at *Snapshot, v model.Vote) (Plan, error) {
	if !v.Valid() {
		return Plan{}, fmt.Errorf("%s/%d: %w", v.Direction, v.Strength, ErrInvalidVote)
	}
	score := current.Score()
	strength := float64(v.Strength)

	var target float64
	switch {
	case at != nil:
		target = r.Target(*at)
	case v.Direction == model.VoteUp:
		target = score + r.params.EpsilonUp*strength
	default:
		target = score - r.params.EpsilonDown*strength
	}

	next := score + (target-score)*strength/3
	sigma := math.Max(current.Sigma, r.params.MinSigma)
	mu := next + sigma
	return Plan{
		Item:   v.ItemID,
		Target: mu - sigma,
		Rating: model.Rating{Mu: mu, Sigma: sigma},
	}, nil
}

// Vote applies v against the live order.
func (r *Reconciler) Vote(ctx context.Context, order []model.ItemID, v model.Vote) (Plan, error) {
	if !v.Valid() {
		return Plan{}, fmt.Errorf("%s/%d: %w", v.Direction, v.Strength, ErrInvalidVote)
	}
	idx := ordering.IndexOf(order, v.ItemID)
	if idx < 0 {
		return Plan{}, fmt.Errorf("vote %q: %w", v.ItemID, ErrNotInOrder)
	}

	dst := idx + v.Strength
	if v.Direction == model.VoteUp {
		dst = idx - v.Strength
	}
	dst = ordering.Clamp(dst, len(order))

	var at *Snapshot
	if dst != idx {
		moved, pos := ordering.Move(order, v.ItemID, dst)
		s, err := r.Snapshot(ctx, moved, pos)
		if err != nil {
			return Plan{}, err
		}
		at = &s
	}

	p, err := r.PlanVote(r.store.Get(ctx, v.ItemID), at, v)
	if err != nil {
		return Plan{}, err
	}
	if err := r.Apply(ctx, p); err != nil {
		return Plan{}, err
	}
	metrics.RecordVote(string(v.Direction))
	return p, nil
}
