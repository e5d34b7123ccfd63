// Package scoring applies battle outcomes to item ratings.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/pokerank/internal/adapters/repository"
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/pkg/logger"
	"github.com/okian/pokerank/pkg/metrics"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRater replaces the rating model.
func WithRater(r Rater) Option {
	return func(e *Engine) {
		if r != nil {
			e.rater = r
		}
	}
}

// WithMinSigma sets the uncertainty floor.
func WithMinSigma(v float64) Option {
	return func(e *Engine) {
		if v > 0 {
			e.minSigma = v
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Outcome lists every participant's rating before and after a battle.
type Outcome struct {
	Before map[model.ItemID]model.Rating
	After  map[model.ItemID]model.Rating
}

// Engine resolves battles against a rating store.
type Engine struct {
	store    repository.Store
	rater    Rater
	minSigma float64
	log      logger.Logger
}

// NewEngine creates an engine writing through store.
func NewEngine(store repository.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		rater:    NewOpenSkill(model.DefaultRating()),
		minSigma: model.MinSigma,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve applies a battle. Winners/losers battles are rated as two teams;
// ranked-order battles rate every participant as its own team.
func (e *Engine) Resolve(ctx context.Context, b model.Battle) (Outcome, error) {
	teams, err := teamsOf(b)
	if err != nil {
		metrics.RecordErrorByComponent("scoring", "invalid_battle")
		return Outcome{}, err
	}

	e.store.StartBatch()
	defer e.store.EndBatch(ctx)

	before := make([][]model.Rating, len(teams))
	for i, team := range teams {
		before[i] = make([]model.Rating, len(team))
		for j, id := range team {
			if _, err := e.store.Seed(ctx, id); err != nil {
				return Outcome{}, fmt.Errorf("seed %q: %w", id, err)
			}
			before[i][j] = e.store.Get(ctx, id)
		}
	}

	after := e.rater.Rate(before)
	if len(after) != len(teams) {
		return Outcome{}, fmt.Errorf("rater returned %d teams for %d: %w", len(after), len(teams), ErrInvalidBattle)
	}
	for i := range teams {
		if len(after[i]) != len(teams[i]) {
			return Outcome{}, fmt.Errorf("rater changed size of team %d: %w", i, ErrInvalidBattle)
		}
	}

	out := Outcome{
		Before: make(map[model.ItemID]model.Rating),
		After:  make(map[model.ItemID]model.Rating),
	}
	last := len(teams) - 1
	for i, team := range teams {
		for j, id := range team {
			r := e.clamp(before[i][j], after[i][j], i == 0, i == last)
			if err := e.store.Set(ctx, id, r); err != nil {
				return Outcome{}, fmt.Errorf("set %q: %w", id, err)
			}
			if err := e.store.IncrementBattles(ctx, id); err != nil {
				return Outcome{}, fmt.Errorf("increment %q: %w", id, err)
			}
			out.Before[id] = before[i][j]
			out.After[id] = r
		}
	}

	kind := "pairwise"
	if len(b.Order) > 0 {
		kind = "group"
	}
	metrics.RecordBattleResolved(kind, len(out.After))
	e.log.Debug(ctx, "battle resolved",
		logger.String("battle_id", b.ID),
		logger.String("kind", kind),
		logger.Int("participants", len(out.After)))
	return out, nil
}

// clamp enforces the monotonicity and sigma floor rules on a rater result.
func (e *Engine) clamp(before, after model.Rating, first, last bool) model.Rating {
	r := after
	if math.IsNaN(r.Mu) || math.IsInf(r.Mu, 0) {
		r.Mu = before.Mu
	}
	if math.IsNaN(r.Sigma) || math.IsInf(r.Sigma, 0) {
		r.Sigma = before.Sigma
	}
	if first {
		r.Mu = math.Max(r.Mu, before.Mu)
	}
	if last {
		r.Mu = math.Min(r.Mu, before.Mu)
	}
	r.Sigma = math.Min(r.Sigma, before.Sigma)
	// Items already below the floor keep their sigma rather than growing.
	r.Sigma = math.Max(r.Sigma, math.Min(e.minSigma, before.Sigma))
	return r
}

func teamsOf(b model.Battle) ([][]model.ItemID, error) {
	var teams [][]model.ItemID
	if len(b.Order) > 0 {
		for _, id := range b.Order {
			teams = append(teams, []model.ItemID{id})
		}
	} else {
		if len(b.Winners) == 0 || len(b.Losers) == 0 {
			return nil, fmt.Errorf("need at least one winner and one loser: %w", ErrInvalidBattle)
		}
		teams = [][]model.ItemID{b.Winners, b.Losers}
	}

	seen := make(map[model.ItemID]struct{})
	for _, id := range b.Participants() {
		if id == "" {
			return nil, fmt.Errorf("empty item id: %w", ErrInvalidBattle)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate participant %q: %w", id, ErrInvalidBattle)
		}
		seen[id] = struct{}{}
	}
	if len(seen) < 2 {
		return nil, fmt.Errorf("need at least two participants: %w", ErrInvalidBattle)
	}
	return teams, nil
}
