// Package model contains domain models passed between layers.
package model

import "math"

// ItemID identifies a rankable item (a Pokémon species slug such as "pikachu").
type ItemID string

// Rating defaults.
const (
	DefaultMu    = 25.0
	DefaultSigma = 8.333
	// MinSigma is the uncertainty floor kept by battles and assigned to manual placements.
	MinSigma = 1.0
)

// Rating is a per-item skill estimate. Sigma must be strictly positive.
type Rating struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// DefaultRating is the rating of an item that has never been seen.
func DefaultRating() Rating {
	return Rating{Mu: DefaultMu, Sigma: DefaultSigma}
}

// Score is the conservative skill estimate used as the sort key.
func (r Rating) Score() float64 {
	return r.Mu - r.Sigma
}

// Valid reports whether r can be stored.
func (r Rating) Valid() bool {
	if math.IsNaN(r.Mu) || math.IsInf(r.Mu, 0) || math.IsNaN(r.Sigma) || math.IsInf(r.Sigma, 0) {
		return false
	}
	return r.Sigma > 0
}

// Record is the persisted state of one item.
type Record struct {
	Rating      Rating `json:"rating"`
	BattleCount int    `json:"battle_count"`
}

// RankedItem is one entry of the derived ranking.
type RankedItem struct {
	ID          ItemID  `json:"item_id"`
	Rating      Rating  `json:"rating"`
	BattleCount int     `json:"battle_count"`
	Score       float64 `json:"score"`
}
