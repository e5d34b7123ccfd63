// Package types contains common types used across the application
package types

import "github.com/okian/pokerank/internal/domain/model"

// Entry represents a ranking entry as returned to clients.
type Entry struct {
	Rank        int     `json:"rank"`
	ItemID      string  `json:"item_id"`
	Mu          float64 `json:"mu"`
	Sigma       float64 `json:"sigma"`
	Score       float64 `json:"score"`
	BattleCount int     `json:"battle_count"`
	Pending     bool    `json:"pending"`
}

// NewEntry builds a 1-based ranking entry from a ranked item.
func NewEntry(rank int, it model.RankedItem, pending bool) Entry {
	return Entry{
		Rank:        rank,
		ItemID:      string(it.ID),
		Mu:          it.Rating.Mu,
		Sigma:       it.Rating.Sigma,
		Score:       it.Score,
		BattleCount: it.BattleCount,
		Pending:     pending,
	}
}
