package model

import (
	"time"

	"github.com/google/uuid"
)

// OperationKind says how an item reached the display order.
type OperationKind string

const (
	// KindReorder moves an item that is already ranked.
	KindReorder OperationKind = "reorder"
	// KindInsert brings an item in from the unranked pool.
	KindInsert OperationKind = "insert"
)

// PendingOperation is a deferred reconciliation request produced by a drag-end.
type PendingOperation struct {
	ID               uuid.UUID     `json:"id"`
	ItemID           ItemID        `json:"item_id"`
	SourceIndex      int           `json:"source_index"`
	DestinationIndex int           `json:"destination_index"`
	RequestedAt      time.Time     `json:"requested_at"`
	Kind             OperationKind `json:"kind"`
}

// NewPendingOperation stamps a new operation with a random id.
func NewPendingOperation(id ItemID, src, dst int, at time.Time, kind OperationKind) PendingOperation {
	return PendingOperation{
		ID:               uuid.New(),
		ItemID:           id,
		SourceIndex:      src,
		DestinationIndex: dst,
		RequestedAt:      at,
		Kind:             kind,
	}
}

// PendingMarker flags an item whose rating correction is not yet confirmed.
type PendingMarker struct {
	ItemID                 ItemID `json:"item_id"`
	RemainingConfirmations int    `json:"remaining_confirmations"`
}

// Battle is a resolved battle. Either Order (best first) or Winners/Losers is set.
type Battle struct {
	ID      string   `json:"battle_id,omitempty"`
	Winners []ItemID `json:"winners,omitempty"`
	Losers  []ItemID `json:"losers,omitempty"`
	Order   []ItemID `json:"order,omitempty"`
}

// Participants returns every item in the battle, winners first.
func (b Battle) Participants() []ItemID {
	if len(b.Order) > 0 {
		return append([]ItemID(nil), b.Order...)
	}
	out := make([]ItemID, 0, len(b.Winners)+len(b.Losers))
	out = append(out, b.Winners...)
	return append(out, b.Losers...)
}

// BattleNotice reports a battle being scheduled or actually fought.
type BattleNotice struct {
	BattleID string   `json:"battle_id"`
	ItemIDs  []ItemID `json:"item_ids"`
}

// VoteDirection is the direction of a vote.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Vote nudges an item up or down the display order.
type Vote struct {
	ItemID    ItemID        `json:"item_id"`
	Direction VoteDirection `json:"direction"`
	Strength  int           `json:"strength"`
}

// Valid reports whether the vote has a known direction and strength 1..3.
func (v Vote) Valid() bool {
	return (v.Direction == VoteUp || v.Direction == VoteDown) && v.Strength >= 1 && v.Strength <= 3
}
