// Package repository holds the authoritative rating state.
package repository

import (
	"context"

	"github.com/okian/pokerank/internal/domain/model"
)

// Store is the read/write contract the rating engines depend on.
//
// Writes made between StartBatch and the matching EndBatch produce a single
// change notification when the outermost batch ends.
type Store interface {
	// Get returns the rating for id, or the default rating if absent. It never writes.
	Get(ctx context.Context, id model.ItemID) model.Rating
	// Set overwrites the rating for id, creating the item if needed.
	Set(ctx context.Context, id model.ItemID, r model.Rating) error
	// GetAll returns a copy of every stored rating.
	GetAll(ctx context.Context) map[model.ItemID]model.Rating
	// Seed stores the default rating for id if it is absent and reports whether it did.
	Seed(ctx context.Context, id model.ItemID) (bool, error)
	// IncrementBattles adds one to the battle count of id.
	IncrementBattles(ctx context.Context, id model.ItemID) error

	StartBatch()
	EndBatch(ctx context.Context)
}

// Listener is called after a write, or once at the end of the outermost batch.
type Listener func(ctx context.Context)
