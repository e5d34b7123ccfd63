// Package persistence stores rating snapshots per session.
//
// Saves are full snapshots: after Save, Load returns exactly the saved map.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/pokerank/internal/domain/model"
)

// Sentinel errors for persistence.
var (
	ErrUnknownDriver = errors.New("unknown persistence driver")
	ErrEmptySession  = errors.New("empty session id")
	ErrClosed        = errors.New("persistence client closed")
)

// Drivers accepted by New.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Client loads and saves the records of one session.
type Client interface {
	Load(ctx context.Context, sessionID string) (map[model.ItemID]model.Record, error)
	Save(ctx context.Context, sessionID string, records map[model.ItemID]model.Record) error
	Close() error
}

// New opens a client for driver. dsn is ignored by the memory driver.
func New(ctx context.Context, driver, dsn string) (Client, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite, DriverPostgres:
		return OpenSQL(ctx, driver, dsn)
	default:
		return nil, fmt.Errorf("%q: %w", driver, ErrUnknownDriver)
	}
}

func copyRecords(in map[model.ItemID]model.Record) map[model.ItemID]model.Record {
	out := make(map[model.ItemID]model.Record, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
