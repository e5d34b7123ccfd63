package app

import "errors"

var (
	// ErrUnknownItem is returned for ids the catalog does not know.
	ErrUnknownItem = errors.New("unknown item")
	// ErrNotRanked is returned when an operation needs an item in the display order.
	ErrNotRanked = errors.New("item not ranked")
	// ErrMissingBattleID is returned for battle notices without an id.
	ErrMissingBattleID = errors.New("missing battle id")
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
)
