package reconcile

import "errors"

// Sentinel errors for reconciliation.
var (
	ErrNotInOrder  = errors.New("item not in display order")
	ErrInvalidVote = errors.New("invalid vote")
)
