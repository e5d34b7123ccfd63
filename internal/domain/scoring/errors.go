package scoring

import "errors"

// ErrInvalidBattle is returned for structurally invalid battles.
var ErrInvalidBattle = errors.New("invalid battle")
