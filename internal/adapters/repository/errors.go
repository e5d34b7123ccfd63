package repository

import "errors"

// Sentinel kinds for rating store errors.
var (
	ErrNotFound      = errors.New("item not found")
	ErrInvalidLimit  = errors.New("invalid ranking limit")
	ErrInvalidRating = errors.New("invalid rating")
	ErrEmptyID       = errors.New("empty item id")
)
