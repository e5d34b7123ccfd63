package repository

import (
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/pkg/logger"
)

// Option applies a configuration option to the RatingStore.
type Option func(*RatingStore)

// WithDefaultRating sets the rating returned for unseen items and used by Seed.
func WithDefaultRating(r model.Rating) Option {
	return func(s *RatingStore) {
		if r.Valid() {
			s.defaultRating = r
		}
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(l logger.Logger) Option {
	return func(s *RatingStore) {
		if l != nil {
			s.log = l
		}
	}
}
