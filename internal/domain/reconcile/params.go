package reconcile

import "github.com/okian/pokerank/internal/domain/model"

// Params are the numeric constants of the placement rule.
type Params struct {
	MinSigma     float64 // sigma assigned to manually placed items
	EpsilonUp    float64 // gap above the current top when inserting at the top
	EpsilonDown  float64 // gap below the current bottom when inserting at the bottom
	DefaultScore float64 // score of the first item placed in an empty order
	CascadeDelta float64 // mu nudge applied to a neighbor whose score collides
	Collision    float64 // scores closer than this are treated as equal
}

// DefaultParams returns the stock placement constants.
func DefaultParams() Params {
	return Params{
		MinSigma:     model.MinSigma,
		EpsilonUp:    0.1,
		EpsilonDown:  0.1,
		DefaultScore: 20.0,
		CascadeDelta: 0.01,
		Collision:    1e-9,
	}
}

func (p Params) valid() bool {
	return p.MinSigma > 0 && p.EpsilonUp > 0 && p.EpsilonDown > 0 && p.CascadeDelta > 0 && p.Collision >= 0
}
