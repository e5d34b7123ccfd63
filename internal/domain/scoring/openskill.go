package scoring

import (
	"github.com/intinig/go-openskill/rating"
	"github.com/intinig/go-openskill/types"

	"github.com/okian/pokerank/internal/domain/model"
)

// Rater computes post-battle ratings for teams given in finishing order (best first).
type Rater interface {
	Rate(teams [][]model.Rating) [][]model.Rating
}

// OpenSkill rates with the Weng-Lin Plackett-Luce model.
type OpenSkill struct {
	mu    float64
	sigma float64
}

// NewOpenSkill returns a rater whose prior matches the given default rating.
func NewOpenSkill(prior model.Rating) OpenSkill {
	return OpenSkill{mu: prior.Mu, sigma: prior.Sigma}
}

// Rate implements Rater.
func (o OpenSkill) Rate(teams [][]model.Rating) [][]model.Rating {
	in := make([]types.Team, len(teams))
	for i, team := range teams {
		t := make(types.Team, len(team))
		for j, r := range team {
			t[j] = types.Rating{Mu: r.Mu, Sigma: r.Sigma}
		}
		in[i] = t
	}

	mu, sigma := o.mu, o.sigma
	rated := rating.Rate(in, &types.OpenSkillOptions{Mu: &mu, Sigma: &sigma})

	out := make([][]model.Rating, len(rated))
	for i, team := range rated {
		out[i] = make([]model.Rating, len(team))
		for j, r := range team {
			out[i][j] = model.Rating{Mu: r.Mu, Sigma: r.Sigma}
		}
	}
	return out
}
