package simulate

import (
	"math/rand/v2"
	"strconv"
)

// pokedex is the pool simulated items are drawn from.
var pokedex = []string{
	"bulbasaur", "ivysaur", "venusaur", "charmander", "charmeleon", "charizard",
	"squirtle", "wartortle", "blastoise", "caterpie", "metapod", "butterfree",
	"weedle", "kakuna", "beedrill", "pidgey", "pidgeotto", "pidgeot",
	"rattata", "raticate", "spearow", "fearow", "ekans", "arbok",
	"pikachu", "raichu", "sandshrew", "sandslash", "nidoking", "nidoqueen",
	"clefairy", "clefable", "vulpix", "ninetales", "jigglypuff", "wigglytuff",
	"zubat", "golbat", "oddish", "gloom", "vileplume", "paras",
	"psyduck", "golduck", "mankey", "primeape", "growlithe", "arcanine",
	"poliwag", "abra", "kadabra", "alakazam", "machop", "machamp",
	"geodude", "golem", "ponyta", "rapidash", "slowpoke", "magnemite",
	"onix", "gengar", "snorlax", "lapras", "eevee", "ditto",
	"magikarp", "gyarados", "dragonite", "mewtwo", "mew",
}

// Generator produces reproducible battles and drags from a seed.
type Generator struct {
	rng   *rand.Rand
	pool  []string
	power map[string]float64
	seq   int
}

// NewGenerator draws a pool of size n and gives every member a hidden strength.
// Stronger members win more often, so the ranking has a shape to converge to.
func NewGenerator(seed uint64, n int) *Generator {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pool := append([]string(nil), pokedex...)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	pool = pool[:n]

	power := make(map[string]float64, n)
	for _, id := range pool {
		power[id] = rng.Float64()
	}
	return &Generator{rng: rng, pool: pool, power: power}
}

// Pool returns the ids the generator draws from.
func (g *Generator) Pool() []string {
	return append([]string(nil), g.pool...)
}

// Battle returns the next battle. Most are duels; some are free-for-alls
// reported as a finishing order.
func (g *Generator) Battle() Battle {
	g.seq++
	id := "sim-" + strconv.Itoa(g.seq)

	size := 2
	if len(g.pool) > 3 && g.rng.IntN(5) == 0 {
		size = 3 + g.rng.IntN(2)
	}
	picked := g.pick(size)

	// Order by noisy strength.
	noisy := make(map[string]float64, len(picked))
	for _, p := range picked {
		noisy[p] = g.power[p] + g.rng.NormFloat64()*0.25
	}
	for i := 1; i < len(picked); i++ {
		for j := i; j > 0 && noisy[picked[j]] > noisy[picked[j-1]]; j-- {
			picked[j], picked[j-1] = picked[j-1], picked[j]
		}
	}

	if size == 2 {
		return Battle{BattleID: id, Winners: picked[:1], Losers: picked[1:]}
	}
	return Battle{BattleID: id, Order: picked}
}

// Drag returns a drag against the current display order. With some
// probability it inserts a pool member that is not displayed yet.
func (g *Generator) Drag(order []string) Reorder {
	shown := make(map[string]struct{}, len(order))
	for _, id := range order {
		shown[id] = struct{}{}
	}
	var hidden []string
	for _, id := range g.pool {
		if _, ok := shown[id]; !ok {
			hidden = append(hidden, id)
		}
	}

	if len(hidden) > 0 && (len(order) == 0 || g.rng.IntN(4) == 0) {
		return Reorder{
			ItemID:           hidden[g.rng.IntN(len(hidden))],
			SourceIndex:      -1,
			DestinationIndex: g.rng.IntN(len(order) + 1),
		}
	}
	src := g.rng.IntN(len(order))
	return Reorder{
		ItemID:           order[src],
		SourceIndex:      src,
		DestinationIndex: g.rng.IntN(len(order)),
	}
}

// Vote returns a vote for one of the displayed items.
func (g *Generator) Vote(order []string) Vote {
	dir := "up"
	if g.rng.IntN(2) == 0 {
		dir = "down"
	}
	return Vote{
		ItemID:    order[g.rng.IntN(len(order))],
		Direction: dir,
		Strength:  1 + g.rng.IntN(3),
	}
}

func (g *Generator) pick(n int) []string {
	idx := g.rng.Perm(len(g.pool))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = g.pool[j]
	}
	return out
}
