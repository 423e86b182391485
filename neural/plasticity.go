package neural

import (
	"math/rand"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
)

// Nudge adds rng.Float64()*factor to the weight of every enabled gene and
// returns how many genes changed. Weights are not clamped, unlike mutation.
// Enabled flags and topology are left alone, so the phenotype only needs a
// rebuild afterwards.
func Nudge(genome *genetics.Genome, factor float64, rng *rand.Rand) int {
	if genome == nil || factor == 0 {
		return 0
	}
	n := 0
	for _, gene := range genome.Genes {
		if !gene.IsEnabled {
			continue
		}
		gene.Link.ConnectionWeight += rng.Float64() * factor
		n++
	}
	return n
}

// Rebuilder is a Controller that can refresh itself after the weights of
// its genome changed in place.
type Rebuilder interface {
	RebuildNetwork() error
}

// Plasticity applies in-episode nudges to an individual's genome and
// rebuilds its controller when anything changed.
type Plasticity struct {
	Enabled      bool
	PainFactor   float64 // Applied once per colliding tick, usually negative
	RewardFactor float64 // Applied once per milestone
}

// OnPain nudges the genome after a collision.
func (p Plasticity) OnPain(genome *genetics.Genome, ctrl Controller, rng *rand.Rand) (bool, error) {
	return p.apply(genome, ctrl, p.PainFactor, rng)
}

// OnReward nudges the genome after a milestone.
func (p Plasticity) OnReward(genome *genetics.Genome, ctrl Controller, rng *rand.Rand) (bool, error) {
	return p.apply(genome, ctrl, p.RewardFactor, rng)
}

func (p Plasticity) apply(genome *genetics.Genome, ctrl Controller, factor float64, rng *rand.Rand) (bool, error) {
	if !p.Enabled {
		return false, nil
	}
	if Nudge(genome, factor, rng) == 0 {
		return false, nil
	}
	if r, ok := ctrl.(Rebuilder); ok {
		return true, r.RebuildNetwork()
	}
	return true, nil
}
