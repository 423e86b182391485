package neural

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
)

// ErrEmptyPopulation is returned when an operation needs at least one genome.
var ErrEmptyPopulation = errors.New("population is empty")

// tournamentSize is the number of contenders drawn per parent selection.
const tournamentSize = 3

// Population maps genome ID to genome.
type Population map[int]*genetics.Genome

// IDs returns the genome IDs in ascending order.
func (p Population) IDs() []int {
	ids := make([]int, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Engine is the evolution capability the training loop depends on. It owns
// every genetic operator; callers only hand it genomes and fitness values.
type Engine interface {
	// InitialPopulation creates n fresh random genomes.
	InitialPopulation(n int) (Population, error)
	// Mutate applies one mutation pass to g in place.
	Mutate(g *genetics.Genome) error
	// Crossover breeds a child from two parents and their fitness.
	Crossover(a, b *genetics.Genome, fa, fb float64) (*genetics.Genome, error)
	// Speciate clusters pop and returns genome ID -> species ID.
	Speciate(pop Population) map[int]int
	// Reproduce builds the next generation from pop and its fitness.
	Reproduce(pop Population, fitness map[int]float64) (Population, error)
	// Controller derives the per-tick evaluator of g.
	Controller(g *genetics.Genome) (Controller, error)
	// NextID issues a fresh genome ID.
	NextID() int
}

// NEATEngine implements Engine on goNEAT genomes with compatibility-distance
// speciation, fitness sharing, per-species elitism and tournament selection.
type NEATEngine struct {
	opts     *neat.Options
	inputs   int
	connProb float64
	elitism  int
	rng      *rand.Rand
	idGen    *GenomeIDGenerator
	species  *SpeciesManager
}

// NewNEATEngine creates an engine producing controllers with the given input
// arity. All randomness is drawn from rng.
func NewNEATEngine(opts *neat.Options, inputs int, connProb float64, elitism int, rng *rand.Rand) *NEATEngine {
	if opts == nil {
		opts = DefaultNEATOptions()
	}
	return &NEATEngine{
		opts:     opts,
		inputs:   inputs,
		connProb: connProb,
		elitism:  max(0, elitism),
		rng:      rng,
		idGen:    NewGenomeIDGenerator(),
		species:  NewSpeciesManager(opts),
	}
}

// Inputs returns the controller input arity.
func (e *NEATEngine) Inputs() int { return e.inputs }

// Species exposes the species manager for reporting.
func (e *NEATEngine) Species() *SpeciesManager { return e.species }

// NextID issues a fresh genome ID.
func (e *NEATEngine) NextID() int { return e.idGen.NextID() }

// InitialPopulation creates n genomes with sparse random input-output links.
func (e *NEATEngine) InitialPopulation(n int) (Population, error) {
	if n <= 0 {
		return nil, fmt.Errorf("population size must be positive, got %d", n)
	}
	pop := make(Population, n)
	for i := 0; i < n; i++ {
		id := e.idGen.NextID()
		pop[id] = CreateBrainGenome(id, e.inputs, e.connProb, e.rng)
	}
	return pop, nil
}

// Mutate applies one mutation pass. Counters are first advanced past g so
// genomes from another run never receive colliding innovation numbers.
func (e *NEATEngine) Mutate(g *genetics.Genome) error {
	e.idGen.Observe(g)
	_, err := MutateGenome(g, e.opts, e.idGen, e.rng)
	return err
}

// Crossover breeds a child with a fresh ID.
func (e *NEATEngine) Crossover(a, b *genetics.Genome, fa, fb float64) (*genetics.Genome, error) {
	child, err := CrossoverGenomes(a, b, fa, fb, e.idGen.NextID(), e.rng)
	if err != nil {
		return nil, err
	}
	connectOutputs(child, e.idGen, e.rng)
	return child, nil
}

// Speciate clusters pop into species.
func (e *NEATEngine) Speciate(pop Population) map[int]int {
	for _, id := range pop.IDs() {
		e.idGen.Observe(pop[id])
	}
	return e.species.Speciate(pop)
}

// Controller builds a goNEAT-backed controller.
func (e *NEATEngine) Controller(g *genetics.Genome) (Controller, error) {
	return NewBrainController(g)
}

// Reproduce speciates pop, allocates offspring by shared fitness, copies
// each species' elites and fills the rest with mutated clones or crossover
// children of tournament-selected parents.
func (e *NEATEngine) Reproduce(pop Population, fitness map[int]float64) (Population, error) {
	if len(pop) == 0 {
		return nil, ErrEmptyPopulation
	}
	target := e.opts.PopSize
	if target <= 0 {
		target = len(pop)
	}

	assignment := e.Speciate(pop)
	for _, id := range pop.IDs() {
		e.species.AccumulateFitness(assignment[id], fitness[id])
	}
	e.species.EndGeneration()

	alloc := e.allocate(fitness, target)
	next := make(Population, target)

	for i, sp := range e.species.Species {
		members := rankMembers(sp.Members, fitness)
		count := alloc[i]
		if count == 0 || len(members) == 0 {
			continue
		}

		for j := 0; j < min(e.elitism, count, len(members)); j++ {
			child, err := CloneGenome(pop[members[j]], e.idGen.NextID())
			if err != nil {
				return nil, err
			}
			next[child.Id] = child
			e.species.RecordOffspring(sp.ID)
			count--
		}

		poolSize := max(1, int(math.Ceil(e.opts.SurvivalThresh*float64(len(members)))))
		pool := members[:min(poolSize, len(members))]

		for ; count > 0; count-- {
			child, err := e.breed(pop, pool, fitness)
			if err != nil {
				return nil, err
			}
			next[child.Id] = child
			e.species.RecordOffspring(sp.ID)
		}
	}

	return next, nil
}

func (e *NEATEngine) breed(pop Population, pool []int, fitness map[int]float64) (*genetics.Genome, error) {
	p1 := e.tournament(pool, fitness)
	if len(pool) == 1 || e.rng.Float64() < e.opts.MutateOnlyProb {
		child, err := CloneGenome(pop[p1], e.idGen.NextID())
		if err != nil {
			return nil, err
		}
		return child, e.Mutate(child)
	}

	p2 := e.tournament(pool, fitness)
	child, err := e.Crossover(pop[p1], pop[p2], fitness[p1], fitness[p2])
	if err != nil {
		return nil, fmt.Errorf("crossover %d x %d: %w", p1, p2, err)
	}
	if e.rng.Float64() >= e.opts.MateOnlyProb {
		if err := e.Mutate(child); err != nil {
			return nil, err
		}
	}
	return child, nil
}

// tournament returns the fittest of tournamentSize random picks from pool.
func (e *NEATEngine) tournament(pool []int, fitness map[int]float64) int {
	best := pool[e.rng.Intn(len(pool))]
	for i := 1; i < tournamentSize; i++ {
		c := pool[e.rng.Intn(len(pool))]
		if fitness[c] > fitness[best] {
			best = c
		}
	}
	return best
}

// allocate splits target offspring across species in proportion to their
// shared fitness. Fitness is shifted so the worst individual counts as
// slightly positive; largest remainders receive the leftover slots.
func (e *NEATEngine) allocate(fitness map[int]float64, target int) []int {
	species := e.species.Species
	alloc := make([]int, len(species))
	if len(species) == 0 {
		return alloc
	}

	minFit := math.Inf(1)
	for _, sp := range species {
		for _, id := range sp.Members {
			minFit = math.Min(minFit, fitness[id])
		}
	}

	shares := make([]float64, len(species))
	total := 0.0
	for i, sp := range species {
		if len(sp.Members) == 0 {
			continue
		}
		sum := 0.0
		for _, id := range sp.Members {
			sum += fitness[id] - minFit + 1e-3
		}
		shares[i] = sum / float64(len(sp.Members))
		total += shares[i]
	}

	type remainder struct {
		idx  int
		frac float64
	}
	rems := make([]remainder, 0, len(species))
	given := 0
	for i := range species {
		exact := float64(target) * shares[i] / total
		alloc[i] = int(math.Floor(exact))
		given += alloc[i]
		rems = append(rems, remainder{idx: i, frac: exact - float64(alloc[i])})
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := 0; given < target; i = (i + 1) % len(rems) {
		alloc[rems[i].idx]++
		given++
	}
	return alloc
}

// rankMembers orders genome IDs by fitness, best first, ties by ID.
func rankMembers(members []int, fitness map[int]float64) []int {
	ranked := append([]int(nil), members...)
	sort.SliceStable(ranked, func(a, b int) bool {
		fa, fb := fitness[ranked[a]], fitness[ranked[b]]
		if fa != fb {
			return fa > fb
		}
		return ranked[a] < ranked[b]
	})
	return ranked
}
