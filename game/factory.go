package game

import (
	"fmt"
	"math/rand"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/neural"
)

// spawnPopulation creates one agent entity per genome, in genome ID order so
// that a seeded run draws the same spawn jitter and agent seeds every time.
func (e *Evaluator) spawnPopulation(pop neural.Population) error {
	ids := pop.IDs()
	e.agents = make([]agent, 0, len(ids))

	for _, id := range ids {
		genome := pop[id]
		ctrl, err := e.factory.Controller(genome)
		if err != nil {
			return fmt.Errorf("build controller for genome %d: %w", id, err)
		}
		e.spawnAgent(id, genome, ctrl)
	}
	return nil
}

// spawnAgent places one agent at the scenario spawn point with full energy
// and zero fitness.
func (e *Evaluator) spawnAgent(id int, genome *genetics.Genome, ctrl neural.Controller) {
	rng := e.rc.RNG
	sp := e.scenario.Spawn

	x, y := sp.X, sp.Y
	if sp.Jitter > 0 {
		x += (rng.Float64()*2 - 1) * sp.Jitter
		y += (rng.Float64()*2 - 1) * sp.Jitter
	}
	heading := sp.Heading
	if sp.RandomHeading {
		heading = rng.Float64() * 360
	}

	pose := components.Pose{X: x, Y: y, Heading: heading}
	motion := components.Motion{}
	vitals := components.Vitals{
		Energy:    e.scenario.Agent.MaxEnergy,
		MaxEnergy: e.scenario.Agent.MaxEnergy,
		Alive:     true,
	}
	progress := components.Progress{
		HasKey:  sp.HasKey,
		Visited: make(map[components.Cell]struct{}),
	}
	slot := len(e.agents)
	tag := components.Agent{GenomeID: id, Slot: slot}

	entity := e.agentMapper.NewEntity(&pose, &motion, &vitals, &progress, &tag)

	e.agents = append(e.agents, agent{
		genomeID: id,
		genome:   genome,
		ctrl:     ctrl,
		rng:      rand.New(rand.NewSource(rng.Int63())),
		entity:   entity,
	})
	e.lifetimes.Register(id, 0, vitals.Energy)
}
