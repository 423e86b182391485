// Package curriculum drives training stage by stage: each stage evolves a
// population in one scenario, optionally seeded from the champion that an
// earlier stage checkpointed.
package curriculum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/axiogen/neural"
	"github.com/pthm-cable/axiogen/storage"
)

// SeedPopulation builds n independent clones of champion. Each clone gets a
// fresh ID from nextID and goes through mutate exactly once. The champion
// itself is never modified.
func SeedPopulation(champion *genetics.Genome, n int, nextID func() int, mutate func(*genetics.Genome) error) (neural.Population, error) {
	if champion == nil {
		return nil, neural.ErrEmptyGenome
	}
	if n <= 0 {
		return nil, fmt.Errorf("population size must be positive, got %d", n)
	}

	pop := make(neural.Population, n)
	for i := 0; i < n; i++ {
		id := nextID()
		if _, dup := pop[id]; dup {
			return nil, fmt.Errorf("duplicate genome id %d", id)
		}
		clone, err := neural.CloneGenome(champion, id)
		if err != nil {
			return nil, fmt.Errorf("clone champion: %w", err)
		}
		if err := mutate(clone); err != nil {
			return nil, fmt.Errorf("mutate clone %d: %w", id, err)
		}
		pop[id] = clone
	}
	return pop, nil
}

// CheckpointSource reads a stage's checkpoint. Every storage.Store satisfies it.
type CheckpointSource interface {
	Load(ctx context.Context, stage string) (storage.Checkpoint, error)
}

// Seeder builds the initial population of a stage.
type Seeder struct {
	Store  CheckpointSource
	Engine neural.Engine
	Inputs int // Input arity of the new stage; champions are grown to it
	Logger *slog.Logger
}

// Initial returns n genomes for a stage seeded from the checkpoint of stage
// seedFrom. A missing or unusable checkpoint is not an error: the engine's
// default initialization is used instead and seeded is false.
func (s *Seeder) Initial(ctx context.Context, seedFrom string, n int) (pop neural.Population, seeded bool, err error) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	champion, err := s.champion(ctx, seedFrom)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		if seedFrom != "" {
			log.Warn("checkpoint unavailable, starting fresh", "seed_from", seedFrom, "error", err)
		}
		pop, err := s.Engine.InitialPopulation(n)
		if err != nil {
			return nil, false, err
		}
		s.Engine.Speciate(pop)
		return pop, false, nil
	}

	pop, err = SeedPopulation(champion, n, s.Engine.NextID, s.Engine.Mutate)
	if err != nil {
		return nil, false, err
	}
	species := s.Engine.Speciate(pop)
	log.Info("population seeded", "seed_from", seedFrom, "champion", champion.Id, "size", len(pop), "species", countSpecies(species))
	return pop, true, nil
}

var errNoSeed = errors.New("no seed stage")

func (s *Seeder) champion(ctx context.Context, stage string) (*genetics.Genome, error) {
	if stage == "" {
		return nil, errNoSeed
	}
	if s.Store == nil {
		return nil, storage.ErrNotFound
	}
	cp, err := s.Store.Load(ctx, stage)
	if err != nil {
		return nil, err
	}
	g, err := neural.DecodeGenome(cp.Genome)
	if err != nil {
		return nil, err
	}
	if s.Inputs > 0 {
		if err := neural.GrowInputs(g, s.Inputs); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func countSpecies(assignment map[int]int) int {
	seen := make(map[int]struct{}, len(assignment))
	for _, sp := range assignment {
		seen[sp] = struct{}{}
	}
	return len(seen)
}
