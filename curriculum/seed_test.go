package curriculum

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/axiogen/neural"
	"github.com/pthm-cable/axiogen/storage"
)

func counter(start int) func() int {
	next := start
	return func() int {
		id := next
		next++
		return id
	}
}

func TestSeedPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	champion := neural.CreateMinimalBrainGenome(42, 5, rng)
	weights := make([]float64, len(champion.Genes))
	for i, g := range champion.Genes {
		weights[i] = g.Link.ConnectionWeight
	}

	calls := make(map[int]int)
	mutate := func(g *genetics.Genome) error {
		calls[g.Id]++
		g.Genes[0].Link.ConnectionWeight += 0.5
		return nil
	}

	const n = 20
	pop, err := SeedPopulation(champion, n, counter(100), mutate)
	if err != nil {
		t.Fatalf("SeedPopulation: %v", err)
	}
	if len(pop) != n {
		t.Fatalf("len(pop) = %d, want %d", len(pop), n)
	}

	for id, g := range pop {
		if g.Id != id {
			t.Errorf("genome keyed %d has id %d", id, g.Id)
		}
		if g == champion {
			t.Errorf("genome %d aliases the champion", id)
		}
		if calls[id] != 1 {
			t.Errorf("genome %d mutated %d times, want 1", id, calls[id])
		}
		if len(g.Genes) != len(champion.Genes) {
			t.Errorf("genome %d has %d genes, want %d", id, len(g.Genes), len(champion.Genes))
		}
	}
	if len(calls) != n {
		t.Errorf("mutate saw %d genomes, want %d", len(calls), n)
	}

	for i, g := range champion.Genes {
		if g.Link.ConnectionWeight != weights[i] {
			t.Fatalf("champion gene %d changed from %v to %v", i, weights[i], g.Link.ConnectionWeight)
		}
	}
}

func TestSeedPopulationErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	champion := neural.CreateMinimalBrainGenome(1, 5, rng)
	noop := func(*genetics.Genome) error { return nil }

	tests := []struct {
		name     string
		champion *genetics.Genome
		n        int
		nextID   func() int
		mutate   func(*genetics.Genome) error
	}{
		{"nil champion", nil, 3, counter(1), noop},
		{"zero size", champion, 0, counter(1), noop},
		{"duplicate ids", champion, 3, func() int { return 7 }, noop},
		{"mutate fails", champion, 3, counter(1), func(*genetics.Genome) error { return errors.New("boom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SeedPopulation(tt.champion, tt.n, tt.nextID, tt.mutate); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func newEngine(inputs int) *neural.NEATEngine {
	return neural.NewNEATEngine(nil, inputs, 0.5, 1, rand.New(rand.NewSource(3)))
}

func saveChampion(t *testing.T, store storage.Store, stage string, g *genetics.Genome) {
	t.Helper()
	data, err := neural.EncodeGenome(g)
	if err != nil {
		t.Fatalf("EncodeGenome: %v", err)
	}
	cp := storage.Checkpoint{Stage: stage, GenomeID: g.Id, Genome: data}
	if err := store.Save(context.Background(), cp); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestSeederFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	champion := neural.CreateMinimalBrainGenome(9, 5, rand.New(rand.NewSource(2)))
	saveChampion(t, store, "maze", champion)

	engine := newEngine(10)
	s := &Seeder{Store: store, Engine: engine, Inputs: 10}
	pop, seeded, err := s.Initial(ctx, "maze", 12)
	if err != nil {
		t.Fatalf("Initial: %v", err)
	}
	if !seeded {
		t.Error("expected a seeded population")
	}
	if len(pop) != 12 {
		t.Fatalf("len(pop) = %d, want 12", len(pop))
	}
	for id, g := range pop {
		if got := neural.InputCount(g); got != 10 {
			t.Errorf("genome %d has %d inputs, want 10", id, got)
		}
		if len(g.Genes) < len(champion.Genes) {
			t.Errorf("genome %d lost genes: %d < %d", id, len(g.Genes), len(champion.Genes))
		}
	}
	if len(engine.Species().Species) == 0 {
		t.Error("seeded population was not speciated")
	}
}

func TestSeederFallback(t *testing.T) {
	ctx := context.Background()

	corrupt := storage.NewMemoryStore()
	if err := corrupt.Save(ctx, storage.Checkpoint{Stage: "maze", Genome: []byte("not a genome")}); err != nil {
		t.Fatal(err)
	}
	wide := storage.NewMemoryStore()
	saveChampion(t, wide, "maze", neural.CreateMinimalBrainGenome(1, 12, rand.New(rand.NewSource(2))))

	tests := []struct {
		name     string
		store    CheckpointSource
		seedFrom string
	}{
		{"no seed stage", storage.NewMemoryStore(), ""},
		{"missing checkpoint", storage.NewMemoryStore(), "maze"},
		{"corrupt checkpoint", corrupt, "maze"},
		{"too many inputs", wide, "maze"},
		{"no store", nil, "maze"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Seeder{Store: tt.store, Engine: newEngine(10), Inputs: 10}
			pop, seeded, err := s.Initial(ctx, tt.seedFrom, 6)
			if err != nil {
				t.Fatalf("fallback must not fail: %v", err)
			}
			if seeded {
				t.Error("seeded = true, want fallback")
			}
			if len(pop) != 6 {
				t.Errorf("len(pop) = %d, want 6", len(pop))
			}
			for id, g := range pop {
				if got := neural.InputCount(g); got != 10 {
					t.Errorf("genome %d has %d inputs, want 10", id, got)
				}
			}
		})
	}
}

func TestSeederCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Seeder{Store: storage.NewMemoryStore(), Engine: newEngine(10), Inputs: 10}
	if _, _, err := s.Initial(ctx, "maze", 4); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
