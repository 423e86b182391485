package neural

import (
	"math/rand"
	"testing"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
)

func TestNewSpeciesManager(t *testing.T) {
	sm := NewSpeciesManager(DefaultNEATOptions())

	if len(sm.Species) != 0 {
		t.Errorf("expected 0 species, got %d", len(sm.Species))
	}
	if sm.GetGeneration() != 0 {
		t.Errorf("expected generation 0, got %d", sm.GetGeneration())
	}
}

func TestSpeciesManagerAssignSpecies(t *testing.T) {
	sm := NewSpeciesManager(DefaultNEATOptions())
	genome := CreateBrainGenome(1, testInputs, 0.3, rand.New(rand.NewSource(1)))

	speciesID := sm.AssignSpecies(genome)
	if speciesID == 0 {
		t.Error("expected non-zero species ID")
	}
	if len(sm.Species) != 1 {
		t.Errorf("expected 1 species, got %d", len(sm.Species))
	}

	// Same genome should get same species
	if again := sm.AssignSpecies(genome); again != speciesID {
		t.Errorf("same genome should get same species: %d != %d", again, speciesID)
	}
	if sm.AssignSpecies(nil) != 0 {
		t.Error("nil genome should not be assigned")
	}
}

func TestSpeciesManagerMembership(t *testing.T) {
	sm := NewSpeciesManager(DefaultNEATOptions())
	genome := CreateBrainGenome(1, testInputs, 0.3, rand.New(rand.NewSource(1)))
	speciesID := sm.AssignSpecies(genome)

	sm.AddMember(speciesID, 100)
	sm.AddMember(speciesID, 101)
	sm.AddMember(speciesID, 102)

	sp := sm.GetSpecies(speciesID)
	if sp == nil {
		t.Fatal("species not found")
	}
	if len(sp.Members) != 3 {
		t.Errorf("expected 3 members, got %d", len(sp.Members))
	}

	sm.RemoveMember(speciesID, 101)
	if len(sp.Members) != 2 {
		t.Errorf("expected 2 members after removal, got %d", len(sp.Members))
	}

	sm.ClearMembers()
	if len(sp.Members) != 0 {
		t.Errorf("expected 0 members after clear, got %d", len(sp.Members))
	}
}

func TestSpeciate(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	pop := make(map[int]*genetics.Genome)
	for id := 1; id <= 6; id++ {
		pop[id] = CreateBrainGenome(id, testInputs, 0.5, rng)
	}

	tests := []struct {
		name      string
		threshold float64
		want      int
	}{
		{"one species", 1e9, 1},
		{"every genome alone", 0, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultNEATOptions()
			opts.CompatThreshold = tt.threshold
			sm := NewSpeciesManager(opts)

			assignment := sm.Speciate(pop)
			if len(assignment) != len(pop) {
				t.Fatalf("expected %d assignments, got %d", len(pop), len(assignment))
			}
			if len(sm.Species) != tt.want {
				t.Errorf("expected %d species, got %d", tt.want, len(sm.Species))
			}
			for id, spID := range assignment {
				sp := sm.GetSpecies(spID)
				if sp == nil {
					t.Fatalf("genome %d assigned to missing species %d", id, spID)
				}
				if sp.Representative != pop[sp.Members[0]] {
					t.Errorf("species %d representative is not its first member", spID)
				}
			}
		})
	}
}

func TestSpeciateDropsEmptySpecies(t *testing.T) {
	opts := DefaultNEATOptions()
	opts.CompatThreshold = 0
	sm := NewSpeciesManager(opts)
	rng := rand.New(rand.NewSource(2))

	first := map[int]*genetics.Genome{1: CreateBrainGenome(1, testInputs, 0.5, rng)}
	sm.Speciate(first)
	second := map[int]*genetics.Genome{2: CreateBrainGenome(2, testInputs, 0.5, rng)}
	sm.Speciate(second)

	if len(sm.Species) != 1 {
		t.Errorf("expected only the populated species to remain, got %d", len(sm.Species))
	}
}

func TestSpeciesFitness(t *testing.T) {
	sm := NewSpeciesManager(DefaultNEATOptions())
	genome := CreateBrainGenome(1, testInputs, 0.3, rand.New(rand.NewSource(1)))
	speciesID := sm.AssignSpecies(genome)
	sm.AddMember(speciesID, 1)

	sm.AccumulateFitness(speciesID, 10.0)
	sm.AccumulateFitness(speciesID, 20.0)

	sp := sm.GetSpecies(speciesID)
	if sp.BestFitness != 20.0 {
		t.Errorf("expected best fitness 20, got %f", sp.BestFitness)
	}
	if sp.TotalFitness != 30.0 {
		t.Errorf("expected total fitness 30, got %f", sp.TotalFitness)
	}
}

func TestEndGeneration(t *testing.T) {
	sm := NewSpeciesManager(DefaultNEATOptions())
	genome := CreateBrainGenome(1, testInputs, 0.3, rand.New(rand.NewSource(1)))
	speciesID := sm.AssignSpecies(genome)
	sm.AddMember(speciesID, 1)
	sm.AddMember(speciesID, 2)
	sm.AccumulateFitness(speciesID, 100.0)
	sm.AccumulateFitness(speciesID, 50.0)

	sm.EndGeneration()

	if sm.GetGeneration() != 1 {
		t.Errorf("generation should be 1, got %d", sm.GetGeneration())
	}
	sp := sm.GetSpecies(speciesID)
	if sp.Age != 1 {
		t.Errorf("species age should be 1, got %d", sp.Age)
	}
	if sp.AvgFitness != 75 {
		t.Errorf("expected average fitness 75, got %f", sp.AvgFitness)
	}
	if sp.Staleness != 0 {
		t.Errorf("improving species should not be stale, got %d", sp.Staleness)
	}
	if sp.TotalFitness != 0 {
		t.Errorf("total fitness should be reset to 0, got %f", sp.TotalFitness)
	}

	sm.EndGeneration()
	if sp.Staleness != 1 {
		t.Errorf("expected staleness 1 without improvement, got %d", sp.Staleness)
	}
}

func TestRecordOffspring(t *testing.T) {
	sm := NewSpeciesManager(DefaultNEATOptions())
	genome := CreateBrainGenome(1, testInputs, 0.3, rand.New(rand.NewSource(1)))
	speciesID := sm.AssignSpecies(genome)

	sm.RecordOffspring(speciesID)
	sm.RecordOffspring(speciesID)
	sm.RecordOffspring(speciesID)

	if sp := sm.GetSpecies(speciesID); sp.OffspringCount != 3 {
		t.Errorf("expected 3 offspring, got %d", sp.OffspringCount)
	}
}

func TestRemoveStaleSpecies(t *testing.T) {
	opts := DefaultNEATOptions()
	opts.DropOffAge = 3
	opts.CompatThreshold = 0
	sm := NewSpeciesManager(opts)
	rng := rand.New(rand.NewSource(1))

	best := sm.AssignSpecies(CreateBrainGenome(1, testInputs, 0.3, rng))
	weak := sm.AssignSpecies(CreateBrainGenome(2, testInputs, 0.3, rng))
	sm.AddMember(best, 1)
	sm.AddMember(weak, 2)
	sm.AccumulateFitness(best, 10)
	sm.AccumulateFitness(weak, 5)

	for i := 0; i < 4; i++ {
		sm.EndGeneration()
	}

	if sm.GetSpecies(weak) != nil {
		t.Error("stale species should have been removed")
	}
	if sm.GetSpecies(best) == nil {
		t.Error("best species must survive staleness")
	}
}

func TestSpeciesStats(t *testing.T) {
	opts := DefaultNEATOptions()
	opts.CompatThreshold = 0
	sm := NewSpeciesManager(opts)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 3; i++ {
		speciesID := sm.AssignSpecies(CreateBrainGenome(i+1, testInputs, 0.3, rng))
		for j := 0; j <= i; j++ {
			sm.AddMember(speciesID, i*10+j)
		}
	}

	stats := sm.GetStats()
	if stats.Count != 3 {
		t.Errorf("expected 3 species, got %d", stats.Count)
	}
	if stats.TotalMembers != 6 {
		t.Errorf("expected 6 members, got %d", stats.TotalMembers)
	}
	if stats.LargestSize != 3 || stats.SmallestSize != 1 {
		t.Errorf("expected sizes 3/1, got %d/%d", stats.LargestSize, stats.SmallestSize)
	}
}

func BenchmarkAssignSpecies(b *testing.B) {
	sm := NewSpeciesManager(DefaultNEATOptions())
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sm.AssignSpecies(CreateBrainGenome(i, 12, 0.3, rng))
	}
}
