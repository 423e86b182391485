package neural

import (
	"sort"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
)

// Species represents a group of genetically similar genomes.
type Species struct {
	ID             int
	Representative *genetics.Genome // Used for compatibility comparisons
	Members        []int            // Genome IDs of members
	BestFitness    float64          // Best fitness ever seen in this species
	AvgFitness     float64          // Mean fitness of the last finished generation
	TotalFitness   float64
	Age            int // Generations since species was created
	Staleness      int // Generations without fitness improvement
	OffspringCount int

	improved bool // BestFitness rose during the current generation
}

// SpeciesManager manages speciation for the population.
type SpeciesManager struct {
	Species       []*Species
	opts          *neat.Options
	nextSpeciesID int
	generation    int
}

// NewSpeciesManager creates a new species manager.
func NewSpeciesManager(opts *neat.Options) *SpeciesManager {
	return &SpeciesManager{
		Species:       make([]*Species, 0),
		opts:          opts,
		nextSpeciesID: 1,
	}
}

// AssignSpecies finds or creates a species for the given genome.
// Returns the species ID.
func (sm *SpeciesManager) AssignSpecies(genome *genetics.Genome) int {
	if genome == nil {
		return 0
	}

	for _, sp := range sm.Species {
		if sp.Representative == nil {
			continue
		}
		if GenomeCompatibility(genome, sp.Representative, sm.opts) < sm.opts.CompatThreshold {
			return sp.ID
		}
	}

	newSpecies := &Species{
		ID:             sm.nextSpeciesID,
		Representative: genome,
		Members:        make([]int, 0),
	}
	sm.nextSpeciesID++
	sm.Species = append(sm.Species, newSpecies)

	return newSpecies.ID
}

// GetSpecies returns the species with the given ID, or nil.
func (sm *SpeciesManager) GetSpecies(speciesID int) *Species {
	for _, sp := range sm.Species {
		if sp.ID == speciesID {
			return sp
		}
	}
	return nil
}

// GetGeneration returns the number of finished generations.
func (sm *SpeciesManager) GetGeneration() int {
	return sm.generation
}

// AddMember adds a genome to its species.
func (sm *SpeciesManager) AddMember(speciesID int, genomeID int) {
	if sp := sm.GetSpecies(speciesID); sp != nil {
		sp.Members = append(sp.Members, genomeID)
	}
}

// RemoveMember removes a genome from its species.
func (sm *SpeciesManager) RemoveMember(speciesID int, genomeID int) {
	sp := sm.GetSpecies(speciesID)
	if sp == nil {
		return
	}
	for i, id := range sp.Members {
		if id == genomeID {
			sp.Members = append(sp.Members[:i], sp.Members[i+1:]...)
			return
		}
	}
}

// ClearMembers empties every species while keeping representatives, ready
// for the next generation to be assigned.
func (sm *SpeciesManager) ClearMembers() {
	for _, sp := range sm.Species {
		sp.Members = sp.Members[:0]
	}
}

// Speciate assigns every genome in pop to a species, in ascending ID order.
// Returns genome ID -> species ID.
func (sm *SpeciesManager) Speciate(pop map[int]*genetics.Genome) map[int]int {
	sm.ClearMembers()

	ids := make([]int, 0, len(pop))
	for id := range pop {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	assignment := make(map[int]int, len(pop))
	for _, id := range ids {
		spID := sm.AssignSpecies(pop[id])
		sm.AddMember(spID, id)
		assignment[id] = spID
	}

	// Species that received nobody are dropped; the rest take their first
	// member as the representative for the next round.
	active := sm.Species[:0]
	for _, sp := range sm.Species {
		if len(sp.Members) > 0 {
			sp.Representative = pop[sp.Members[0]]
			active = append(active, sp)
		}
	}
	sm.Species = active

	return assignment
}

// AccumulateFitness adds to the total fitness for a species member.
func (sm *SpeciesManager) AccumulateFitness(speciesID int, fitness float64) {
	sp := sm.GetSpecies(speciesID)
	if sp == nil {
		return
	}
	sp.TotalFitness += fitness
	if fitness > sp.BestFitness {
		sp.BestFitness = fitness
		sp.improved = true
	}
}

// RecordOffspring increments the offspring count for a species.
func (sm *SpeciesManager) RecordOffspring(speciesID int) {
	if sp := sm.GetSpecies(speciesID); sp != nil {
		sp.OffspringCount++
	}
}

// EndGeneration processes end-of-generation updates.
// Should be called once per generation after all fitness values are accumulated.
func (sm *SpeciesManager) EndGeneration() {
	sm.generation++

	for _, sp := range sm.Species {
		sp.Age++
		if len(sp.Members) > 0 {
			sp.AvgFitness = sp.TotalFitness / float64(len(sp.Members))
		}
		if sp.improved {
			sp.Staleness = 0
		} else {
			sp.Staleness++
		}
		sp.improved = false
		sp.TotalFitness = 0
	}

	sm.RemoveStaleSpecies()
}

// RemoveStaleSpecies removes species that have no members or are too stale.
// The species holding the best fitness is never removed.
func (sm *SpeciesManager) RemoveStaleSpecies() {
	var best *Species
	for _, sp := range sm.Species {
		if len(sp.Members) > 0 && (best == nil || sp.BestFitness > best.BestFitness) {
			best = sp
		}
	}

	active := make([]*Species, 0, len(sm.Species))
	for _, sp := range sm.Species {
		if sp == best || (len(sp.Members) > 0 && sp.Staleness < sm.opts.DropOffAge) {
			active = append(active, sp)
		}
	}
	sm.Species = active
}

// SpeciesStats contains summary statistics about all species.
type SpeciesStats struct {
	Count            int
	TotalMembers     int
	LargestSize      int
	SmallestSize     int
	AverageStaleness float64
	Generation       int
	TotalOffspring   int
	BestFitness      float64
}

// GetStats returns summary statistics about species distribution.
func (sm *SpeciesManager) GetStats() SpeciesStats {
	if len(sm.Species) == 0 {
		return SpeciesStats{Generation: sm.generation}
	}

	stats := SpeciesStats{
		Count:        len(sm.Species),
		SmallestSize: int(^uint(0) >> 1),
		Generation:   sm.generation,
	}

	totalStaleness := 0
	for _, sp := range sm.Species {
		size := len(sp.Members)
		stats.TotalMembers += size
		stats.TotalOffspring += sp.OffspringCount
		stats.BestFitness = max(stats.BestFitness, sp.BestFitness)
		stats.LargestSize = max(stats.LargestSize, size)
		if size > 0 && size < stats.SmallestSize {
			stats.SmallestSize = size
		}
		totalStaleness += sp.Staleness
	}

	stats.AverageStaleness = float64(totalStaleness) / float64(stats.Count)
	if stats.SmallestSize == int(^uint(0)>>1) {
		stats.SmallestSize = 0
	}

	return stats
}
