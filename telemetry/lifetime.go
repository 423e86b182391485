package telemetry

import "sort"

// LifetimeStats tracks one agent over a single episode.
type LifetimeStats struct {
	GenomeID  int
	StartTick int
	EndTick   int
	Cause     string // Empty while the agent is still running
	Fitness   float64

	Collisions int
	Refuels    int
	Nudges     int
	PeakEnergy float64
}

// Ended reports whether the agent has stopped.
func (s *LifetimeStats) Ended() bool {
	return s.Cause != ""
}

// LifetimeTracker manages per-agent episode records keyed by genome ID.
type LifetimeTracker struct {
	stats map[int]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[int]*LifetimeStats),
	}
}

// Register creates a record for an agent starting at tick.
func (lt *LifetimeTracker) Register(genomeID, tick int, energy float64) {
	lt.stats[genomeID] = &LifetimeStats{
		GenomeID:   genomeID,
		StartTick:  tick,
		PeakEnergy: energy,
	}
}

// Get returns the record for a genome, or nil if not found.
func (lt *LifetimeTracker) Get(genomeID int) *LifetimeStats {
	return lt.stats[genomeID]
}

// UpdateEnergy tracks peak energy.
func (lt *LifetimeTracker) UpdateEnergy(genomeID int, energy float64) {
	if s := lt.stats[genomeID]; s != nil && energy > s.PeakEnergy {
		s.PeakEnergy = energy
	}
}

// End closes a record. Only the first call per agent has any effect, so a
// stop is recorded exactly once. Returns true if the record was closed.
func (lt *LifetimeTracker) End(genomeID, tick int, cause string, fitness float64, collisions, refuels, nudges int) bool {
	s := lt.stats[genomeID]
	if s == nil || s.Ended() || cause == "" {
		return false
	}
	s.EndTick = tick
	s.Cause = cause
	s.Fitness = fitness
	s.Collisions = collisions
	s.Refuels = refuels
	s.Nudges = nudges
	return true
}

// Records returns every record ordered by genome ID.
func (lt *LifetimeTracker) Records() []LifetimeStats {
	out := make([]LifetimeStats, 0, len(lt.stats))
	for _, s := range lt.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GenomeID < out[j].GenomeID })
	return out
}

// Count returns the number of tracked agents.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}

// CauseCounts tallies ended records by cause.
func (lt *LifetimeTracker) CauseCounts() map[string]int {
	counts := make(map[string]int)
	for _, s := range lt.stats {
		if s.Ended() {
			counts[s.Cause]++
		}
	}
	return counts
}
