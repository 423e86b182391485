// Package components defines ECS components for embodied agents.
package components

// Pose is an agent's world position and heading in degrees.
type Pose struct {
	X, Y    float64
	Heading float64
}

// Motion holds the scalar forward speed along the heading.
type Motion struct {
	Speed float64
}

// Vitals holds the metabolic state of an agent.
// Alive goes false exactly once and never returns.
type Vitals struct {
	Energy    float64
	MaxEnergy float64
	Pain      float64 // 1.0 on the tick of a collision, else 0
	Alive     bool
}

// Cell addresses one square of the exploration grid.
type Cell struct {
	X, Y int32
}

// Progress holds per-episode fitness and shaping state.
type Progress struct {
	Fitness    float64
	HasKey     bool // Milestone reached; gates become passable
	Success    bool // Terminal goal reached
	Stagnation int  // Ticks since the last new cell or milestone
	Visited    map[Cell]struct{}

	// Counters for reporting
	Collisions int
	Refuels    int
	Nudges     int
}

// Agent links an entity back to the genome it embodies.
type Agent struct {
	GenomeID int
	Slot     int // Index into the evaluator's per-agent tables
}

// Death causes reported when an agent stops.
const (
	CauseNone       = ""
	CauseEnergy     = "energy"
	CauseStagnation = "stagnation"
	CauseBoundary   = "boundary"
	CauseGoal       = "goal"
	CauseTimeout    = "timeout"
)
