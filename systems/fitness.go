package systems

import (
	"math"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/config"
)

// ShapeResult reports the discrete events of one shaping pass.
type ShapeResult struct {
	Delta       float64 // Fitness change this tick
	Milestone   bool    // Key acquired this tick
	GoalReached bool
	Success     bool // Terminal goal reached
	Stagnated   bool
	Eaten       []int // Indices of food consumed this tick
}

// FitnessShaper turns per-tick agent state into incremental fitness.
// All state it touches is agent-local, so agents can be shaped concurrently.
type FitnessShaper struct {
	cfg config.ShapingConfig
}

// NewFitnessShaper creates a shaper for the given rules.
func NewFitnessShaper(cfg config.ShapingConfig) *FitnessShaper {
	return &FitnessShaper{cfg: cfg}
}

// Apply scores one tick for one agent. The eaten slice is reused for the
// result's food indices.
func (s *FitnessShaper) Apply(env *Environment, pose components.Pose, vitals *components.Vitals, prog *components.Progress, step StepResult, eaten []int) ShapeResult {
	c := &s.cfg
	before := prog.Fitness
	res := ShapeResult{Eaten: eaten[:0]}

	if step.Collided {
		prog.Fitness -= c.CollisionPenalty
		prog.Collisions++
	}
	if step.Idle {
		prog.Fitness -= c.IdlePenalty
	}
	if step.OutOfBounds {
		prog.Fitness -= c.BoundaryPenalty
	}

	if !vitals.Alive {
		res.Delta = prog.Fitness - before
		return res
	}

	at := Point{X: pose.X, Y: pose.Y}
	progressed := false

	if c.FoodRadius > 0 {
		for i, f := range env.Foods {
			if at.Dist(f) < c.FoodRadius {
				res.Eaten = append(res.Eaten, i)
				prog.Fitness += c.FoodReward
				prog.Refuels++
				Refuel(vitals, c.FoodEnergy)
				break // One food per tick
			}
		}
	}

	switch {
	case env.HasSwitch && !prog.HasKey:
		d := at.Dist(env.Switch)
		prog.Fitness += (c.MaxDistance - d) * c.SwitchWeight
		if d < c.MilestoneRadius {
			prog.HasKey = true
			prog.Fitness += c.MilestoneBonus
			res.Milestone = true
			progressed = true
		}
	case env.HasGoal:
		d := at.Dist(env.Goal)
		prog.Fitness += (c.MaxDistance - d) * c.GoalWeight
		if d < c.GoalRadius {
			prog.Fitness += c.GoalBonus
			res.GoalReached = true
			progressed = true
			if c.GoalTerminal {
				prog.Success = true
				vitals.Alive = false
				res.Success = true
			} else if c.GoalEnergy > 0 {
				prog.Refuels++
				Refuel(vitals, c.GoalEnergy)
			}
		}
	}

	if c.SectorSize > 0 {
		cell := components.Cell{
			X: int32(math.Floor(pose.X / c.SectorSize)),
			Y: int32(math.Floor(pose.Y / c.SectorSize)),
		}
		if prog.Visited == nil {
			prog.Visited = make(map[components.Cell]struct{})
		}
		if _, seen := prog.Visited[cell]; seen {
			prog.Fitness -= c.RevisitPenalty
		} else {
			prog.Visited[cell] = struct{}{}
			prog.Fitness += c.NoveltyBonus
			progressed = true
		}
	}

	if c.StagnationLimit > 0 && vitals.Alive {
		if progressed {
			prog.Stagnation = 0
		} else {
			prog.Stagnation++
		}
		if prog.Stagnation > c.StagnationLimit {
			vitals.Alive = false
			res.Stagnated = true
		}
	}

	res.Delta = prog.Fitness - before
	return res
}
