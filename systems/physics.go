// Package systems contains the per-tick rules of an episode: world geometry,
// sensing, embodied physics and fitness shaping.
package systems

import (
	"math"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/config"
)

// Action is the controller output for one tick, both in [-1, 1].
type Action struct {
	Accel float64
	Turn  float64
}

// ActionFromOutputs maps a controller output vector to an Action.
// Output 0 drives speed, output 1 drives turning.
func ActionFromOutputs(out []float64) Action {
	var a Action
	if len(out) > 0 {
		a.Accel = out[0]
	}
	if len(out) > 1 {
		a.Turn = out[1]
	}
	return a
}

// StepResult reports what happened to one agent during a physics step.
type StepResult struct {
	Collided    bool
	Obstacle    int // Index of the obstacle hit, valid when Collided
	Idle        bool
	Starved     bool // Energy reached zero on this step
	OutOfBounds bool
}

// Physics advances one embodied agent by one tick.
type Physics struct {
	agent          config.AgentConfig
	friction       float64
	boundaryMargin float64
}

// NewPhysics creates the physics rules for a scenario.
func NewPhysics(sc *config.ScenarioConfig) *Physics {
	return &Physics{
		agent:          sc.Agent,
		friction:       sc.World.Friction,
		boundaryMargin: sc.Shaping.BoundaryMargin,
	}
}

// Step applies one tick of motion, collision and metabolism. Dead agents
// are left untouched.
func (p *Physics) Step(env *Environment, pose *components.Pose, motion *components.Motion, vitals *components.Vitals, hasKey bool, act Action) StepResult {
	res := StepResult{Obstacle: -1}
	if !vitals.Alive {
		return res
	}
	a := &p.agent

	pose.Heading = normalizeHeading(pose.Heading + act.Turn*a.TurnGain)
	motion.Speed = clamp(motion.Speed+act.Accel*a.AccelGain, a.MinSpeed, a.MaxSpeed)

	dx, dy := direction(pose.Heading)
	nx := pose.X + dx*motion.Speed
	ny := pose.Y + dy*motion.Speed

	if idx, hit := env.Collides(BoxAt(nx, ny, a.BoxSize), !hasKey); hit {
		res.Collided = true
		res.Obstacle = idx
		if a.Collision == config.CollisionNudge {
			c := env.Obstacle(idx).Center()
			if pose.X < c.X {
				pose.X -= a.NudgeStep
			} else {
				pose.X += a.NudgeStep
			}
			if pose.Y < c.Y {
				pose.Y -= a.NudgeStep
			} else {
				pose.Y += a.NudgeStep
			}
		}
		// Bounce stays inside the speed bounds
		motion.Speed = clamp(a.BounceSpeed, a.MinSpeed, a.MaxSpeed)
		vitals.Pain = 1
	} else {
		pose.X, pose.Y = nx, ny
		vitals.Pain = 0
	}

	motion.Speed *= p.friction

	vitals.Energy -= a.Drain
	if a.IdleSpeed > 0 && motion.Speed < a.IdleSpeed {
		res.Idle = true
		vitals.Energy -= a.IdleDrain
	}

	if vitals.Energy <= 0 {
		vitals.Energy = 0
		vitals.Alive = false
		res.Starved = true
	}

	if p.boundaryMargin > 0 && vitals.Alive && !env.InBounds(Point{X: pose.X, Y: pose.Y}, p.boundaryMargin) {
		vitals.Alive = false
		res.OutOfBounds = true
	}

	return res
}

// Refuel raises energy by amount, capped at MaxEnergy.
// A non-positive amount refills to MaxEnergy.
func Refuel(v *components.Vitals, amount float64) {
	if amount <= 0 {
		v.Energy = v.MaxEnergy
		return
	}
	v.Energy = math.Min(v.MaxEnergy, v.Energy+amount)
}

func normalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}
