package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/config"
)

func newProgress() components.Progress {
	return components.Progress{Visited: make(map[components.Cell]struct{})}
}

func TestShapeNoveltyOncePerCell(t *testing.T) {
	s := NewFitnessShaper(config.ShapingConfig{SectorSize: 20, NoveltyBonus: 15, RevisitPenalty: 0.04})
	env := &Environment{Width: 800, Height: 600}
	vitals := alive(100)
	prog := newProgress()

	steps := []struct {
		x, y  float64
		delta float64
	}{
		{10, 10, 15},
		{15, 15, -0.04}, // Same cell
		{30, 10, 15},
		{5, 5, -0.04}, // Back to the first cell
	}
	for i, st := range steps {
		res := s.Apply(env, components.Pose{X: st.x, Y: st.y}, &vitals, &prog, StepResult{}, nil)
		if math.Abs(res.Delta-st.delta) > 1e-9 {
			t.Errorf("step %d: delta = %v, want %v", i, res.Delta, st.delta)
		}
	}
	if len(prog.Visited) != 2 {
		t.Errorf("visited cells = %d, want 2", len(prog.Visited))
	}
	if math.Abs(prog.Fitness-29.92) > 1e-9 {
		t.Errorf("fitness = %v, want 29.92", prog.Fitness)
	}
}

func TestShapeMilestoneOnce(t *testing.T) {
	s := NewFitnessShaper(config.ShapingConfig{
		MaxDistance:     800,
		MilestoneRadius: 40,
		MilestoneBonus:  5000,
		GoalRadius:      40,
		GoalBonus:       100,
	})
	env := &Environment{
		Width:     800,
		Height:    600,
		Switch:    Point{X: 100, Y: 100},
		HasSwitch: true,
		Goal:      Point{X: 700, Y: 500},
		HasGoal:   true,
	}
	vitals := alive(100)
	prog := newProgress()
	pose := components.Pose{X: 110, Y: 100}

	milestones := 0
	for i := 0; i < 5; i++ {
		if res := s.Apply(env, pose, &vitals, &prog, StepResult{}, nil); res.Milestone {
			milestones++
		}
	}
	if milestones != 1 {
		t.Errorf("milestones = %d, want 1", milestones)
	}
	if !prog.HasKey {
		t.Error("key not set")
	}
	if prog.Fitness < 5000 {
		t.Errorf("fitness = %v, want the milestone bonus included", prog.Fitness)
	}
}

func TestShapeGoal(t *testing.T) {
	env := &Environment{Width: 800, Height: 600, Goal: Point{X: 200, Y: 200}, HasGoal: true}
	pose := components.Pose{X: 210, Y: 200}

	t.Run("terminal", func(t *testing.T) {
		s := NewFitnessShaper(config.ShapingConfig{GoalRadius: 40, GoalBonus: 100, GoalTerminal: true})
		vitals := alive(100)
		prog := newProgress()
		res := s.Apply(env, pose, &vitals, &prog, StepResult{}, nil)
		if !res.GoalReached || !res.Success || !prog.Success {
			t.Errorf("res = %+v, want terminal success", res)
		}
		if vitals.Alive {
			t.Error("terminal goal should stop the agent")
		}
	})

	t.Run("refuel", func(t *testing.T) {
		s := NewFitnessShaper(config.ShapingConfig{GoalRadius: 40, GoalBonus: 1, GoalEnergy: 500})
		vitals := components.Vitals{Energy: 100, MaxEnergy: 1000, Alive: true}
		prog := newProgress()
		res := s.Apply(env, pose, &vitals, &prog, StepResult{}, nil)
		if !res.GoalReached || res.Success {
			t.Errorf("res = %+v, want non-terminal goal", res)
		}
		if !vitals.Alive || vitals.Energy != 600 {
			t.Errorf("vitals = %+v, want alive with 600 energy", vitals)
		}
		if prog.Refuels != 1 || prog.Fitness != 1 {
			t.Errorf("refuels=%d fitness=%v, want 1 and 1", prog.Refuels, prog.Fitness)
		}
	})
}

func TestShapeSwitchApproach(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	sc := cfg.Scenarios["gate"]
	p := NewPhysics(sc)
	s := NewFitnessShaper(sc.Shaping)
	env := &Environment{
		Width:     800,
		Height:    600,
		Switch:    Point{X: 100, Y: 100},
		HasSwitch: true,
		Goal:      Point{X: 700, Y: 300},
		HasGoal:   true,
	}

	pose := components.Pose{X: 100, Y: 500, Heading: 270}
	var motion components.Motion
	vitals := alive(sc.Agent.MaxEnergy)
	prog := newProgress()

	lastDist := Point{X: pose.X, Y: pose.Y}.Dist(env.Switch)
	lastFitness := prog.Fitness
	milestones := 0
	tick := 0
	for ; tick < 200 && milestones == 0; tick++ {
		step := p.Step(env, &pose, &motion, &vitals, prog.HasKey, Action{Accel: 1})
		res := s.Apply(env, pose, &vitals, &prog, step, nil)
		if res.Milestone {
			milestones++
		}
		d := Point{X: pose.X, Y: pose.Y}.Dist(env.Switch)
		if d >= lastDist {
			t.Fatalf("tick %d: distance %v did not shrink from %v", tick, d, lastDist)
		}
		if prog.Fitness <= lastFitness {
			t.Fatalf("tick %d: fitness %v did not rise from %v", tick, prog.Fitness, lastFitness)
		}
		lastDist, lastFitness = d, prog.Fitness
	}
	if milestones != 1 || !prog.HasKey {
		t.Fatalf("after %d ticks: milestones=%d hasKey=%v, want the switch reached", tick, milestones, prog.HasKey)
	}

	for i := 0; i < 20; i++ {
		step := p.Step(env, &pose, &motion, &vitals, prog.HasKey, Action{Accel: -1})
		res := s.Apply(env, pose, &vitals, &prog, step, nil)
		if res.Milestone {
			t.Errorf("milestone repeated %d ticks later", i+1)
		}
		if res.Delta >= sc.Shaping.MilestoneBonus {
			t.Errorf("tick %d after switch: delta %v includes a bonus", i+1, res.Delta)
		}
	}
}

func TestShapeFood(t *testing.T) {
	s := NewFitnessShaper(config.ShapingConfig{FoodRadius: 20, FoodReward: 10})
	env := &Environment{Width: 800, Height: 600, Foods: []Point{{X: 100, Y: 100}, {X: 300, Y: 300}}}
	vitals := components.Vitals{Energy: 10, MaxEnergy: 400, Alive: true}
	prog := newProgress()

	res := s.Apply(env, components.Pose{X: 105, Y: 100}, &vitals, &prog, StepResult{}, make([]int, 0, 4))
	if len(res.Eaten) != 1 || res.Eaten[0] != 0 {
		t.Fatalf("eaten = %v, want [0]", res.Eaten)
	}
	if prog.Fitness != 10 || prog.Refuels != 1 {
		t.Errorf("fitness=%v refuels=%d, want 10 and 1", prog.Fitness, prog.Refuels)
	}
	if vitals.Energy != 400 {
		t.Errorf("energy = %v, want refilled to 400", vitals.Energy)
	}
	// The world is untouched until mutations are applied
	if len(env.Foods) != 2 {
		t.Errorf("foods = %d, want 2", len(env.Foods))
	}
}

func TestShapeFoodOnePerTick(t *testing.T) {
	s := NewFitnessShaper(config.ShapingConfig{FoodRadius: 20, FoodReward: 10, FoodEnergy: 50})
	env := &Environment{Width: 800, Height: 600, Foods: []Point{{X: 100, Y: 100}, {X: 110, Y: 100}}}
	vitals := components.Vitals{Energy: 10, MaxEnergy: 400, Alive: true}
	prog := newProgress()

	res := s.Apply(env, components.Pose{X: 105, Y: 100}, &vitals, &prog, StepResult{}, nil)
	if len(res.Eaten) != 1 || res.Eaten[0] != 0 {
		t.Fatalf("eaten = %v, want only the first food", res.Eaten)
	}
	if prog.Fitness != 10 || prog.Refuels != 1 {
		t.Errorf("fitness=%v refuels=%d, want 10 and 1", prog.Fitness, prog.Refuels)
	}
	if vitals.Energy != 60 {
		t.Errorf("energy = %v, want 60", vitals.Energy)
	}
}

func TestShapeStagnation(t *testing.T) {
	s := NewFitnessShaper(config.ShapingConfig{StagnationLimit: 3})
	env := &Environment{Width: 800, Height: 600}
	vitals := alive(100)
	prog := newProgress()

	for i := 1; i <= 4; i++ {
		res := s.Apply(env, components.Pose{X: 400, Y: 300}, &vitals, &prog, StepResult{}, nil)
		if got, want := res.Stagnated, i == 4; got != want {
			t.Errorf("tick %d: Stagnated = %v, want %v", i, got, want)
		}
	}
	if vitals.Alive {
		t.Error("stagnated agent should stop")
	}
}

func TestShapePenalties(t *testing.T) {
	s := NewFitnessShaper(config.ShapingConfig{CollisionPenalty: 0.5, IdlePenalty: 0.1, BoundaryPenalty: 5})
	env := &Environment{Width: 800, Height: 600}

	vitals := alive(100)
	prog := newProgress()
	res := s.Apply(env, components.Pose{X: 400, Y: 300}, &vitals, &prog, StepResult{Collided: true, Idle: true}, nil)
	if math.Abs(res.Delta-(-0.6)) > 1e-9 {
		t.Errorf("delta = %v, want -0.6", res.Delta)
	}
	if prog.Collisions != 1 {
		t.Errorf("collisions = %d, want 1", prog.Collisions)
	}

	dead := components.Vitals{MaxEnergy: 100}
	res = s.Apply(env, components.Pose{X: 900, Y: 300}, &dead, &prog, StepResult{OutOfBounds: true}, nil)
	if math.Abs(res.Delta-(-5)) > 1e-9 {
		t.Errorf("delta = %v, want -5", res.Delta)
	}
}
