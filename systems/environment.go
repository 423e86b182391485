package systems

import (
	"math/rand"
	"sort"

	"github.com/pthm-cable/axiogen/config"
)

// Environment is the static-plus-dynamic world an episode runs in.
// Walls are always solid; gates are solid only for agents without the key.
type Environment struct {
	Width    float64
	Height   float64
	Friction float64

	Walls []Rect
	Gates []Rect

	Switch    Point
	HasSwitch bool
	Goal      Point
	HasGoal   bool

	Foods []Point

	food     config.FoodConfig
	relocate config.RelocateConfig
}

// NewEnvironment builds a world from its config. Random placements (maze
// walls, food, a random goal) draw from rng so a seeded run is reproducible.
func NewEnvironment(cfg config.WorldConfig, rng *rand.Rand) *Environment {
	env := &Environment{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Friction: cfg.Friction,
		food:     cfg.Food,
		relocate: cfg.Relocate,
	}

	if t := cfg.Border; t > 0 {
		env.Walls = append(env.Walls,
			Rect{X: 0, Y: 0, W: cfg.Width, H: t},
			Rect{X: 0, Y: cfg.Height - t, W: cfg.Width, H: t},
			Rect{X: 0, Y: 0, W: t, H: cfg.Height},
			Rect{X: cfg.Width - t, Y: 0, W: t, H: cfg.Height},
		)
	}
	for _, w := range cfg.Walls {
		env.Walls = append(env.Walls, Rect(w))
	}
	env.Walls = append(env.Walls, mazeWalls(cfg.Maze, rng)...)

	if cfg.Gate != nil {
		env.Gates = append(env.Gates, Rect(*cfg.Gate))
	}
	if cfg.Switch != nil {
		env.Switch = Point(*cfg.Switch)
		env.HasSwitch = true
	}
	if cfg.Goal != nil {
		env.Goal = Point(*cfg.Goal)
		env.HasGoal = true
		if cfg.Relocate.Random {
			env.RelocateGoal(rng)
		}
	}

	env.Foods = make([]Point, 0, cfg.Food.Count)
	for i := 0; i < cfg.Food.Count; i++ {
		env.Foods = append(env.Foods, env.randomPoint(cfg.Food.Margin, rng))
	}

	return env
}

// mazeWalls places random horizontal or vertical interior walls.
func mazeWalls(m config.MazeConfig, rng *rand.Rand) []Rect {
	if m.Count <= 0 {
		return nil
	}
	walls := make([]Rect, 0, m.Count)
	for i := 0; i < m.Count; i++ {
		w := uniform(rng, m.MinLength, m.MaxLength)
		h := uniform(rng, m.MinLength, m.MaxLength)
		x := uniform(rng, m.MinX, m.MaxX)
		y := uniform(rng, m.MinY, m.MaxY)
		if rng.Float64() > 0.5 {
			walls = append(walls, Rect{X: x, Y: y, W: w, H: m.Thickness})
		} else {
			walls = append(walls, Rect{X: x, Y: y, W: m.Thickness, H: h})
		}
	}
	return walls
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

func (e *Environment) randomPoint(margin float64, rng *rand.Rand) Point {
	return Point{
		X: uniform(rng, margin, e.Width-margin),
		Y: uniform(rng, margin, e.Height-margin),
	}
}

// obstacle indexes walls first, then gates.
func (e *Environment) obstacle(i int) Rect {
	if i < len(e.Walls) {
		return e.Walls[i]
	}
	return e.Gates[i-len(e.Walls)]
}

func (e *Environment) obstacleCount(withGates bool) int {
	if withGates {
		return len(e.Walls) + len(e.Gates)
	}
	return len(e.Walls)
}

// Obstacle returns the box at index i as reported by Collides.
func (e *Environment) Obstacle(i int) Rect {
	return e.obstacle(i)
}

// Raycast returns the distance from origin along headingDeg to the nearest
// active obstacle, or maxRange if nothing is hit within range.
func (e *Environment) Raycast(origin Point, headingDeg, maxRange float64, withGates bool) float64 {
	dx, dy := direction(headingDeg)
	best := maxRange
	n := e.obstacleCount(withGates)
	for i := 0; i < n; i++ {
		if t, ok := rayAABB(origin.X, origin.Y, dx, dy, e.obstacle(i)); ok && t < best {
			best = t
		}
	}
	return best
}

// Collides returns the index of the first active obstacle that overlaps box.
func (e *Environment) Collides(box Rect, withGates bool) (int, bool) {
	n := e.obstacleCount(withGates)
	for i := 0; i < n; i++ {
		if box.Intersects(e.obstacle(i)) {
			return i, true
		}
	}
	return -1, false
}

// InBounds reports whether p lies at least margin away from every world edge.
func (e *Environment) InBounds(p Point, margin float64) bool {
	return p.X >= margin && p.X <= e.Width-margin &&
		p.Y >= margin && p.Y <= e.Height-margin
}

// Target is the point exam-style sensors track: the goal if there is one,
// else the first remaining food, else the world center.
func (e *Environment) Target() Point {
	if e.HasGoal {
		return e.Goal
	}
	if len(e.Foods) > 0 {
		return e.Foods[0]
	}
	return Point{X: e.Width / 2, Y: e.Height / 2}
}

// RelocateGoal moves the goal to a random point inside the relocation margin.
func (e *Environment) RelocateGoal(rng *rand.Rand) {
	e.Goal = e.randomPoint(e.relocate.Margin, rng)
}

// Tick applies time-driven world changes before agents act.
func (e *Environment) Tick(tick int, rng *rand.Rand) {
	if e.HasGoal && e.relocate.Every > 0 && tick > 0 && tick%e.relocate.Every == 0 {
		e.RelocateGoal(rng)
	}
}

// Mutations collects world changes requested by agents during one tick.
// Agents only read the world while computing; changes land in Apply.
type Mutations struct {
	eaten       map[int]struct{}
	goalReached bool
}

// EatFood marks food i as consumed.
func (m *Mutations) EatFood(i int) {
	if m.eaten == nil {
		m.eaten = make(map[int]struct{})
	}
	m.eaten[i] = struct{}{}
}

// ReachGoal records that some agent touched the goal.
func (m *Mutations) ReachGoal() {
	m.goalReached = true
}

// Reset clears the collected mutations for reuse.
func (m *Mutations) Reset() {
	clear(m.eaten)
	m.goalReached = false
}

// Apply commits collected mutations exactly once, in index order.
func (e *Environment) Apply(m *Mutations, rng *rand.Rand) {
	if len(m.eaten) > 0 {
		idx := make([]int, 0, len(m.eaten))
		for i := range m.eaten {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		if e.food.Respawn {
			for _, i := range idx {
				e.Foods[i] = e.randomPoint(e.food.Margin, rng)
			}
		} else {
			for k := len(idx) - 1; k >= 0; k-- {
				i := idx[k]
				e.Foods = append(e.Foods[:i], e.Foods[i+1:]...)
			}
		}
	}
	if m.goalReached && e.relocate.OnReach {
		e.RelocateGoal(rng)
	}
}
