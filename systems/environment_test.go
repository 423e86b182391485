package systems

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/pthm-cable/axiogen/config"
)

func TestNewEnvironmentLayout(t *testing.T) {
	cfg := config.WorldConfig{
		Width:  800,
		Height: 600,
		Border: 15,
		Walls:  []config.RectConfig{{X: 390, Y: 0, W: 20, H: 250}},
		Gate:   &config.RectConfig{X: 390, Y: 250, W: 20, H: 100},
		Switch: &config.PointConfig{X: 100, Y: 100},
		Goal:   &config.PointConfig{X: 700, Y: 300},
	}
	env := NewEnvironment(cfg, rand.New(rand.NewSource(1)))

	if len(env.Walls) != 5 {
		t.Errorf("walls = %d, want 4 border + 1", len(env.Walls))
	}
	if len(env.Gates) != 1 {
		t.Errorf("gates = %d, want 1", len(env.Gates))
	}
	if !env.HasSwitch || env.Switch != (Point{X: 100, Y: 100}) {
		t.Errorf("switch = %+v (%v)", env.Switch, env.HasSwitch)
	}
	if !env.HasGoal || env.Goal != (Point{X: 700, Y: 300}) {
		t.Errorf("goal = %+v (%v)", env.Goal, env.HasGoal)
	}
}

func TestNewEnvironmentSeeded(t *testing.T) {
	cfg := config.WorldConfig{
		Width:  800,
		Height: 600,
		Maze: config.MazeConfig{
			Count: 12, MinLength: 60, MaxLength: 200, Thickness: 20,
			MinX: 100, MaxX: 600, MinY: 100, MaxY: 400,
		},
		Food: config.FoodConfig{Count: 10, Margin: 20},
	}
	a := NewEnvironment(cfg, rand.New(rand.NewSource(7)))
	b := NewEnvironment(cfg, rand.New(rand.NewSource(7)))

	if !reflect.DeepEqual(a.Walls, b.Walls) {
		t.Error("maze walls differ for the same seed")
	}
	if !reflect.DeepEqual(a.Foods, b.Foods) {
		t.Error("food differs for the same seed")
	}
	if len(a.Walls) != 12 || len(a.Foods) != 10 {
		t.Errorf("walls=%d foods=%d, want 12 and 10", len(a.Walls), len(a.Foods))
	}
	for _, f := range a.Foods {
		if !a.InBounds(f, 20) {
			t.Errorf("food %+v outside margin", f)
		}
	}
}

func TestApplyRemovesEatenFoodOnce(t *testing.T) {
	cfg := config.WorldConfig{Width: 800, Height: 600, Food: config.FoodConfig{Count: 5, Margin: 10}}
	rng := rand.New(rand.NewSource(3))
	env := NewEnvironment(cfg, rng)
	orig := append([]Point(nil), env.Foods...)

	var m Mutations
	m.EatFood(1)
	m.EatFood(3)
	m.EatFood(1) // Two agents on the same pellet
	env.Apply(&m, rng)

	want := []Point{orig[0], orig[2], orig[4]}
	if !reflect.DeepEqual(env.Foods, want) {
		t.Errorf("foods = %v, want %v", env.Foods, want)
	}

	m.Reset()
	env.Apply(&m, rng)
	if len(env.Foods) != 3 {
		t.Errorf("reset mutations changed the world: %d foods", len(env.Foods))
	}
}

func TestApplyRespawnsFood(t *testing.T) {
	cfg := config.WorldConfig{Width: 800, Height: 600, Food: config.FoodConfig{Count: 4, Margin: 10, Respawn: true}}
	rng := rand.New(rand.NewSource(3))
	env := NewEnvironment(cfg, rng)
	orig := append([]Point(nil), env.Foods...)

	var m Mutations
	m.EatFood(2)
	env.Apply(&m, rng)

	if len(env.Foods) != 4 {
		t.Fatalf("foods = %d, want 4", len(env.Foods))
	}
	if env.Foods[2] == orig[2] {
		t.Error("eaten food was not moved")
	}
	if env.Foods[0] != orig[0] || env.Foods[1] != orig[1] || env.Foods[3] != orig[3] {
		t.Error("uneaten food moved")
	}
}

func TestGoalRelocation(t *testing.T) {
	cfg := config.WorldConfig{
		Width:    800,
		Height:   600,
		Goal:     &config.PointConfig{X: 400, Y: 300},
		Relocate: config.RelocateConfig{Every: 10, Margin: 100, OnReach: true},
	}
	rng := rand.New(rand.NewSource(11))
	env := NewEnvironment(cfg, rng)

	start := env.Goal
	for tick := 0; tick < 10; tick++ {
		env.Tick(tick, rng)
	}
	if env.Goal != start {
		t.Fatalf("goal moved before the interval: %+v", env.Goal)
	}

	env.Tick(10, rng)
	if env.Goal == start {
		t.Error("goal did not move at the interval")
	}
	if !env.InBounds(env.Goal, 100) {
		t.Errorf("goal %+v outside relocation margin", env.Goal)
	}

	moved := env.Goal
	var m Mutations
	m.ReachGoal()
	env.Apply(&m, rng)
	if env.Goal == moved {
		t.Error("goal did not move when reached")
	}
}

func TestCollidesAndTarget(t *testing.T) {
	env := &Environment{
		Width:  800,
		Height: 600,
		Walls:  []Rect{{X: 0, Y: 0, W: 10, H: 10}},
		Gates:  []Rect{{X: 100, Y: 100, W: 10, H: 10}},
		Foods:  []Point{{X: 50, Y: 60}},
	}

	if _, hit := env.Collides(BoxAt(105, 105, 4), false); hit {
		t.Error("open gate should not collide")
	}
	if idx, hit := env.Collides(BoxAt(105, 105, 4), true); !hit || idx != 1 {
		t.Errorf("closed gate = (%d, %v), want (1, true)", idx, hit)
	}
	if env.Target() != (Point{X: 50, Y: 60}) {
		t.Errorf("Target = %+v, want first food", env.Target())
	}

	env.Foods = nil
	if env.Target() != (Point{X: 400, Y: 300}) {
		t.Errorf("Target = %+v, want world center", env.Target())
	}
}
