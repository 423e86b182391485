package exam

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/config"
	"github.com/pthm-cable/axiogen/game"
	"github.com/pthm-cable/axiogen/neural"
	"github.com/pthm-cable/axiogen/systems"
	"github.com/pthm-cable/axiogen/storage"
	"github.com/pthm-cable/axiogen/telemetry"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		survived bool
		score    int
		want     string
	}{
		{true, 3, StatusGraduated},
		{true, 0, StatusFailed},
		{false, 5, StatusFailed},
		{false, 0, StatusFailed},
	}
	for _, tt := range tests {
		if got := Grade(tt.survived, tt.score); got != tt.want {
			t.Errorf("Grade(%v, %d) = %s, want %s", tt.survived, tt.score, got, tt.want)
		}
	}
}

func examConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	for _, p := range cfg.Exam.Planets {
		cfg.Scenarios[p].Ticks = 50
	}
	return cfg
}

func TestRunAllPlanets(t *testing.T) {
	ctx := context.Background()
	cfg := examConfig(t)

	store := storage.NewMemoryStore()
	champion := neural.CreateMinimalBrainGenome(7, 12, rand.New(rand.NewSource(1)))
	data, err := neural.EncodeGenome(champion)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, storage.Checkpoint{Stage: cfg.Exam.Champion, GenomeID: 7, Genome: data}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	out, err := telemetry.NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	records, err := Run(ctx, cfg, store, out, Options{RunID: "exam", Seed: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	if len(records) != len(cfg.Exam.Planets) {
		t.Fatalf("records = %d, want %d", len(records), len(cfg.Exam.Planets))
	}
	for i, rec := range records {
		if rec.Planet != cfg.Exam.Planets[i] {
			t.Errorf("record %d planet = %s, want %s", i, rec.Planet, cfg.Exam.Planets[i])
		}
		if rec.GenomeID != 7 {
			t.Errorf("record %d genome = %d, want 7", i, rec.GenomeID)
		}
		want := Grade(rec.Cause == components.CauseTimeout, rec.Score)
		if rec.Status != want {
			t.Errorf("%s: status %s, want %s (cause %s, score %d)", rec.Planet, rec.Status, want, rec.Cause, rec.Score)
		}
		if rec.Ticks > 50 {
			t.Errorf("%s: ticks = %d, want at most 50", rec.Planet, rec.Ticks)
		}
	}

	data, err = os.ReadFile(filepath.Join(dir, "exam.csv"))
	if err != nil {
		t.Fatalf("exam.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != len(records)+1 {
		t.Errorf("exam.csv has %d lines, want header + %d", len(lines), len(records))
	}
	if !strings.HasPrefix(lines[0], "planet,score,status") {
		t.Errorf("header = %q", lines[0])
	}
}

// keyRecorder hands out controllers that record the key input and idle.
type keyRecorder struct {
	slot int

	mu   sync.Mutex
	seen []float64
}

func (r *keyRecorder) Controller(*genetics.Genome) (neural.Controller, error) {
	return neural.ControllerFunc(func(in []float64) ([]float64, error) {
		r.mu.Lock()
		r.seen = append(r.seen, in[r.slot])
		r.mu.Unlock()
		return []float64{0, 0}, nil
	}), nil
}

// keySlot returns the index of the key input in a scenario's vector.
func keySlot(sc *config.ScenarioConfig) int {
	n := 0
	for _, slot := range sc.Inputs {
		switch slot {
		case systems.InputKey:
			return n
		case systems.InputRadar:
			n += len(sc.Sensor.Angles)
		default:
			n++
		}
	}
	return -1
}

func TestPlanetsStartWithKey(t *testing.T) {
	cfg := examConfig(t)
	for i, planet := range cfg.Exam.Planets {
		t.Run(planet, func(t *testing.T) {
			sc := cfg.Scenarios[planet]
			sc.Ticks = 5
			rec := &keyRecorder{slot: keySlot(sc)}
			if rec.slot < 0 {
				t.Fatalf("no key input in %v", sc.Inputs)
			}

			ev, err := game.NewEvaluator(planet, sc, rec, game.Options{Workers: 1})
			if err != nil {
				t.Fatal(err)
			}
			g := neural.CreateMinimalBrainGenome(1, 12, rand.New(rand.NewSource(1)))
			rc := game.NewRunContext("exam", planet, int64(i+1))
			if _, err := ev.RunGeneration(context.Background(), rc, neural.Population{g.Id: g}); err != nil {
				t.Fatalf("RunGeneration: %v", err)
			}

			if len(rec.seen) == 0 {
				t.Fatal("controller never ran")
			}
			for tick, v := range rec.seen {
				if v != 1 {
					t.Errorf("tick %d: key input = %v, want 1", tick, v)
				}
			}
		})
	}
}

func TestRunMissingChampion(t *testing.T) {
	cfg := examConfig(t)
	_, err := Run(context.Background(), cfg, storage.NewMemoryStore(), nil, Options{})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
