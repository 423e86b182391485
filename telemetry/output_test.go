package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/config"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if om != nil {
		t.Fatal("expected nil manager for empty dir")
	}
	// Every method is nil-safe
	if err := om.WriteGeneration(GenerationStats{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteHallOfFame(NewHallOfFame(1)); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager failed: %v", err)
	}

	for gen := 0; gen < 3; gen++ {
		if err := om.WriteGeneration(GenerationStats{RunID: "r", Stage: "maze", Generation: gen, MaxFitness: float64(gen)}); err != nil {
			t.Fatalf("WriteGeneration failed: %v", err)
		}
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkPlateau, Stage: "maze", Generation: 2}); err != nil {
		t.Fatalf("WriteBookmark failed: %v", err)
	}

	lt := NewLifetimeTracker()
	lt.Register(1, 0, 10)
	lt.End(1, 4, components.CauseEnergy, 2, 0, 0, 0)
	if err := om.WriteEpisodes("maze", 0, lt); err != nil {
		t.Fatalf("WriteEpisodes failed: %v", err)
	}
	if err := om.WriteExam(ExamRecord{Planet: "snake", GenomeID: 1, Fitness: 3}); err != nil {
		t.Fatalf("WriteExam failed: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "generations.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "run_id,stage,generation") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if strings.Count(string(data), "run_id") != 1 {
		t.Error("header written more than once")
	}

	for _, name := range []string{"bookmarks.csv", "episodes.csv", "exam.csv", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	// Files never written to are not created
	if _, err := os.Stat(filepath.Join(dir, "perf.csv")); !os.IsNotExist(err) {
		t.Error("perf.csv should not exist without writes")
	}
}
