// Package game runs evaluation episodes: one generation of genomes embodied
// as agents in a scenario world, stepped tick by tick until the budget runs
// out or no agent is left.
package game

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/axiogen/storage"
	"github.com/pthm-cable/axiogen/telemetry"
)

// Phase is the evaluator's state within one generation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInit
	PhaseRunning
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseRunning:
		return "running"
	case PhaseDone:
		return "done"
	default:
		return "idle"
	}
}

// StatsSink receives per-generation reports. *telemetry.OutputManager
// satisfies it.
type StatsSink interface {
	WriteGeneration(stats telemetry.GenerationStats) error
	WriteEpisodes(stage string, generation int, lt *telemetry.LifetimeTracker) error
	WritePerf(stats telemetry.PerfStats, stage string, generation int) error
}

// CheckpointSink persists the champion of a completed generation.
// Every storage.Store satisfies it.
type CheckpointSink interface {
	Save(ctx context.Context, cp storage.Checkpoint) error
}

// RunContext carries everything a generation needs that outlives it:
// identity for reports, the seeded random source and the output sinks.
type RunContext struct {
	RunID      string
	Stage      string
	Generation int
	Seed       int64
	RNG        *rand.Rand
	Species    int // Species count reported alongside the generation

	Logger      *slog.Logger
	Stats       StatsSink      // Optional
	Checkpoints CheckpointSink // Optional
}

// NewRunContext creates a context seeded from seed.
func NewRunContext(runID, stage string, seed int64) *RunContext {
	return &RunContext{
		RunID:  runID,
		Stage:  stage,
		Seed:   seed,
		RNG:    rand.New(rand.NewSource(seed)),
		Logger: slog.Default(),
	}
}

func (rc *RunContext) logger() *slog.Logger {
	if rc.Logger == nil {
		return slog.Default()
	}
	return rc.Logger
}
