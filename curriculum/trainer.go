package curriculum

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/axiogen/config"
	"github.com/pthm-cable/axiogen/game"
	"github.com/pthm-cable/axiogen/neural"
	"github.com/pthm-cable/axiogen/storage"
	"github.com/pthm-cable/axiogen/systems"
	"github.com/pthm-cable/axiogen/telemetry"
)

// Stage seeds are spaced apart so neighbouring stages never share a stream.
const stageSeedStride = 1_000_003

// Reporter receives everything a stage writes besides checkpoints.
// *telemetry.OutputManager satisfies it.
type Reporter interface {
	game.StatsSink
	WriteBookmark(b telemetry.Bookmark) error
	WriteHallOfFame(hof *telemetry.HallOfFame) error
}

// Options configure a Trainer.
type Options struct {
	RunID   string
	Seed    int64
	Workers int // Overrides run.workers when positive
	Logger  *slog.Logger
}

// StageResult summarizes one finished stage.
type StageResult struct {
	Stage       string
	Generations int
	Seeded      bool
	Best        telemetry.HallEntry
	Last        telemetry.GenerationStats
}

// Trainer runs curriculum stages against a checkpoint store.
type Trainer struct {
	cfg    *config.Config
	store  storage.Store
	out    Reporter
	hall   *telemetry.HallOfFame
	opts   Options
	logger *slog.Logger
}

// NewTrainer creates a trainer. out may be nil to disable reports.
func NewTrainer(cfg *config.Config, store storage.Store, out Reporter, opts Options) *Trainer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{
		cfg:    cfg,
		store:  store,
		out:    out,
		hall:   telemetry.NewHallOfFame(10),
		opts:   opts,
		logger: logger,
	}
}

// HallOfFame returns the champions collected so far.
func (t *Trainer) HallOfFame() *telemetry.HallOfFame {
	return t.hall
}

// Run executes the named stages in curriculum order, or every stage when
// names is empty.
func (t *Trainer) Run(ctx context.Context, names ...string) ([]StageResult, error) {
	stages := t.cfg.Curriculum
	if len(names) > 0 {
		want := make(map[string]bool, len(names))
		for _, n := range names {
			if _, err := t.cfg.Stage(n); err != nil {
				return nil, err
			}
			want[n] = true
		}
		stages = nil
		for _, st := range t.cfg.Curriculum {
			if want[st.Name] {
				stages = append(stages, st)
			}
		}
	}

	results := make([]StageResult, 0, len(stages))
	for _, st := range stages {
		res, err := t.RunStage(ctx, st)
		if err != nil {
			return results, fmt.Errorf("stage %s: %w", st.Name, err)
		}
		results = append(results, *res)
	}
	return results, nil
}

// stageSeed derives a stage's seed from its position in the curriculum so a
// stage run on its own draws the same numbers as inside a full run.
func (t *Trainer) stageSeed(name string) int64 {
	for i, st := range t.cfg.Curriculum {
		if st.Name == name {
			return t.opts.Seed + int64(i+1)*stageSeedStride
		}
	}
	return t.opts.Seed
}

// RunStage evolves one stage for its configured number of generations.
func (t *Trainer) RunStage(ctx context.Context, stage config.StageConfig) (*StageResult, error) {
	sc, err := t.cfg.Scenario(stage.Scenario)
	if err != nil {
		return nil, err
	}
	inputs, err := systems.NewSensorModel(sc.Sensor).InputCount(sc.Inputs)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", stage.Scenario, err)
	}

	seed := t.stageSeed(stage.Name)
	popSize := t.cfg.Run.PopulationSize
	evo := t.cfg.Evolution
	engine := neural.NewNEATEngine(
		neural.OptionsFromConfig(evo, popSize),
		inputs,
		evo.InitialConnectionProb,
		evo.Elitism,
		rand.New(rand.NewSource(seed+1)),
	)

	workers := t.cfg.Run.Workers
	if t.opts.Workers > 0 {
		workers = t.opts.Workers
	}
	ev, err := game.NewEvaluator(stage.Name, sc, engine, game.Options{
		Workers:    workers,
		PerfWindow: t.cfg.Telemetry.PerfWindow,
	})
	if err != nil {
		return nil, err
	}

	log := t.logger.With("stage", stage.Name)
	seeder := &Seeder{Store: t.store, Engine: engine, Inputs: inputs, Logger: log}
	pop, seeded, err := seeder.Initial(ctx, stage.SeedFrom, popSize)
	if err != nil {
		return nil, fmt.Errorf("initial population: %w", err)
	}

	rc := game.NewRunContext(t.opts.RunID, stage.Name, seed)
	rc.Logger = log
	rc.Checkpoints = t.store
	if t.out != nil {
		rc.Stats = t.out
	}

	log.Info("stage started", "scenario", stage.Scenario, "generations", stage.Generations, "population", len(pop), "inputs", inputs, "seeded", seeded)

	bookmarks := telemetry.NewBookmarkDetector(10)
	result := &StageResult{Stage: stage.Name, Seeded: seeded}
	logEvery := max(1, t.cfg.Telemetry.LogEvery)

	for gen := 0; gen < stage.Generations; gen++ {
		rc.Generation = gen
		rc.Species = len(engine.Species().Species)

		res, err := ev.RunGeneration(ctx, rc, pop)
		if err != nil {
			return result, fmt.Errorf("generation %d: %w", gen, err)
		}
		result.Generations = gen + 1
		result.Last = res.Stats

		if err := t.recordChampion(stage.Name, gen, pop, res); err != nil {
			return result, err
		}
		for _, b := range bookmarks.Check(res.Stats) {
			b.LogBookmark()
			if t.out != nil {
				if err := t.out.WriteBookmark(b); err != nil {
					return result, err
				}
			}
		}
		if gen%logEvery == 0 {
			res.Stats.LogStats()
		}

		if gen == stage.Generations-1 {
			break
		}
		pop, err = engine.Reproduce(pop, res.Fitness)
		if err != nil {
			return result, fmt.Errorf("reproduce after generation %d: %w", gen, err)
		}
	}

	if best, ok := t.hall.Best(stage.Name); ok {
		result.Best = best
	}
	if t.out != nil {
		if err := t.out.WriteHallOfFame(t.hall); err != nil {
			return result, err
		}
	}
	log.Info("stage finished", "generations", result.Generations, "best_fitness", result.Best.Fitness, "best_genome", result.Best.GenomeID)
	return result, nil
}

func (t *Trainer) recordChampion(stage string, gen int, pop neural.Population, res *game.GenerationResult) error {
	g, ok := pop[res.BestID]
	if !ok {
		return nil
	}
	data, err := neural.EncodeGenome(g)
	if err != nil {
		return fmt.Errorf("encode champion %d: %w", res.BestID, err)
	}
	t.hall.Consider(telemetry.HallEntry{
		Stage:      stage,
		Generation: gen,
		GenomeID:   res.BestID,
		Fitness:    res.Stats.MaxFitness,
		Genome:     data,
	})
	return nil
}
