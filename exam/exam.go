// Package exam runs a trained champion through the exam planets without
// evolution and grades each run.
package exam

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/config"
	"github.com/pthm-cable/axiogen/game"
	"github.com/pthm-cable/axiogen/neural"
	"github.com/pthm-cable/axiogen/storage"
	"github.com/pthm-cable/axiogen/systems"
	"github.com/pthm-cable/axiogen/telemetry"
)

// Grades.
const (
	StatusGraduated = "GRADUATED"
	StatusFailed    = "FAILED"
)

// Writer receives one record per planet. *telemetry.OutputManager satisfies it.
type Writer interface {
	WriteExam(rec telemetry.ExamRecord) error
}

// Options configure an exam run.
type Options struct {
	RunID      string
	Seed       int64
	PerfWindow int
	Logger     *slog.Logger
}

// brainFactory builds plain goNEAT controllers; the exam needs no engine.
type brainFactory struct{}

func (brainFactory) Controller(g *genetics.Genome) (neural.Controller, error) {
	return neural.NewBrainController(g)
}

// Grade returns the status of a run: a champion graduates when it is still
// alive at the end of the episode and scored at least once.
func Grade(survived bool, score int) string {
	if survived && score > 0 {
		return StatusGraduated
	}
	return StatusFailed
}

// Run loads the checkpoint of cfg.Exam.Champion and examines it on every
// planet in cfg.Exam.Planets. out may be nil.
func Run(ctx context.Context, cfg *config.Config, store storage.Store, out Writer, opts Options) ([]telemetry.ExamRecord, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cp, err := store.Load(ctx, cfg.Exam.Champion)
	if err != nil {
		return nil, fmt.Errorf("load champion %q: %w", cfg.Exam.Champion, err)
	}

	records := make([]telemetry.ExamRecord, 0, len(cfg.Exam.Planets))
	for i, planet := range cfg.Exam.Planets {
		rec, err := examine(ctx, cfg, planet, cp, opts.Seed+int64(i), opts, logger)
		if err != nil {
			return records, fmt.Errorf("planet %s: %w", planet, err)
		}
		logger.Info("exam", "planet", rec.Planet, "score", rec.Score, "status", rec.Status, "cause", rec.Cause, "ticks", rec.Ticks)
		if out != nil {
			if err := out.WriteExam(rec); err != nil {
				return records, err
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// examine runs one planet. The champion is decoded afresh so lifetime
// nudges on one planet never carry into the next.
func examine(ctx context.Context, cfg *config.Config, planet string, cp storage.Checkpoint, seed int64, opts Options, logger *slog.Logger) (telemetry.ExamRecord, error) {
	sc, err := cfg.Scenario(planet)
	if err != nil {
		return telemetry.ExamRecord{}, err
	}
	inputs, err := systems.NewSensorModel(sc.Sensor).InputCount(sc.Inputs)
	if err != nil {
		return telemetry.ExamRecord{}, err
	}

	champion, err := neural.DecodeGenome(cp.Genome)
	if err != nil {
		return telemetry.ExamRecord{}, fmt.Errorf("decode champion: %w", err)
	}
	if err := neural.GrowInputs(champion, inputs); err != nil {
		return telemetry.ExamRecord{}, err
	}

	ev, err := game.NewEvaluator(planet, sc, brainFactory{}, game.Options{Workers: 1, PerfWindow: opts.PerfWindow})
	if err != nil {
		return telemetry.ExamRecord{}, err
	}

	rc := game.NewRunContext(opts.RunID, planet, seed)
	rc.Logger = logger
	res, err := ev.RunGeneration(ctx, rc, neural.Population{champion.Id: champion})
	if err != nil {
		return telemetry.ExamRecord{}, err
	}

	lt := res.Lifetimes.Get(champion.Id)
	if lt == nil {
		return telemetry.ExamRecord{}, fmt.Errorf("no lifetime for champion %d", champion.Id)
	}
	survived := lt.Cause == components.CauseTimeout

	return telemetry.ExamRecord{
		Planet:   planet,
		Score:    lt.Refuels,
		Status:   Grade(survived, lt.Refuels),
		Seed:     seed,
		GenomeID: cp.GenomeID,
		Fitness:  lt.Fitness,
		Ticks:    lt.EndTick,
		Cause:    lt.Cause,
	}, nil
}
