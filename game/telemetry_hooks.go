package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/config"
	"github.com/pthm-cable/axiogen/neural"
	"github.com/pthm-cable/axiogen/storage"
	"github.com/pthm-cable/axiogen/telemetry"
)

// finishGeneration aggregates the episode, emits the stats record and
// checkpoints the best genome. The checkpoint is attempted even when a
// report write fails.
func (e *Evaluator) finishGeneration(ctx context.Context, start time.Time) (*GenerationResult, error) {
	rc := e.rc
	result := &GenerationResult{
		Fitness:   make(map[int]float64, len(e.agents)),
		Lifetimes: e.lifetimes,
	}

	ids := make([]int, len(e.agents))
	fitness := make([]float64, len(e.agents))
	stats := &result.Stats
	for i := range e.agents {
		a := &e.agents[i]
		ids[i] = a.genomeID
		fitness[i] = a.progress.Fitness
		result.Fitness[a.genomeID] = a.progress.Fitness

		if a.cause == components.CauseTimeout {
			stats.Alive++
		}
		if a.progress.Success {
			stats.Successes++
		}
	}

	stats.FillFitness(ids, fitness)
	stats.RunID = rc.RunID
	stats.Stage = rc.Stage
	stats.Generation = rc.Generation
	stats.Ticks = e.tick
	stats.Species = rc.Species
	if e.scenario.Count == config.CountSuccess {
		stats.AliveOrSuccess = stats.Successes
	} else {
		stats.AliveOrSuccess = stats.Alive
	}
	e.collector.Flush(stats)
	stats.ElapsedMS = time.Since(start).Milliseconds()
	result.BestID = stats.BestGenome

	log := rc.logger()
	log.Debug("generation done", "stats", *stats)
	perf := e.perf.Stats()
	perf.LogStats()

	var errs []error
	if rc.Stats != nil {
		if err := rc.Stats.WriteGeneration(*stats); err != nil {
			errs = append(errs, err)
		}
		if err := rc.Stats.WriteEpisodes(rc.Stage, rc.Generation, e.lifetimes); err != nil {
			errs = append(errs, err)
		}
		if err := rc.Stats.WritePerf(perf, rc.Stage, rc.Generation); err != nil {
			errs = append(errs, err)
		}
	}

	if len(e.agents) > 0 {
		if err := e.checkpoint(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}

	return result, errors.Join(errs...)
}

// checkpoint overwrites the stage checkpoint with the generation's best genome.
func (e *Evaluator) checkpoint(ctx context.Context, result *GenerationResult) error {
	rc := e.rc
	if rc.Checkpoints == nil {
		return nil
	}

	var best *agent
	for i := range e.agents {
		if e.agents[i].genomeID == result.BestID {
			best = &e.agents[i]
			break
		}
	}
	if best == nil {
		return fmt.Errorf("best genome %d not in population", result.BestID)
	}

	data, err := neural.EncodeGenome(best.genome)
	if err != nil {
		return fmt.Errorf("encode champion %d: %w", best.genomeID, err)
	}

	cp := storage.Checkpoint{
		Stage:      rc.Stage,
		RunID:      rc.RunID,
		Generation: rc.Generation,
		GenomeID:   best.genomeID,
		Fitness:    best.progress.Fitness,
		SavedAt:    time.Now(),
		Genome:     data,
	}
	if err := rc.Checkpoints.Save(ctx, cp); err != nil {
		return fmt.Errorf("checkpoint stage %s: %w", rc.Stage, err)
	}
	rc.logger().Debug("checkpoint saved", "stage", rc.Stage, "generation", rc.Generation, "genome", best.genomeID, "fitness", best.progress.Fitness)
	return nil
}
