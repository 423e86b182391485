package main

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/axiogen/config"
	"github.com/pthm-cable/axiogen/curriculum"
	"github.com/pthm-cable/axiogen/storage"
	"github.com/pthm-cable/axiogen/telemetry"
)

// successWeight scales the alive/success rate of the last generation
// against raw fitness so configs with similar fitness are told apart.
const successWeight = 1000.0

// FitnessEvaluator runs short headless curricula and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	baseConfig  *config.Config
	generations int
	seeds       []int64

	// Best run tracking
	mu             sync.Mutex
	bestFitness    float64
	bestHallOfFame *telemetry.HallOfFame
	lastSuccess    float64 // success rate from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. Every stage of baseCfg's
// curriculum is run for generations generations per seed.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, generations int, seeds []int64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		baseConfig:  baseCfg,
		generations: generations,
		seeds:       seeds,
		bestFitness: math.Inf(1),
	}
}

// BestHallOfFame returns the hall of fame from the best evaluation.
func (fe *FitnessEvaluator) BestHallOfFame() *telemetry.HallOfFame {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestHallOfFame
}

// LastSuccess returns the success rate from the most recent evaluation.
func (fe *FitnessEvaluator) LastSuccess() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastSuccess
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness    float64
	success    float64
	hallOfFame *telemetry.HallOfFame
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(ctx context.Context, x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runCurriculum(ctx, x, s)
		}(i, seed)
	}
	wg.Wait()

	fitness := make([]float64, len(results))
	success := make([]float64, len(results))
	bestSeed := 0
	for i, r := range results {
		fitness[i] = r.fitness
		success[i] = r.success
		if r.fitness < results[bestSeed].fitness {
			bestSeed = i
		}
	}
	avgFitness := stat.Mean(fitness, nil)

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestHallOfFame = results[bestSeed].hallOfFame
	}
	fe.lastSuccess = stat.Mean(success, nil)
	fe.mu.Unlock()

	return avgFitness
}

// runCurriculum trains the whole curriculum once with an in-memory store.
// A failed run scores +Inf.
func (fe *FitnessEvaluator) runCurriculum(ctx context.Context, x []float64, seed int64) seedResult {
	cfg, err := fe.baseConfig.Clone()
	if err != nil {
		slog.Error("copying config", "error", err)
		return seedResult{fitness: math.Inf(1)}
	}
	fe.params.ApplyToConfig(cfg, x)
	for i := range cfg.Curriculum {
		cfg.Curriculum[i].Generations = fe.generations
	}
	// Seeds already run in parallel.
	cfg.Run.Workers = 1

	tr := curriculum.NewTrainer(cfg, storage.NewMemoryStore(), nil, curriculum.Options{
		RunID:  "optimize",
		Seed:   seed,
		Logger: slog.New(slog.DiscardHandler),
	})
	results, err := tr.Run(ctx)
	if err != nil || len(results) == 0 {
		slog.Warn("curriculum run failed", "seed", seed, "error", err)
		return seedResult{fitness: math.Inf(1)}
	}

	fitness, success := computeFitness(results)
	return seedResult{fitness: fitness, success: success, hallOfFame: tr.HallOfFame()}
}

// computeFitness scores a curriculum run (lower = better). Only the last
// stage counts toward fitness, since it is the one the exam champion comes
// from; every stage contributes to the success rate.
func computeFitness(results []curriculum.StageResult) (fitness, success float64) {
	rates := make([]float64, 0, len(results))
	for _, r := range results {
		if r.Last.Population > 0 {
			rates = append(rates, float64(r.Last.AliveOrSuccess)/float64(r.Last.Population))
		}
	}
	if len(rates) > 0 {
		success = stat.Mean(rates, nil)
	}
	last := results[len(results)-1]
	return -(last.Best.Fitness + successWeight*success), success
}
