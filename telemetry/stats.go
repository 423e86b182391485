package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GenerationStats is the per-generation record appended to generations.csv.
type GenerationStats struct {
	RunID      string `csv:"run_id"`
	Stage      string `csv:"stage"`
	Generation int    `csv:"generation"`
	Population int    `csv:"population"`
	Ticks      int    `csv:"ticks"`

	// Fitness distribution
	MaxFitness float64 `csv:"max_fitness"`
	AvgFitness float64 `csv:"avg_fitness"`
	StdFitness float64 `csv:"std_fitness"`
	P10Fitness float64 `csv:"p10_fitness"`
	P50Fitness float64 `csv:"p50_fitness"`
	P90Fitness float64 `csv:"p90_fitness"`
	BestGenome int     `csv:"best_genome"`

	// Outcome counts at episode end
	Alive          int `csv:"alive"`
	Successes      int `csv:"successes"`
	AliveOrSuccess int `csv:"alive_or_success"`

	// Episode events
	Collisions   int `csv:"collisions"`
	Milestones   int `csv:"milestones"`
	GoalsReached int `csv:"goals_reached"`
	FoodEaten    int `csv:"food_eaten"`
	Nudges       int `csv:"nudges"`

	// Deaths by cause
	DeathsEnergy     int `csv:"deaths_energy"`
	DeathsStagnation int `csv:"deaths_stagnation"`
	DeathsBoundary   int `csv:"deaths_boundary"`

	Species   int   `csv:"species"`
	ElapsedMS int64 `csv:"elapsed_ms"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// FillFitness computes the fitness distribution fields from per-genome
// fitness values. ids[i] is the genome that scored fitness[i]. An empty
// population leaves every field at zero.
func (s *GenerationStats) FillFitness(ids []int, fitness []float64) {
	s.Population = len(fitness)
	if len(fitness) == 0 {
		return
	}

	best := floats.MaxIdx(fitness)
	s.MaxFitness = fitness[best]
	s.BestGenome = ids[best]

	if len(fitness) > 1 {
		s.AvgFitness, s.StdFitness = stat.MeanStdDev(fitness, nil)
	} else {
		s.AvgFitness = fitness[0]
	}

	sorted := make([]float64, len(fitness))
	copy(sorted, fitness)
	sort.Float64s(sorted)
	s.P10Fitness = Percentile(sorted, 0.10)
	s.P50Fitness = Percentile(sorted, 0.50)
	s.P90Fitness = Percentile(sorted, 0.90)
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("stage", s.Stage),
		slog.Int("generation", s.Generation),
		slog.Int("population", s.Population),
		slog.Int("ticks", s.Ticks),
		slog.Float64("max_fitness", s.MaxFitness),
		slog.Float64("avg_fitness", s.AvgFitness),
		slog.Float64("std_fitness", s.StdFitness),
		slog.Int("best_genome", s.BestGenome),
		slog.Int("alive", s.Alive),
		slog.Int("successes", s.Successes),
		slog.Int("collisions", s.Collisions),
		slog.Int("milestones", s.Milestones),
		slog.Int("food_eaten", s.FoodEaten),
		slog.Int("species", s.Species),
	)
}

// LogStats logs the generation stats using slog.
func (s GenerationStats) LogStats() {
	slog.Info("generation",
		"run_id", s.RunID,
		"stage", s.Stage,
		"generation", s.Generation,
		"population", s.Population,
		"ticks", s.Ticks,
		"max_fitness", s.MaxFitness,
		"avg_fitness", s.AvgFitness,
		"std_fitness", s.StdFitness,
		"p50_fitness", s.P50Fitness,
		"alive_or_success", s.AliveOrSuccess,
		"collisions", s.Collisions,
		"milestones", s.Milestones,
		"goals_reached", s.GoalsReached,
		"food_eaten", s.FoodEaten,
		"nudges", s.Nudges,
		"deaths_energy", s.DeathsEnergy,
		"deaths_stagnation", s.DeathsStagnation,
		"deaths_boundary", s.DeathsBoundary,
		"species", s.Species,
		"elapsed_ms", s.ElapsedMS,
	)
}
