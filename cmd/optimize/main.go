// Package main tunes the evolution options with CMA-ES against a shortened
// curriculum.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/axiogen/config"
	"github.com/pthm-cable/axiogen/telemetry"
)

type options struct {
	configPath  string
	generations int
	popSize     int
	seeds       int
	maxEvals    int
	cmaPop      int
	outputDir   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.IntVar(&opts.generations, "generations", 10, "Generations per curriculum stage")
	flag.IntVar(&opts.popSize, "pop", 0, "Genomes per generation (0 = config)")
	flag.IntVar(&opts.seeds, "seeds", 3, "Number of seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 100, "Maximum number of evaluations")
	flag.IntVar(&opts.cmaPop, "population", 0, "CMA-ES population size (0 = auto)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := tune(ctx, opts); err != nil {
		slog.Error("optimize failed", "error", err)
		os.Exit(1)
	}
}

// tuner tracks evaluations for logging and keeps the best vector seen.
type tuner struct {
	params    *ParamVector
	evaluator *FitnessEvaluator
	log       *csv.Writer
	maxEvals  int
	start     time.Time

	evals       int
	bestFitness float64
	bestParams  []float64
}

func tune(ctx context.Context, opts options) error {
	if opts.outputDir == "" {
		return errors.New("-output is required")
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	baseCfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.popSize > 0 {
		baseCfg.Run.PopulationSize = opts.popSize
	}

	seeds := make([]int64, opts.seeds)
	for i := range seeds {
		seeds[i] = int64(i*1000 + 42)
	}

	params := NewParamVector()
	logFile, err := os.Create(filepath.Join(opts.outputDir, "optimize_log.csv"))
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer logFile.Close()

	t := &tuner{
		params:      params,
		evaluator:   NewFitnessEvaluator(params, baseCfg, opts.generations, seeds),
		log:         csv.NewWriter(logFile),
		maxEvals:    opts.maxEvals,
		start:       time.Now(),
		bestFitness: math.Inf(1),
	}
	defer t.log.Flush()
	if err := t.writeHeader(); err != nil {
		return err
	}

	// Auto-size: 4 + 3n/2
	cmaPop := opts.cmaPop
	if cmaPop == 0 {
		cmaPop = 4 + 3*params.Dim()/2
	}

	slog.Info("starting CMA-ES",
		"params", params.Dim(),
		"population", cmaPop,
		"max_evals", opts.maxEvals,
		"seeds", opts.seeds,
		"generations", opts.generations,
		"stages", len(baseCfg.Curriculum),
	)

	problem := optimize.Problem{
		Func: func(x []float64) float64 { return t.evaluate(ctx, x) },
	}
	settings := &optimize.Settings{
		FuncEvaluations: opts.maxEvals,
		Concurrent:      0, // Seeds already run in parallel
	}
	method := &optimize.CmaEsChol{InitStepSize: 0.3, Population: cmaPop}

	result, err := optimize.Minimize(problem, params.Normalize(params.ExtractFromConfig(baseCfg)), settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if t.bestParams == nil {
		if result == nil {
			return errors.New("no evaluations completed")
		}
		t.bestParams = params.Clamp(params.Denormalize(result.X))
	}

	slog.Info("optimization complete", "evals", t.evals, "elapsed", time.Since(t.start).Round(time.Second), "best_fitness", t.bestFitness)
	for i, spec := range params.Specs {
		slog.Info("best parameter", "path", spec.Path, "value", t.bestParams[i])
	}
	return t.writeResults(baseCfg, opts.outputDir)
}

// evaluate scores one normalized vector and appends it to the log.
func (t *tuner) evaluate(ctx context.Context, x []float64) float64 {
	raw := t.params.Denormalize(x)
	fitness := t.evaluator.Evaluate(ctx, raw)
	t.evals++

	clamped := t.params.Clamp(raw)
	if fitness < t.bestFitness {
		t.bestFitness = fitness
		t.bestParams = clamped
	}

	success := t.evaluator.LastSuccess()
	row := []string{strconv.Itoa(t.evals), strconv.FormatFloat(fitness, 'f', 6, 64), strconv.FormatFloat(success, 'f', 4, 64)}
	for _, v := range clamped {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := t.log.Write(row); err != nil {
		slog.Warn("writing optimize log", "error", err)
	}
	t.log.Flush()

	elapsed := time.Since(t.start)
	eta := time.Duration(t.maxEvals-t.evals) * (elapsed / time.Duration(t.evals))
	slog.Info("eval",
		"n", t.evals,
		"fitness", fitness,
		"success", success,
		"best", t.bestFitness,
		"elapsed", elapsed.Round(time.Second),
		"eta", eta.Round(time.Second),
	)
	return fitness
}

func (t *tuner) writeHeader() error {
	header := []string{"eval", "fitness", "success"}
	for _, spec := range t.params.Specs {
		header = append(header, spec.Name)
	}
	if err := t.log.Write(header); err != nil {
		return fmt.Errorf("write log header: %w", err)
	}
	return nil
}

// writeResults saves the best config and the hall of fame of the best run.
func (t *tuner) writeResults(baseCfg *config.Config, dir string) error {
	bestCfg, err := baseCfg.Clone()
	if err != nil {
		return err
	}
	t.params.ApplyToConfig(bestCfg, t.bestParams)

	path := filepath.Join(dir, "best_config.yaml")
	if err := bestCfg.WriteYAML(path); err != nil {
		return err
	}
	slog.Info("best config saved", "path", path)

	hof := t.evaluator.BestHallOfFame()
	if hof == nil {
		return nil
	}
	out, err := telemetry.NewOutputManager(dir)
	if err != nil {
		return err
	}
	if err := out.WriteHallOfFame(hof); err != nil {
		return err
	}
	slog.Info("hall of fame saved", "path", filepath.Join(dir, "hall_of_fame.json"))
	return nil
}
