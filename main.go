package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/axiogen/config"
	"github.com/pthm-cable/axiogen/curriculum"
	"github.com/pthm-cable/axiogen/exam"
	"github.com/pthm-cable/axiogen/neural"
	"github.com/pthm-cable/axiogen/storage"
	"github.com/pthm-cable/axiogen/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	stages := flag.String("stage", "", "Comma-separated stages to run (empty = whole curriculum)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (empty = config)")
	storeKind := flag.String("store", "", "Checkpoint backend: file, sqlite or memory (empty = config)")
	storePath := flag.String("store-path", "", "Checkpoint directory or database file (empty = config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config, then time-based)")
	workers := flag.Int("workers", 0, "Compute workers per evaluator (0 = config)")
	runExam := flag.Bool("exam", false, "Run the exam on the champion after training")
	export := flag.Bool("export", false, "Save each stage champion as <stage>.genome.json in the output directory")
	verbose := flag.Bool("v", false, "Log per-phase debug output")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Flags override the config file
	if *outputDir != "" {
		cfg.Run.OutputDir = *outputDir
	}
	if *storeKind != "" {
		cfg.Storage.Backend = *storeKind
	}
	if *storePath != "" {
		cfg.Storage.Path = *storePath
	}
	if *workers > 0 {
		cfg.Run.Workers = *workers
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Run.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	cfg.Run.Seed = rngSeed

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, splitStages(*stages), *runExam, *export); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, stages []string, withExam, export bool) error {
	runID := uuid.NewString()

	store, err := storage.NewStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.CloseIfSupported(store); err != nil {
			slog.Warn("closing store", "error", err)
		}
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	var out *telemetry.OutputManager
	if cfg.Telemetry.CSV {
		out, err = telemetry.NewOutputManager(cfg.Run.OutputDir)
		if err != nil {
			return err
		}
		defer func() {
			if err := out.Close(); err != nil {
				slog.Warn("closing output", "error", err)
			}
		}()
		if err := out.WriteConfig(cfg); err != nil {
			return err
		}
	}

	slog.Info("starting curriculum",
		"run_id", runID,
		"seed", cfg.Run.Seed,
		"store", cfg.Storage.Backend,
		"output_dir", out.Dir(),
		"population", cfg.Run.PopulationSize,
	)

	trainer := curriculum.NewTrainer(cfg, store, out, curriculum.Options{
		RunID: runID,
		Seed:  cfg.Run.Seed,
	})
	results, err := trainer.Run(ctx, stages...)
	if err != nil {
		return err
	}
	for _, r := range results {
		slog.Info("stage summary",
			"stage", r.Stage,
			"generations", r.Generations,
			"seeded", r.Seeded,
			"best_fitness", r.Best.Fitness,
			"best_genome", r.Best.GenomeID,
			"alive_or_success", r.Last.AliveOrSuccess,
		)
		if export && out != nil && r.Best.Genome != nil {
			if err := exportChampion(out.Dir(), r.Best); err != nil {
				return err
			}
		}
	}

	if !withExam {
		return nil
	}
	_, err = exam.Run(ctx, cfg, store, out, exam.Options{
		RunID:      runID,
		Seed:       cfg.Run.Seed,
		PerfWindow: cfg.Telemetry.PerfWindow,
	})
	return err
}

// exportChampion writes a stage's best genome where cmd/exam -genome can read it.
func exportChampion(dir string, best telemetry.HallEntry) error {
	g, err := neural.DecodeGenome(best.Genome)
	if err != nil {
		return fmt.Errorf("decode %s champion: %w", best.Stage, err)
	}
	return neural.SaveGenome(g, filepath.Join(dir, best.Stage+".genome.json"))
}

func splitStages(s string) []string {
	var stages []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			stages = append(stages, part)
		}
	}
	return stages
}
