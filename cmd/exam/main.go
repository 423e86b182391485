// Command exam grades a trained champion on the exam planets.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/axiogen/config"
	"github.com/pthm-cable/axiogen/exam"
	"github.com/pthm-cable/axiogen/neural"
	"github.com/pthm-cable/axiogen/storage"
	"github.com/pthm-cable/axiogen/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Directory for exam.csv (empty = no CSV)")
	storeKind := flag.String("store", "", "Checkpoint backend: file or sqlite (empty = config)")
	storePath := flag.String("store-path", "", "Checkpoint directory or database file (empty = config)")
	champion := flag.String("champion", "", "Stage whose checkpoint is examined (empty = config)")
	genomePath := flag.String("genome", "", "Examine this genome file instead of a stored checkpoint")
	seed := flag.Int64("seed", 1, "Base seed; planet i uses seed+i")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *storeKind != "" {
		cfg.Storage.Backend = *storeKind
	}
	if *storePath != "" {
		cfg.Storage.Path = *storePath
	}
	if *champion != "" {
		cfg.Exam.Champion = *champion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graduated, err := run(ctx, cfg, *outputDir, *genomePath, *seed)
	if err != nil {
		slog.Error("exam failed", "error", err)
		os.Exit(1)
	}
	if !graduated {
		os.Exit(2)
	}
}

// run examines the champion and reports whether it passed every planet.
func run(ctx context.Context, cfg *config.Config, outputDir, genomePath string, seed int64) (bool, error) {
	store, err := openStore(ctx, cfg, genomePath)
	if err != nil {
		return false, err
	}
	defer storage.CloseIfSupported(store)

	var out *telemetry.OutputManager
	if outputDir != "" {
		out, err = telemetry.NewOutputManager(outputDir)
		if err != nil {
			return false, err
		}
		defer out.Close()
		if err := out.WriteConfig(cfg); err != nil {
			return false, err
		}
	}

	if hs, ok := store.(*storage.SQLiteStore); ok {
		history, err := hs.History(ctx, cfg.Exam.Champion)
		if err == nil && len(history) > 0 {
			last := history[len(history)-1]
			slog.Info("champion lineage", "stage", cfg.Exam.Champion, "checkpoints", len(history), "run_id", last.RunID, "generation", last.Generation)
		}
	}

	records, err := exam.Run(ctx, cfg, store, out, exam.Options{
		RunID:      "exam",
		Seed:       seed,
		PerfWindow: cfg.Telemetry.PerfWindow,
	})
	if err != nil {
		return false, err
	}

	passed := 0
	for _, rec := range records {
		if rec.Status == exam.StatusGraduated {
			passed++
		}
	}
	graduated := passed == len(records)
	slog.Info("diploma", "champion", cfg.Exam.Champion, "passed", passed, "planets", len(records), "graduated", graduated)
	return graduated, nil
}

// openStore returns the configured checkpoint store, or a memory store
// holding only the genome file when genomePath is set.
func openStore(ctx context.Context, cfg *config.Config, genomePath string) (storage.Store, error) {
	if genomePath == "" {
		store, err := storage.NewStore(cfg.Storage.Backend, cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return store, store.Init(ctx)
	}

	g, err := neural.LoadGenome(genomePath)
	if err != nil {
		return nil, err
	}
	data, err := neural.EncodeGenome(g)
	if err != nil {
		return nil, err
	}
	store := storage.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	cp := storage.Checkpoint{Stage: cfg.Exam.Champion, RunID: "file", GenomeID: g.Id, Genome: data}
	return store, store.Save(ctx, cp)
}
