package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/axiogen/config"
)

// EpisodeRecord is one row of episodes.csv: how a single agent ended.
type EpisodeRecord struct {
	Stage      string  `csv:"stage"`
	Generation int     `csv:"generation"`
	GenomeID   int     `csv:"genome_id"`
	StartTick  int     `csv:"start_tick"`
	EndTick    int     `csv:"end_tick"`
	Cause      string  `csv:"cause"`
	Fitness    float64 `csv:"fitness"`
	Collisions int     `csv:"collisions"`
	Refuels    int     `csv:"refuels"`
	Nudges     int     `csv:"nudges"`
	PeakEnergy float64 `csv:"peak_energy"`
}

// ExamRecord is one row of exam.csv.
type ExamRecord struct {
	Planet   string  `csv:"planet"`
	Score    int     `csv:"score"`
	Status   string  `csv:"status"`
	Seed     int64   `csv:"seed"`
	GenomeID int     `csv:"genome_id"`
	Fitness  float64 `csv:"fitness"`
	Ticks    int     `csv:"ticks"`
	Cause    string  `csv:"cause"`
}

// csvFile appends gocsv records, writing the header only once.
type csvFile struct {
	path          string
	file          *os.File
	headerWritten bool
}

func (c *csvFile) write(records any) error {
	if c.file == nil {
		f, err := os.Create(c.path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Base(c.path), err)
		}
		c.file = f
	}

	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.file); err != nil {
			return fmt.Errorf("writing %s: %w", filepath.Base(c.path), err)
		}
		c.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, c.file); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(c.path), err)
	}
	return nil
}

func (c *csvFile) close() error {
	if c.file == nil {
		return nil
	}
	return c.file.Close()
}

// OutputManager handles structured run output with CSV logging.
// A nil manager discards everything.
type OutputManager struct {
	dir         string
	generations *csvFile
	perf        *csvFile
	bookmarks   *csvFile
	episodes    *csvFile
	exam        *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled). Files are created on first write.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &OutputManager{
		dir:         dir,
		generations: &csvFile{path: filepath.Join(dir, "generations.csv")},
		perf:        &csvFile{path: filepath.Join(dir, "perf.csv")},
		bookmarks:   &csvFile{path: filepath.Join(dir, "bookmarks.csv")},
		episodes:    &csvFile{path: filepath.Join(dir, "episodes.csv")},
		exam:        &csvFile{path: filepath.Join(dir, "exam.csv")},
	}, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteGeneration appends a record to generations.csv.
func (om *OutputManager) WriteGeneration(stats GenerationStats) error {
	if om == nil {
		return nil
	}
	return om.generations.write([]GenerationStats{stats})
}

// WritePerf appends a record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, stage string, generation int) error {
	if om == nil {
		return nil
	}
	return om.perf.write([]PerfStatsCSV{stats.ToCSV(stage, generation)})
}

// WriteBookmark appends a record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	return om.bookmarks.write([]Bookmark{b})
}

// WriteEpisodes appends every lifetime record of one generation to episodes.csv.
func (om *OutputManager) WriteEpisodes(stage string, generation int, lt *LifetimeTracker) error {
	if om == nil || lt == nil || lt.Count() == 0 {
		return nil
	}
	recs := lt.Records()
	rows := make([]EpisodeRecord, len(recs))
	for i, r := range recs {
		rows[i] = EpisodeRecord{
			Stage:      stage,
			Generation: generation,
			GenomeID:   r.GenomeID,
			StartTick:  r.StartTick,
			EndTick:    r.EndTick,
			Cause:      r.Cause,
			Fitness:    r.Fitness,
			Collisions: r.Collisions,
			Refuels:    r.Refuels,
			Nudges:     r.Nudges,
			PeakEnergy: r.PeakEnergy,
		}
	}
	return om.episodes.write(rows)
}

// WriteExam appends a record to exam.csv.
func (om *OutputManager) WriteExam(rec ExamRecord) error {
	if om == nil {
		return nil
	}
	return om.exam.write([]ExamRecord{rec})
}

// WriteHallOfFame saves the hall of fame as JSON.
func (om *OutputManager) WriteHallOfFame(hof *HallOfFame) error {
	if om == nil || hof == nil {
		return nil
	}

	data, err := hof.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling hall of fame: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "hall_of_fame.json"), data, 0644); err != nil {
		return fmt.Errorf("writing hall_of_fame.json: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*csvFile{om.generations, om.perf, om.bookmarks, om.episodes, om.exam} {
		if err := f.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
