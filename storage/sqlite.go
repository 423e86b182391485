package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the current checkpoint per stage plus an append-only
// history of every checkpoint written.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	savedAt := cp.SavedAt.UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO checkpoints (stage, run_id, generation, genome_id, fitness, saved_at, genome)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stage) DO UPDATE SET
			run_id = excluded.run_id,
			generation = excluded.generation,
			genome_id = excluded.genome_id,
			fitness = excluded.fitness,
			saved_at = excluded.saved_at,
			genome = excluded.genome
	`, cp.Stage, cp.RunID, cp.Generation, cp.GenomeID, cp.Fitness, savedAt, cp.Genome); err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO checkpoint_history (stage, run_id, generation, genome_id, fitness, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cp.Stage, cp.RunID, cp.Generation, cp.GenomeID, cp.Fitness, savedAt); err != nil {
		return fmt.Errorf("append checkpoint history: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context, stage string) (Checkpoint, error) {
	db, err := s.getDB()
	if err != nil {
		return Checkpoint{}, err
	}

	var (
		cp      Checkpoint
		savedAt string
	)
	err = db.QueryRowContext(ctx, `
		SELECT stage, run_id, generation, genome_id, fitness, saved_at, genome
		FROM checkpoints WHERE stage = ?
	`, stage).Scan(&cp.Stage, &cp.RunID, &cp.Generation, &cp.GenomeID, &cp.Fitness, &savedAt, &cp.Genome)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Checkpoint{}, ErrNotFound
		}
		return Checkpoint{}, err
	}

	if cp.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint %s: %w", stage, err)
	}
	return cp, nil
}

// HistoryEntry is one row of the checkpoint history.
type HistoryEntry struct {
	RunID      string
	Generation int
	GenomeID   int
	Fitness    float64
}

// History returns every checkpoint written for a stage, oldest first.
func (s *SQLiteStore) History(ctx context.Context, stage string) ([]HistoryEntry, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT run_id, generation, genome_id, fitness
		FROM checkpoint_history WHERE stage = ? ORDER BY id
	`, stage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.RunID, &h.Generation, &h.GenomeID, &h.Fitness); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			stage TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			genome_id INTEGER NOT NULL,
			fitness REAL NOT NULL,
			saved_at TEXT NOT NULL,
			genome BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS checkpoint_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stage TEXT NOT NULL,
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			genome_id INTEGER NOT NULL,
			fitness REAL NOT NULL,
			saved_at TEXT NOT NULL
		);
	`)
	return err
}
