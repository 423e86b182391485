// Package storage persists stage checkpoints: the best genome of the most
// recently completed generation, one per curriculum stage.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when a stage has no checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is the persisted champion of one stage. Genome is the opaque
// encoded genome produced by the evolution engine's codec.
type Checkpoint struct {
	Stage      string    `json:"stage"`
	RunID      string    `json:"run_id"`
	Generation int       `json:"generation"`
	GenomeID   int       `json:"genome_id"`
	Fitness    float64   `json:"fitness"`
	SavedAt    time.Time `json:"saved_at"`
	Genome     []byte    `json:"genome"`
}

// Store persists checkpoints with overwrite semantics per stage.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, cp Checkpoint) error
	Load(ctx context.Context, stage string) (Checkpoint, error)
}

var errNoStage = errors.New("checkpoint stage is required")

func validate(cp Checkpoint) error {
	if cp.Stage == "" {
		return errNoStage
	}
	if len(cp.Genome) == 0 {
		return errors.New("checkpoint genome is empty")
	}
	return nil
}
