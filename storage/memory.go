package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps checkpoints in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]Checkpoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[string]Checkpoint)}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkpoints == nil {
		s.checkpoints = make(map[string]Checkpoint)
	}
	return nil
}

func (s *MemoryStore) Save(_ context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp.Genome = append([]byte(nil), cp.Genome...)
	s.checkpoints[cp.Stage] = cp
	return nil
}

func (s *MemoryStore) Load(_ context.Context, stage string) (Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[stage]
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	cp.Genome = append([]byte(nil), cp.Genome...)
	return cp, nil
}
