package incremental

import (
	"context"
	"sync"
)

// MemoryStore keeps the state of the previous run in process, for watch mode
// and tests.
type MemoryStore struct {
	mu sync.RWMutex
	st *State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the saved state as is; callers must not mutate it.
func (s *MemoryStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st == nil {
		return nil, ErrNoState
	}
	return s.st, nil
}

func (s *MemoryStore) Save(ctx context.Context, st *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
	return nil
}

// Reset drops the saved state so the next run is a full one.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	s.st = nil
	s.mu.Unlock()
}
