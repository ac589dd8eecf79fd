package repository

import (
	"context"
	"maps"
	"sync"

	"github.com/beam-cloud/runwatch/pkg/types"
)

// StateMemoryRepository implements StateRepository in process memory.
// This is used for local mode where we don't have Redis.
type StateMemoryRepository struct {
	mu     sync.RWMutex
	states map[string]types.RunState
}

func NewStateMemoryRepository() StateRepository {
	return &StateMemoryRepository{
		states: make(map[string]types.RunState),
	}
}

func (r *StateMemoryRepository) SaveState(ctx context.Context, name string, state types.RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[name] = state
	return nil
}

func (r *StateMemoryRepository) GetState(ctx context.Context, name string) (types.RunState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[name]
	if !ok {
		return types.RunState{}, &types.ErrRunNotFound{Name: name}
	}
	return state, nil
}

func (r *StateMemoryRepository) ListStates(ctx context.Context) (map[string]types.RunState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.states), nil
}

func (r *StateMemoryRepository) DeleteState(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, name)
	return nil
}
